package dbus

import (
	"bytes"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNotifyRegistration is returned by ConsumePendingCall when the underlying
// library cannot register the completion notification, usually because it is
// out of resources.
var ErrNotifyRegistration = errors.New("dbus: could not register pending call notification")

var logger logrus.FieldLogger = logrus.StandardLogger()

// SetLogger replaces the logger used by this package. The default is the
// logrus standard logger.
func SetLogger(l logrus.FieldLogger) {
	logger = l
}

// CallHandle is the pending-call protocol of the underlying messaging
// library. A handle represents one in-flight method call; the library
// invokes the registered notify function exactly once, from its own
// goroutine, when the reply arrives, and invokes the free function when the
// notification data is discarded.
type CallHandle interface {
	// Cancel abandons the call. A no-op once the call has completed.
	Cancel()
	// Block waits until the call has completed and the notification has run.
	Block()
	// Completed reports whether the notification has fired.
	Completed() bool
	// SetNotify registers the completion notification. It reports false if
	// registration failed, in which case neither function will be called.
	SetNotify(notify func(), free func()) bool
	// StealReply takes ownership of the stored reply, clearing it, and
	// returns nil if no reply is stored.
	StealReply() []byte
	// Unref releases the handle. Must be called exactly once.
	Unref()
}

// PendingCall wraps one in-flight method call. It delivers at most one
// completion notification into the host's execution context, serialized
// against other host work by the dispatch lock it was created with.
//
// A PendingCall is produced only by ConsumePendingCall; the zero value is
// not usable.
type PendingCall struct {
	id       uuid.UUID
	dispatch sync.Locker

	mu      sync.Mutex
	handle  CallHandle
	handler func(*Message)
}

// ConsumePendingCall takes ownership of the given call handle and registers
// handler to be called with the decoded reply. No other owner may keep using
// the handle afterwards.
//
// The dispatch lock is the caller's claim over all state shared with the
// library's notification goroutine; the notification acquires it before
// decoding the reply or invoking the handler, and releases it on every exit
// path. The handler reference is released exactly once, when the
// notification data is freed or the PendingCall is closed, whichever comes
// first.
//
// If registering the notification fails, the handle is cancelled and
// released, the handler is dropped, and ErrNotifyRegistration is returned.
func ConsumePendingCall(handle CallHandle, dispatch sync.Locker, handler func(*Message)) (*PendingCall, error) {
	pc := &PendingCall{
		id:       uuid.New(),
		dispatch: dispatch,
		handle:   handle,
		handler:  handler,
	}
	if !handle.SetNotify(pc.notify, pc.dropHandler) {
		pc.handler = nil
		handle.Cancel()
		handle.Unref()
		return nil, ErrNotifyRegistration
	}
	return pc, nil
}

// notify runs on the library's goroutine when the call completes. It takes
// the dispatch lock before touching anything shared with the host and holds
// it until return, whatever path is taken.
func (pc *PendingCall) notify() {
	pc.dispatch.Lock()
	defer pc.dispatch.Unlock()

	pc.mu.Lock()
	handle := pc.handle
	handler := pc.handler
	var raw []byte
	if handle != nil {
		raw = handle.StealReply()
	}
	pc.mu.Unlock()

	if handle == nil {
		// closed before the notification could run
		return
	}
	if raw == nil {
		// the notification should only fire once a reply is stored
		logger.WithField("pending_call", pc.id).
			Warn("dbus: notification fired for a pending call with no reply available")
		return
	}
	msg, err := DecodeMessage(bytes.NewReader(raw))
	if err != nil {
		logger.WithField("pending_call", pc.id).WithError(err).
			Warn("dbus: could not decode pending call reply")
		return
	}
	if handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("pending_call", pc.id).
				Errorf("dbus: pending call handler panicked: %v", r)
		}
	}()
	handler(msg)
}

// dropHandler releases the handler reference. Safe to call from both the
// library's free hook and Close; only the first call has any effect.
func (pc *PendingCall) dropHandler() {
	pc.mu.Lock()
	pc.handler = nil
	pc.mu.Unlock()
}

// Cancel abandons the call. Its reply will be ignored and the handler will
// never be invoked. Cancelling a completed or closed call has no effect.
func (pc *PendingCall) Cancel() {
	pc.mu.Lock()
	handle := pc.handle
	pc.mu.Unlock()
	if handle != nil {
		handle.Cancel()
	}
}

// Block waits until the call has completed and the notification has run.
//
// Calling Block from a handler that the remote peer is itself synchronously
// waiting on can deadlock; the bridge does not detect this.
func (pc *PendingCall) Block() {
	pc.mu.Lock()
	handle := pc.handle
	pc.mu.Unlock()
	if handle != nil {
		handle.Block()
	}
}

// Completed reports whether the notification has fired. If it has,
// cancelling is no longer meaningful. Completed reports false after Close.
func (pc *PendingCall) Completed() bool {
	pc.mu.Lock()
	handle := pc.handle
	pc.mu.Unlock()
	if handle == nil {
		return false
	}
	return handle.Completed()
}

// Close releases the underlying handle and, if the notification never fired,
// the handler reference. Both are released exactly once however often Close
// is called.
func (pc *PendingCall) Close() error {
	pc.mu.Lock()
	handle := pc.handle
	pc.handle = nil
	pc.handler = nil
	pc.mu.Unlock()
	if handle != nil {
		handle.Unref()
	}
	return nil
}
