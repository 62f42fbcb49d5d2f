/*
Package dbus implements the host side of a DBus language binding: typed
container values that carry their own wire signature, and a safe wrapper
around in-flight method calls.

Array, Dict and Struct are the host representations of DBus arrays,
dictionaries and structs. Each carries an optional Signature (inferred from
the contents when absent) and a variant level counting how many variants box
the value on the wire. Encoder and Decoder translate between these values and
the DBus wire format; DecodeMessage and Message.EncodeTo handle complete
messages.

PendingCall wraps a call handle obtained from the underlying messaging
library. It delivers the decoded reply to a handler exactly once, under a
dispatch lock that keeps the library's notification goroutine from touching
host state concurrently, and supports cancellation and blocking wait.

Connection management, authentication and object export are deliberately not
part of this package.
*/
package dbus
