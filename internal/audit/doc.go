// Package audit delivers security events (logins, refreshes, revocations,
// policy and device-trust changes) to a caller-supplied Sink.
//
// A [Dispatcher] queues events on a bounded channel drained by one goroutine.
// With DropIfFull the queue never blocks the caller and overflow is counted;
// otherwise Emit waits for room. A panicking sink is recovered and logged.
//
// The Engine decides which events exist. This package only moves them and
// must not import goTrust or any sibling internal package.
package audit
