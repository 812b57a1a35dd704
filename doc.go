// Package netsim is a discrete-event network simulator: a virtual-time
// scheduler, a packet-forwarding fabric of nodes and directed links with
// bandwidth and propagation delay, a reliable byte-stream transport with
// Tahoe/Reno-style congestion control and fast retransmit, and a
// distance-vector routing protocol.
//
// Everything in this package runs on a single [Scheduler]'s virtual
// clock: there is no real time and no goroutines on the hot path. An
// event handler runs to completion before the next one starts; to defer
// work, a handler schedules a future event with [Scheduler.Add].
//
// Build a topology with [NetHelper], attach application protocols to
// [Node]s, and drive everything forward with [Scheduler.Run] or
// [Scheduler.RunUntil]. Use [TCP] for a reliable byte stream between two
// hosts, or [Router] to run distance-vector routing alongside it.
//
// Observation hooks ([Observers]) let you attach packet sniffers, CSV
// tracers, or metrics collectors without monkey-patching send/receive.
package netsim
