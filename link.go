package netsim

//
// Link: directed channel with bandwidth, propagation delay, optional
// loss, optional finite queue, transmission serialization. Per-packet
// loss uses the same Bernoulli-trial-against-a-seeded-PRNG pattern as
// linkLossesManager.
//

import (
	"math/rand"
)

// Link is a directed edge from Startpoint to Endpoint. Every packet
// handed to [Link.SendPacket] is queued behind whatever is already in
// flight on this link (the transmitter serializes), suffers a
// bandwidth-derived transmission delay, an optional Bernoulli loss
// trial, and a fixed propagation delay before it reaches Endpoint.
//
// A Link holds a non-owning back-reference to its Endpoint node; the
// Startpoint node owns the Link.
type Link struct {
	// Address is this link's globally unique positive integer address.
	Address int

	// Startpoint is the node this link originates from.
	Startpoint *Node

	// Endpoint is the node this link delivers to.
	Endpoint *Node

	// Bandwidth is the link's capacity in bits per second.
	Bandwidth float64

	// Propagation is the one-way propagation delay in seconds.
	Propagation float64

	// LossRate, if non-nil, is the Bernoulli per-packet drop
	// probability in [0,1]. A nil LossRate means lossless.
	LossRate *float64

	// QueueLimit, if non-nil, bounds the number of packets allowed to
	// be in flight (enqueued but not yet done transmitting) at once. A nil
	// QueueLimit means unbounded.
	QueueLimit *int

	sched *Scheduler
	log   Logger
	rnd   *rand.Rand

	// busyUntil is the virtual time at which the transmitter becomes
	// free; successive packets on this link finish transmitting in
	// enqueue order because each send computes its start time from the
	// previous send's finish time.
	busyUntil float64

	// inFlight counts packets that have been enqueued but have not yet
	// finished transmitting, for QueueLimit enforcement.
	inFlight int

	Observers
}

// NewLink creates a directed link with address addr, from startpoint
// to endpoint, with the given bandwidth (bits/sec) and propagation
// delay (seconds). Use [Link.SetLossRate] and [Link.SetQueueLimit] to
// configure optional loss and finite-queue behavior.
func NewLink(addr int, startpoint, endpoint *Node, bandwidth, propagation float64, sched *Scheduler, log Logger) *Link {
	return &Link{
		Address:     addr,
		Startpoint:  startpoint,
		Endpoint:    endpoint,
		Bandwidth:   bandwidth,
		Propagation: propagation,
		sched:       sched,
		log:         log,
		rnd:         rand.New(rand.NewSource(int64(addr)*2654435761 + 1)),
	}
}

// SetLossRate sets a Bernoulli per-packet drop probability. Pass nil
// to disable loss.
func (l *Link) SetLossRate(rate *float64) {
	l.LossRate = rate
}

// SetQueueLimit bounds the number of in-flight packets this link will
// admit. Pass nil to disable the bound.
func (l *Link) SetQueueLimit(limit *int) {
	l.QueueLimit = limit
}

// transmissionDelay returns 8*length/bandwidth for a packet of the
// given byte length.
func (l *Link) transmissionDelay(length int) float64 {
	if l.Bandwidth <= 0 {
		return 0
	}
	return 8 * float64(length) / l.Bandwidth
}

// SendPacket enqueues p for transmission on this link. Successive
// packets finish transmitting in enqueue order: the transmitter's free
// time only ever advances.
func (l *Link) SendPacket(p Envelope) {
	base := p.Base()
	now := l.sched.CurrentTime()

	if l.QueueLimit != nil && l.inFlight >= *l.QueueLimit {
		l.logTrace("link %d dropping packet, queue limit %d reached", l.Address, *l.QueueLimit)
		l.runDrop(p, "queue limit")
		return
	}

	busyStart := l.busyUntil
	if busyStart < now {
		busyStart = now
	}
	txDelay := l.transmissionDelay(base.Length)

	base.EnterQueue = now
	base.QueueingDelay = busyStart - now
	base.TransmissionDelay = txDelay
	base.PropagationDelay = l.Propagation

	l.busyUntil = busyStart + txDelay
	l.inFlight++

	l.sched.Add(l.busyUntil-now, p, func(payload any) {
		l.transmit(payload.(Envelope))
	})
}

// transmit runs the loss trial for p and, if it survives, schedules
// its delivery to Endpoint after the propagation delay.
func (l *Link) transmit(p Envelope) {
	l.inFlight--

	if p = l.runTransmit(p); p == nil {
		return
	}

	if l.LossRate != nil && l.rnd.Float64() < *l.LossRate {
		l.logTrace("link %d dropping packet due to loss", l.Address)
		l.runDrop(p, "loss")
		return
	}

	l.sched.Add(l.Propagation, p, func(payload any) {
		l.Endpoint.ReceivePacket(payload.(Envelope))
	})
}

func (l *Link) logTrace(format string, v ...any) {
	if l.log != nil {
		l.log.Debugf(format, v...)
	}
}
