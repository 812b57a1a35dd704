package netsim

//
// Observer hooks: explicit interception points for send/receive/
// forward/transmit events. Each hook can drop a packet (return nil) or
// replace it (return a different Envelope) without the node or link
// needing to know an observer exists.
//

// SendInterceptor is called by [Node.SendPacket] before a packet is
// handed off to local delivery or forwarding.
type SendInterceptor func(p Envelope) Envelope

// ReceiveInterceptor is called by [Node.ReceivePacket] before TTL
// handling and protocol dispatch.
type ReceiveInterceptor func(p Envelope) Envelope

// ForwardInterceptor is called by [Node.ForwardPacket] before a packet
// is handed to a [Link].
type ForwardInterceptor func(p Envelope) Envelope

// TransmitInterceptor is called by a [Link] once a packet has finished
// transmitting (before the loss trial runs).
type TransmitInterceptor func(p Envelope) Envelope

// DropInterceptor is called by a [Link] whenever it discards a packet,
// whether because its queue limit was reached or its loss trial
// failed. reason names which of the two occurred.
type DropInterceptor func(p Envelope, reason string)

// Observers is the set of interceptor lists a [Node] and its [Link]s
// consult. The zero value has no interceptors and behaves exactly like
// an unobserved node.
type Observers struct {
	onSend     []SendInterceptor
	onReceive  []ReceiveInterceptor
	onForward  []ForwardInterceptor
	onTransmit []TransmitInterceptor
	onDrop     []DropInterceptor
}

// OnSend registers fn to run on every packet passed to [Node.SendPacket].
func (o *Observers) OnSend(fn SendInterceptor) {
	o.onSend = append(o.onSend, fn)
}

// OnReceive registers fn to run on every packet passed to
// [Node.ReceivePacket].
func (o *Observers) OnReceive(fn ReceiveInterceptor) {
	o.onReceive = append(o.onReceive, fn)
}

// OnForward registers fn to run on every packet passed to
// [Node.ForwardPacket].
func (o *Observers) OnForward(fn ForwardInterceptor) {
	o.onForward = append(o.onForward, fn)
}

// OnTransmit registers fn to run on every packet a [Link] selects for
// transmission.
func (o *Observers) OnTransmit(fn TransmitInterceptor) {
	o.onTransmit = append(o.onTransmit, fn)
}

// OnDrop registers fn to run whenever a [Link] discards a packet
// instead of delivering it.
func (o *Observers) OnDrop(fn DropInterceptor) {
	o.onDrop = append(o.onDrop, fn)
}

func (o *Observers) runSend(p Envelope) Envelope {
	for _, fn := range o.onSend {
		if p == nil {
			return nil
		}
		p = fn(p)
	}
	return p
}

func (o *Observers) runReceive(p Envelope) Envelope {
	for _, fn := range o.onReceive {
		if p == nil {
			return nil
		}
		p = fn(p)
	}
	return p
}

func (o *Observers) runForward(p Envelope) Envelope {
	for _, fn := range o.onForward {
		if p == nil {
			return nil
		}
		p = fn(p)
	}
	return p
}

func (o *Observers) runTransmit(p Envelope) Envelope {
	for _, fn := range o.onTransmit {
		if p == nil {
			return nil
		}
		p = fn(p)
	}
	return p
}

func (o *Observers) runDrop(p Envelope, reason string) {
	for _, fn := range o.onDrop {
		fn(p, reason)
	}
}

// RecordingObserver keeps every packet it sees, stashing sent and
// received packets for later inspection by a test or a scenario
// script.
type RecordingObserver struct {
	Sent        []Envelope
	Received    []Envelope
	Transmitted []Envelope

	log Logger
}

// NewRecordingObserver constructs a RecordingObserver that traces each
// capture through log ("captured sent packet ...").
func NewRecordingObserver(log Logger) *RecordingObserver {
	return &RecordingObserver{log: log}
}

// Attach registers this observer's Sent/Received hooks on node.
func (r *RecordingObserver) Attach(node *Node) {
	node.OnSend(func(p Envelope) Envelope {
		r.Sent = append(r.Sent, p)
		r.trace("captured sent packet %d, length %d", p.Base().Ident, p.Base().Length)
		return p
	})
	node.OnReceive(func(p Envelope) Envelope {
		r.Received = append(r.Received, p)
		r.trace("captured received packet %d, length %d", p.Base().Ident, p.Base().Length)
		return p
	})
}

// AttachLink additionally registers this observer's transmit hook on
// link, capturing every packet the link transmits, before its loss
// trial decides whether the packet is delivered.
func (r *RecordingObserver) AttachLink(link *Link) {
	link.OnTransmit(func(p Envelope) Envelope {
		r.Transmitted = append(r.Transmitted, p)
		r.trace("captured transmit packet %d, length %d", p.Base().Ident, p.Base().Length)
		return p
	})
}

func (r *RecordingObserver) trace(format string, v ...any) {
	if r.log != nil {
		r.log.Debugf(format, v...)
	}
}
