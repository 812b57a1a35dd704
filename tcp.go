package netsim

//
// TCP connection: sliding-window sender, cumulative-ACK receiver,
// retransmission timer, duplicate-ACK fast retransmit.
//

// Application receives the in-order byte stream a [TCP] connection
// delivers.
type Application interface {
	ReceiveData(data []byte)
}

// defaultWindow, defaultMSS and defaultTimeout are TCP's defaults when
// a zero value is passed to [NewTCP]; defaultFastRetransmit is the
// conventional duplicate-ACK threshold, never applied by NewTCP itself.
const (
	defaultWindow         = 1000000
	defaultMSS            = 1000
	defaultTimeout        = 2.0
	defaultFastRetransmit = 3
)

// TCP is a reliable byte-stream connection between two hosts: a
// sliding-window sender over a [SendBuffer], a cumulative-ACK receiver
// over a [ReceiveBuffer], a retransmission timer, and a pluggable
// [CongestionControl].
//
// A TCP connection exclusively owns its send and receive buffers; the
// [Transport] it is bound through holds only a non-owning reference
// to it, keyed by 4-tuple.
type TCP struct {
	transport *Transport
	sched     *Scheduler
	log       Logger
	app       Application

	sourceAddress      int
	sourcePort         int
	destinationAddress int
	destinationPort    int

	window int
	mss    int

	sendBuffer *SendBuffer
	// sequence is the last ACK number received from the peer: the next
	// sequence number the sender expects the peer to acknowledge.
	sequence int

	timer          *Event
	timeout        float64
	fastRetransmit int
	duplicateAcks  int

	receiveBuffer *ReceiveBuffer
	// ack is the next in-order sequence number expected from the peer.
	ack int

	congestion CongestionControl

	// onRetransmit, if set, is notified on every retransmission. fast is
	// true for a duplicate-ACK-triggered fast retransmit, false for a
	// timer-driven one.
	onRetransmit func(fast bool)
}

// OnRetransmit registers fn to run on every retransmission this
// connection originates.
func (c *TCP) OnRetransmit(fn func(fast bool)) {
	c.onRetransmit = fn
}

// TCPConfig holds the optional knobs accepted by [NewTCP]; the zero
// value selects every default.
type TCPConfig struct {
	Window         int
	MSS            int
	Timeout        float64
	FastRetransmit int
	Congestion     CongestionControl
}

// NewTCP constructs a TCP connection bound on transport's node, with
// the given 4-tuple and application, and registers it with transport.
func NewTCP(transport *Transport, sched *Scheduler, log Logger, sourceAddress, sourcePort, destinationAddress, destinationPort int, app Application, cfg TCPConfig) *TCP {
	window := cfg.Window
	if window == 0 {
		window = defaultWindow
	}
	mss := cfg.MSS
	if mss == 0 {
		mss = defaultMSS
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	// FastRetransmit's zero value is meaningful (it disables fast
	// retransmit per spec), so unlike Window/MSS/Timeout it is never
	// defaulted here; callers that want fast retransmit set it
	// explicitly.
	fastRetransmit := cfg.FastRetransmit
	congestion := cfg.Congestion
	if congestion == nil {
		congestion = NoCongestionControl{}
	}

	t := &TCP{
		transport:          transport,
		sched:              sched,
		log:                log,
		app:                app,
		sourceAddress:      sourceAddress,
		sourcePort:         sourcePort,
		destinationAddress: destinationAddress,
		destinationPort:    destinationPort,
		window:             window,
		mss:                mss,
		sendBuffer:         NewSendBuffer(),
		timeout:            timeout,
		fastRetransmit:     fastRetransmit,
		receiveBuffer:      NewReceiveBuffer(),
		congestion:         congestion,
	}
	transport.Bind(t, sourceAddress, sourcePort, destinationAddress, destinationPort)
	return t
}

func (c *TCP) trace(format string, v ...any) {
	if c.log != nil {
		c.log.Debugf(format, v...)
	}
}

// ReceivePacket implements [TCPReceiver]: a carried ACK is handled
// first, then any data payload.
func (c *TCP) ReceivePacket(p *TCPPacket) {
	if p.AckNumber > 0 {
		c.handleAck(p)
	}
	if len(p.Body) > 0 {
		c.handleData(p)
	}
}

// -- Sender --

// Send appends data to the send buffer and emits every segment the
// current window and congestion state allow.
func (c *TCP) Send(data []byte) {
	c.sendBuffer.Put(data)
	c.sendAllAllowed()
	c.trace("send buffer sent %d-%d, have through %d",
		c.sendBuffer.BaseSeq(), c.sendBuffer.NextSeq(), c.sendBuffer.LastSeq())
}

// sendOneSegment emits the next allowed segment and returns it, or nil
// if nothing may be sent right now. If resend is true, the congestion
// controller's skip-sending count is bypassed (it is only consulted
// for fresh sends, not for a rewound retransmit).
func (c *TCP) sendOneSegment(resend bool) *TCPPacket {
	skip := 0
	if !resend {
		skip = c.congestion.SkipSending()
	}
	c.sendBuffer.Skip(skip)

	dataLen := c.sendBuffer.Available()
	if cap := c.congestion.MaxOutstanding() - c.sendBuffer.Outstanding(); cap < dataLen {
		dataLen = cap
	}
	if cap := c.window - c.sendBuffer.Outstanding(); cap < dataLen {
		dataLen = cap
	}
	if c.mss < dataLen {
		dataLen = c.mss
	}
	if dataLen <= 0 {
		c.trace("cannot send more data")
		return nil
	}
	data, seq := c.sendBuffer.Get(dataLen)
	return c.sendPacket(data, seq)
}

func (c *TCP) sendAllAllowed() {
	for c.sendOneSegment(false) != nil {
	}
}

func (c *TCP) sendPacket(data []byte, sequence int) *TCPPacket {
	packet := NewTCPPacket(c.sourceAddress, c.sourcePort, c.destinationAddress, c.destinationPort,
		data, sequence, c.ack)

	c.trace("(%d) sending TCP segment %d-%d to %d",
		c.sourceAddress, packet.Sequence, sequence+len(data)-1, c.destinationAddress)
	c.transport.SendPacket(packet)
	if c.timer == nil {
		c.resetTimer()
	}
	return packet
}

// handleAck slides the send buffer by the carried ACK, reports success
// to the congestion controller, and runs duplicate-ACK/fast-retransmit
// bookkeeping.
func (c *TCP) handleAck(p *TCPPacket) {
	c.trace("(%d) received ACK from %d for %d", p.DestinationAddress, p.SourceAddress, p.AckNumber)

	acked := c.sendBuffer.Slide(p.AckNumber)
	if acked > 0 {
		c.congestion.SendSuccessful(acked)
	}
	if c.sendBuffer.Outstanding() > 0 || c.congestion.SkipSending() > 0 {
		c.resetTimer()
	} else {
		c.trace("cancel timer")
		c.cancelTimer()
	}

	if c.fastRetransmit > 0 && p.AckNumber == c.sequence {
		c.duplicateAcks++
		excess := c.duplicateAcks - 1 - c.fastRetransmit
		if excess < 0 {
			c.trace("%d ACKs are duplicate", c.duplicateAcks)
		}
		if excess >= 0 {
			c.congestion.SendFailed(c.sendBuffer.Outstanding(), c.duplicateAcks)
		}
		if excess == 0 {
			c.retransmit(false)
			return
		}
	} else {
		c.duplicateAcks = 0
	}
	c.sequence = p.AckNumber
	c.sendAllAllowed()
}

// retransmit rewinds the send buffer to base_seq and emits one
// segment. A timer-driven retransmit reports failure with dupAcks=0;
// a fast-retransmit-driven one cancels the timer instead of clearing
// it (the caller already knows it fired out of band).
func (c *TCP) retransmit(timerFired bool) {
	if timerFired {
		c.timer = nil
		c.trace("(%d) TCP timeout fired, sequence %d", c.sourceAddress, c.sequence)
		c.congestion.SendFailed(c.sendBuffer.Outstanding(), 0)
	} else {
		c.cancelTimer()
		c.trace("fast retransmit, sequence %d", c.sequence)
	}
	if c.onRetransmit != nil {
		c.onRetransmit(!timerFired)
	}
	c.sendBuffer.Resend(0, true)
	c.sendOneSegment(true)
}

func (c *TCP) resetTimer() {
	if c.timer != nil {
		c.cancelTimer()
	}
	c.timer = c.sched.Add(c.timeout, nil, func(any) {
		c.retransmit(true)
	})
}

func (c *TCP) cancelTimer() {
	if c.timer == nil {
		return
	}
	c.sched.Cancel(c.timer)
	c.timer = nil
}

// -- Receiver --

// handleData reassembles incoming data, delivers the in-order prefix
// to the application, and sends a cumulative ACK.
func (c *TCP) handleData(p *TCPPacket) {
	c.trace("(%d) received TCP segment %d-%d from %d",
		p.DestinationAddress, p.Sequence, p.Sequence+len(p.Body)-1, p.SourceAddress)

	c.receiveBuffer.Put(p.Body, p.Sequence)
	if ranges := c.receiveBuffer.GetRanges(); len(ranges) > 0 {
		c.trace("receive buffer now has %s", RangeFormat(ranges...))
	}

	data, seq := c.receiveBuffer.Get()
	if len(data) > 0 {
		c.ack = seq + len(data)
		if c.app != nil {
			c.app.ReceiveData(data)
		}
	}
	c.sendAck()
}

func (c *TCP) sendAck() {
	packet := NewTCPPacket(c.sourceAddress, c.sourcePort, c.destinationAddress, c.destinationPort,
		nil, c.sequence, c.ack)
	c.trace("(%d) sending TCP ACK to %d for %d", c.sourceAddress, c.destinationAddress, packet.AckNumber)
	c.transport.SendPacket(packet)
}
