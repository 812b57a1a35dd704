package netsim

//
// Packet: identity, protocol tag, addresses, TTL, timing, body.
//

// BroadcastAddress is the reserved destination address meaning "every
// outgoing link of this node".
const BroadcastAddress = 0

// Packet is the unit of delivery moved by [Link]s and [Node]s. Fields
// annotated "set by links" are updated in place as the packet traverses
// a [Link]; a broadcast send clones the packet per outgoing link so
// these annotations never alias between copies (see [Packet.Clone]).
type Packet struct {
	// Ident is a caller-chosen identifier, opaque to the core.
	Ident int

	// Protocol selects the receiving handler on the destination node.
	Protocol string

	// SourceAddress is the address of the link the packet was sent
	// from, 0 if unset.
	SourceAddress int

	// DestinationAddress is the target link address, or
	// [BroadcastAddress] to fan out to every outgoing link.
	DestinationAddress int

	// Length is the packet size in bytes, used for transmission-delay
	// calculations.
	Length int

	// TTL is the remaining hop budget. Decremented on every
	// non-local-delivery hop; packets with TTL <= 0 are dropped.
	TTL int

	// Created is the virtual time the packet was first handed to
	// [Node.SendPacket].
	Created float64

	// createdSet distinguishes an unset Created from a packet created
	// at virtual time exactly zero.
	createdSet bool

	// EnterQueue, QueueingDelay, TransmissionDelay and PropagationDelay
	// are timing annotations set by the [Link] that most recently
	// carried this packet.
	EnterQueue        float64
	QueueingDelay     float64
	TransmissionDelay float64
	PropagationDelay  float64
}

// TotalDelay is QueueingDelay + TransmissionDelay + PropagationDelay, as
// last set by a [Link].
func (p *Packet) TotalDelay() float64 {
	return p.QueueingDelay + p.TransmissionDelay + p.PropagationDelay
}

// HasCreated reports whether SetCreated has been called on this packet.
func (p *Packet) HasCreated() bool {
	return p.createdSet
}

// SetCreated records t as this packet's creation time, the first time
// it is handed to [Node.SendPacket].
func (p *Packet) SetCreated(t float64) {
	p.Created = t
	p.createdSet = true
}

// Clone returns a deep, alias-free copy of p, used by broadcast fan-out
// so that per-link timing annotations on each copy do not alias.
func (p *Packet) Clone() *Packet {
	cp := *p
	return &cp
}

// Envelope is implemented by every packet type a [Node] and [Link] can
// carry. A plain *Packet and a *TCPPacket both satisfy it, letting the
// fabric move a TCP segment end to end without ever stripping its
// Body, Sequence, or AckNumber.
type Envelope interface {
	// Base returns the embedded (or identical) *Packet carrying the
	// addressing, TTL, and timing fields the fabric operates on.
	Base() *Packet

	// CloneEnvelope returns a deep, alias-free copy preserving the
	// concrete envelope type.
	CloneEnvelope() Envelope
}

// Base implements [Envelope].
func (p *Packet) Base() *Packet { return p }

// CloneEnvelope implements [Envelope].
func (p *Packet) CloneEnvelope() Envelope { return p.Clone() }

// DefaultTTL is the hop budget assigned to packets that do not specify
// one explicitly.
const DefaultTTL = 64

// TCPPacket is a [Packet] carrying a reliable-transport segment.
type TCPPacket struct {
	Packet

	// SourcePort and DestinationPort identify the connection 4-tuple
	// together with SourceAddress/DestinationAddress.
	SourcePort int

	// DestinationPort is the remote connection port.
	DestinationPort int

	// Body is the segment's payload. Length is always len(Body).
	Body []byte

	// Sequence is the sender's byte offset of the first body byte.
	Sequence int

	// AckNumber is the next sequence number expected at the sender of
	// this packet; 0 means "no ACK carried".
	AckNumber int
}

// NewTCPPacket constructs a TCPPacket with Protocol "TCP", TTL
// [DefaultTTL], and Length derived from len(body).
func NewTCPPacket(srcAddr, srcPort, dstAddr, dstPort int, body []byte, sequence, ackNumber int) *TCPPacket {
	return &TCPPacket{
		Packet: Packet{
			Protocol:           ProtocolTCP,
			SourceAddress:      srcAddr,
			DestinationAddress: dstAddr,
			Length:             len(body),
			TTL:                DefaultTTL,
		},
		SourcePort:      srcPort,
		DestinationPort: dstPort,
		Body:            body,
		Sequence:        sequence,
		AckNumber:       ackNumber,
	}
}

// Range returns the half-open sequence-number range [Sequence,
// Sequence+len(Body)) this segment covers.
func (p *TCPPacket) Range() Range {
	return Range{Start: int64(p.Sequence), Stop: int64(p.Sequence) + int64(len(p.Body))}
}

// Clone returns a deep, alias-free copy of p, including a fresh copy of
// Body so that splitting or retransmission never aliases the original
// buffer.
func (p *TCPPacket) Clone() *TCPPacket {
	cp := *p
	cp.Packet = *p.Packet.Clone()
	if p.Body != nil {
		cp.Body = make([]byte, len(p.Body))
		copy(cp.Body, p.Body)
	}
	return &cp
}

// CloneEnvelope implements [Envelope].
func (p *TCPPacket) CloneEnvelope() Envelope { return p.Clone() }

// ProtocolTCP is the protocol tag used to register the TCP transport
// demux on a [Node].
const ProtocolTCP = "TCP"

// ProtocolDVR is the protocol tag used to register a [Router] on a
// [Node].
const ProtocolDVR = "dvr"
