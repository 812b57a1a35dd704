package netsim

//
// Transport demux: connection binding by 4-tuple, scheduled drop
// injection with packet splitting.
//

// addressTuple identifies a bound connection by the addressing the
// transport sees on an arriving packet: (src_addr, src_port, dst_addr,
// dst_port) as stored in the packet, keyed the way the original
// receive-side lookup keys it.
type addressTuple struct {
	destAddr int
	destPort int
	srcAddr  int
	srcPort  int
}

// TCPReceiver is anything bound into a [Transport] to receive demuxed
// segments.
type TCPReceiver interface {
	ReceivePacket(p *TCPPacket)
}

// Transport is a node's "TCP" protocol handler: it demultiplexes
// arriving segments to bound connections by 4-tuple, and on send can
// inject scripted losses by splitting an outgoing segment around
// byte ranges scheduled to be dropped.
type Transport struct {
	node  *Node
	sched *Scheduler
	log   Logger

	binding map[addressTuple]TCPReceiver
	drops   map[Range]int
}

// NewTransport constructs a Transport bound to node as its "TCP"
// protocol handler.
func NewTransport(node *Node, sched *Scheduler, log Logger) *Transport {
	t := &Transport{
		node:    node,
		sched:   sched,
		log:     log,
		binding: make(map[addressTuple]TCPReceiver),
		drops:   make(map[Range]int),
	}
	node.AddProtocol(ProtocolTCP, t)
	return t
}

// Bind registers conn to receive segments whose 4-tuple, as seen on
// the wire, is (destAddr, destPort, srcAddr, srcPort) from conn's own
// point of view: sourceAddr/sourcePort identify conn, and
// destAddr/destPort identify its peer.
func (t *Transport) Bind(conn TCPReceiver, sourceAddr, sourcePort, destAddr, destPort int) {
	key := addressTuple{destAddr: destAddr, destPort: destPort, srcAddr: sourceAddr, srcPort: sourcePort}
	t.binding[key] = conn
}

// ReceivePacket implements [ProtocolHandler]; it demuxes p to the
// connection bound for its 4-tuple.
func (t *Transport) ReceivePacket(p Envelope) {
	seg, ok := p.(*TCPPacket)
	if !ok {
		return
	}
	key := addressTuple{
		destAddr: seg.SourceAddress,
		destPort: seg.SourcePort,
		srcAddr:  seg.DestinationAddress,
		srcPort:  seg.DestinationPort,
	}
	conn, ok := t.binding[key]
	if !ok {
		return
	}
	conn.ReceivePacket(seg)
}

func (t *Transport) trace(format string, v ...any) {
	if t.log != nil {
		t.log.Debugf("%s "+format, append([]any{t.node.Hostname}, v...)...)
	}
}

// SendPacket hands p to the node, splitting it around any currently
// scheduled drop ranges that overlap its sequence range. A segment
// wholly clear of drops is forwarded unchanged (as a zero-delay
// scheduler event, so the caller never recurses into Node.SendPacket
// directly).
func (t *Transport) SendPacket(p *TCPPacket) {
	packetRange := p.Range()

	var skips []Range
	for drop := range t.drops {
		overlap := RangeOverlap(packetRange, drop)
		if !overlap.Empty() {
			skips = append(skips, drop)
		}
	}

	if len(skips) == 0 {
		t.sched.Add(0, Envelope(p), func(payload any) {
			t.node.SendPacket(payload.(Envelope))
		})
		return
	}
	t.sendSplitPacket(p, skips)
}

func (t *Transport) sendSplitPacket(p *TCPPacket, skips []Range) {
	toSkip := RangeMerge(skips)
	packetRange := p.Range()
	toSend := RangeSubtract(packetRange, toSkip...)

	t.trace("skipping ranges %s as scheduled", RangeFormat(toSkip...))

	for drop, count := range t.drops {
		overlap := RangeOverlap(drop, packetRange)
		if overlap.Empty() {
			continue
		}
		untouched := RangeSubtract(drop, packetRange)
		delete(t.drops, drop)

		t.trace("drop %s has %d left", RangeFormat(overlap), count-1)
		if len(untouched) > 0 {
			t.trace("untouched range %s gets another %d left", RangeFormat(untouched...), count)
		}
		for _, r := range untouched {
			t.drops[r] += count
		}
		if count > 2 {
			t.drops[overlap] = count - 1
		}
	}

	for _, sendRange := range toSend {
		data := p.Body[sendRange.Start-int64(p.Sequence) : sendRange.Stop-int64(p.Sequence)]
		split := NewTCPPacket(p.SourceAddress, p.SourcePort, p.DestinationAddress, p.DestinationPort,
			cloneBytes(data), int(sendRange.Start), p.AckNumber)
		t.trace("sending split range %d-%d", sendRange.Start, sendRange.Stop-1)
		t.sched.Add(0, Envelope(split), func(payload any) {
			t.node.SendPacket(payload.(Envelope))
		})
	}
}

// DropData schedules future drops of the byte range [seqStart, seqEnd)
// on the next segment(s) that overlap it. Each overlapping send uses
// up one count, and the range is forgotten once its count is at most
// 2 when hit, so times of 1 or 2 withholds the range once and a larger
// times withholds it times-1 times.
func (t *Transport) DropData(seqStart, seqEnd int64, times int) {
	r := Range{Start: seqStart, Stop: seqEnd}
	t.drops[r] += times
	t.trace("will drop the range %s %d times", RangeFormat(r), t.drops[r])
}
