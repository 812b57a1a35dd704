package netsim

//
// Node: protocol registry, forwarding table, send/receive/forward,
// broadcast fan-out, TTL decrement.
//

// ProtocolHandler receives packets delivered to a [Node] for a
// registered protocol tag.
type ProtocolHandler interface {
	ReceivePacket(p Envelope)
}

// Node is a single host in the topology: an address space of outgoing
// [Link]s, a back-reference list of incoming links maintained by the
// endpoint, a protocol registry, and a forwarding table.
//
// A Node exclusively owns its outgoing links and protocol handlers; a
// link holds a non-owning back-reference to its endpoint node.
type Node struct {
	Hostname string

	sched *Scheduler
	log   Logger

	links           []*Link
	recvLinks       []*Link
	protocols       map[string]ProtocolHandler
	forwardingTable map[int]*Link

	Observers
}

// NewNode creates a Node named hostname, driven by sched and logging
// to log.
func NewNode(hostname string, sched *Scheduler, log Logger) *Node {
	return &Node{
		Hostname:        hostname,
		sched:           sched,
		log:             log,
		protocols:       make(map[string]ProtocolHandler),
		forwardingTable: make(map[int]*Link),
	}
}

func (n *Node) String() string {
	return "Node<" + n.Hostname + ">"
}

// -- Links --

// AddLink registers link as one of n's outgoing links and appends it
// to link.Endpoint's incoming-link list.
func (n *Node) AddLink(link *Link) {
	n.links = append(n.links, link)
	link.Endpoint.recvLinks = append(link.Endpoint.recvLinks, link)
}

// DeleteLink removes link from n's outgoing links and from its
// endpoint's incoming-link list. A no-op if link is not one of n's
// links.
func (n *Node) DeleteLink(link *Link) {
	idx := -1
	for i, l := range n.links {
		if l == link {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	n.links = append(n.links[:idx], n.links[idx+1:]...)
	ep := link.Endpoint
	for i, l := range ep.recvLinks {
		if l == link {
			ep.recvLinks = append(ep.recvLinks[:i], ep.recvLinks[i+1:]...)
			break
		}
	}
}

// GetLink returns the outgoing link whose endpoint hostname is name,
// or nil if n has no such link.
func (n *Node) GetLink(name string) *Link {
	for _, l := range n.links {
		if l.Endpoint.Hostname == name {
			return l
		}
	}
	return nil
}

// GetAddress returns the address of the outgoing link toward name, or
// 0 if n has no such link.
func (n *Node) GetAddress(name string) int {
	for _, l := range n.links {
		if l.Endpoint.Hostname == name {
			return l.Address
		}
	}
	return 0
}

// Links returns n's outgoing links. The returned slice must not be
// mutated by the caller.
func (n *Node) Links() []*Link {
	return n.links
}

// RecvLinks returns the incoming links for which n is the endpoint.
// The returned slice must not be mutated by the caller.
func (n *Node) RecvLinks() []*Link {
	return n.recvLinks
}

// -- Protocols --

// AddProtocol registers handler to receive packets tagged protocol.
func (n *Node) AddProtocol(protocol string, handler ProtocolHandler) {
	n.protocols[protocol] = handler
}

// DeleteProtocol unregisters protocol. A no-op if nothing is
// registered for it.
func (n *Node) DeleteProtocol(protocol string) {
	delete(n.protocols, protocol)
}

// -- Forwarding table --

// AddForwardingEntry routes address via link.
func (n *Node) AddForwardingEntry(address int, link *Link) {
	n.forwardingTable[address] = link
}

// DeleteForwardingEntry removes the forwarding entry for address, if
// any.
func (n *Node) DeleteForwardingEntry(address int) {
	delete(n.forwardingTable, address)
}

// ForwardingTable returns a snapshot of n's current forwarding table.
func (n *Node) ForwardingTable() map[int]*Link {
	out := make(map[int]*Link, len(n.forwardingTable))
	for k, v := range n.forwardingTable {
		out[k] = v
	}
	return out
}

// -- Handling packets --

// SendPacket is the entry point for packets originated locally. It
// stamps the packet's creation time on first send, then either
// delivers it locally (if the destination is one of this node's own
// recv-link addresses, i.e. the node is pinging itself) or forwards
// it.
func (n *Node) SendPacket(p Envelope) {
	if p = n.runSend(p); p == nil {
		return
	}
	base := p.Base()
	if !base.HasCreated() {
		base.SetCreated(n.sched.CurrentTime())
	}
	for _, link := range n.recvLinks {
		if link.Address == base.DestinationAddress {
			n.ReceivePacket(p)
			return
		}
	}
	n.ForwardPacket(p)
}

// ReceivePacket handles a packet arriving on one of n's recv links (or
// passed directly by SendPacket for a self-addressed packet).
// Broadcast packets and packets addressed to one of n's own recv links
// are delivered locally; everything else has its TTL decremented and
// is forwarded, or dropped if the TTL has expired.
func (n *Node) ReceivePacket(p Envelope) {
	if p = n.runReceive(p); p == nil {
		return
	}
	base := p.Base()
	if base.DestinationAddress == BroadcastAddress {
		n.logTrace("%s received packet", n.Hostname)
		n.DeliverPacket(p)
		return
	}
	for _, link := range n.recvLinks {
		if link.Address == base.DestinationAddress {
			n.logTrace("%s received packet", n.Hostname)
			n.DeliverPacket(p)
			return
		}
	}

	base.TTL--
	if base.TTL <= 0 {
		n.logTrace("%s dropping packet due to TTL expired", n.Hostname)
		return
	}
	n.ForwardPacket(p)
}

// DeliverPacket hands p to the protocol handler registered for
// p.Protocol. A no-op if no handler is registered.
func (n *Node) DeliverPacket(p Envelope) {
	handler, ok := n.protocols[p.Base().Protocol]
	if !ok {
		return
	}
	handler.ReceivePacket(p)
}

// ForwardPacket sends p onward: a broadcast destination fans out a
// deep clone of p to every outgoing link; a unicast destination is
// looked up in the forwarding table and handed to the matching link,
// or dropped (logged) if there is no route.
func (n *Node) ForwardPacket(p Envelope) {
	if p = n.runForward(p); p == nil {
		return
	}
	if p.Base().DestinationAddress == BroadcastAddress {
		n.forwardBroadcastPacket(p)
		return
	}
	n.forwardUnicastPacket(p)
}

func (n *Node) forwardUnicastPacket(p Envelope) {
	dst := p.Base().DestinationAddress
	link, ok := n.forwardingTable[dst]
	if !ok {
		n.logTrace("%s no routing entry for %d", n.Hostname, dst)
		return
	}
	n.logTrace("%s forwarding packet to %d", n.Hostname, dst)
	link.SendPacket(p)
}

func (n *Node) forwardBroadcastPacket(p Envelope) {
	for _, link := range n.links {
		n.logTrace("%s forwarding broadcast packet to %s", n.Hostname, link.Endpoint.Hostname)
		link.SendPacket(p.CloneEnvelope())
	}
}

func (n *Node) logTrace(format string, v ...any) {
	if n.log != nil {
		n.log.Debugf(format, v...)
	}
}
