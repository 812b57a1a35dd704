package netsim

//
// NetHelper: topology builder and external collaborator surface.
//

import "fmt"

// NetHelper builds and drives a topology on top of one [Sim]. It owns
// nothing the fabric itself does not already own (nodes and links
// created through it are reachable from the topology graph on their
// own); NetHelper is a convenience surface for construction, routing,
// and scenario scripting on top of that graph.
type NetHelper struct {
	sim   *Sim
	nodes map[string]*Node

	// DefaultProtocol and DefaultLength are consulted by [SendPacket]
	// when the caller does not specify them explicitly.
	DefaultProtocol string
	DefaultLength   int

	nextIdent int
}

// NewNetHelper constructs an empty NetHelper driven by sim.
func NewNetHelper(sim *Sim) *NetHelper {
	return &NetHelper{sim: sim, nodes: make(map[string]*Node)}
}

// Sim returns the [Sim] this helper is built on.
func (net *NetHelper) Sim() *Sim { return net.sim }

// AddNode creates, registers, and returns a new [Node] named hostname.
// Returns [ErrDuplicateAddress] if hostname is already in use.
func (net *NetHelper) AddNode(hostname string) (*Node, error) {
	if _, exists := net.nodes[hostname]; exists {
		return nil, fmt.Errorf("netsim: hostname %q: %w", hostname, ErrDuplicateAddress)
	}
	node := NewNode(hostname, net.sim.Scheduler, net.sim.Log)
	net.nodes[hostname] = node
	return node, nil
}

// GetNode returns the node named hostname, or nil if none exists.
func (net *NetHelper) GetNode(hostname string) *Node {
	return net.nodes[hostname]
}

// Nodes returns a snapshot of every node in the topology.
func (net *NetHelper) Nodes() map[string]*Node {
	out := make(map[string]*Node, len(net.nodes))
	for k, v := range net.nodes {
		out[k] = v
	}
	return out
}

// AddLink creates a directed link of the given address, bandwidth
// (bits/sec), and propagation delay (seconds) from startpoint to
// endpoint, and registers it with startpoint.
func (net *NetHelper) AddLink(addr int, startpoint, endpoint *Node, bandwidth, propagation float64) *Link {
	link := NewLink(addr, startpoint, endpoint, bandwidth, propagation, net.sim.Scheduler, net.sim.Log)
	startpoint.AddLink(link)
	return link
}

// AddProtocol registers handler for protocol on every node currently
// in the topology.
func (net *NetHelper) AddProtocol(protocol string, handler ProtocolHandler) {
	for _, node := range net.nodes {
		node.AddProtocol(protocol, handler)
	}
}

// FindRoute performs a breadth-first search for a path of links from
// src to dest, returning the ordered list of links to traverse, or nil
// if dest is unreachable. src and dest must be distinct.
func (net *NetHelper) FindRoute(src, dest *Node) []*Link {
	if src == dest {
		panic("netsim: FindRoute called with src == dest")
	}
	for _, srcLink := range src.Links() {
		seen := make(map[int]bool)
		parent := make(map[int]*Link)
		queue := []*Link{srcLink}
		parent[srcLink.Address] = nil
		seen[srcLink.Address] = true

		for len(queue) > 0 {
			c := queue[0]
			queue = queue[1:]

			if c.Endpoint == dest {
				var route []*Link
				for cur := c; cur != nil; cur = parent[cur.Address] {
					route = append(route, cur)
				}
				reverseLinks(route)
				return route
			}
			for _, link := range c.Endpoint.Links() {
				if seen[link.Address] {
					continue
				}
				if c.Endpoint != src {
					parent[link.Address] = c
				}
				seen[link.Address] = true
				queue = append(queue, link)
			}
		}
	}
	return nil
}

func reverseLinks(ls []*Link) {
	for i, j := 0, len(ls)-1; i < j; i, j = i+1, j-1 {
		ls[i], ls[j] = ls[j], ls[i]
	}
}

// ForwardLinks installs a direct forwarding entry in each direction
// for every (n1, n2) pair: n1 forwards n2's address via its link to
// n2, and vice versa. Pairs with no direct link in one direction are
// skipped in that direction.
func (net *NetHelper) ForwardLinks(pairs ...[2]*Node) {
	for _, pair := range pairs {
		n1, n2 := pair[0], pair[1]
		if link1 := n1.GetLink(n2.Hostname); link1 != nil {
			n1.AddForwardingEntry(n1.GetAddress(n2.Hostname), link1)
		}
		if link2 := n2.GetLink(n1.Hostname); link2 != nil {
			n2.AddForwardingEntry(n2.GetAddress(n1.Hostname), link2)
		}
	}
}

// ForwardRoute installs forwarding entries along route so that every
// node on it forwards toward route's final destination address via
// the next link. If full is true, every node also gets forwarding
// entries for every intermediate link address along the remainder of
// the route, not just the final one.
func (net *NetHelper) ForwardRoute(route []*Link, full bool) {
	for i, srcLink := range route {
		node := srcLink.Startpoint
		if full {
			for _, destLink := range route[i:] {
				node.AddForwardingEntry(destLink.Address, srcLink)
			}
		} else {
			last := route[len(route)-1]
			node.AddForwardingEntry(last.Address, srcLink)
		}
	}
}

// ForwardAllLinks would compute shortest-path forwarding entries for
// every node pair in the topology automatically (a Dijkstra pass over
// unit-cost links). There is no authoritative tie-break policy for
// equal-cost paths to follow here, so rather than invent one this
// stays an explicit stub. Callers needing full-mesh forwarding should
// use [NetHelper.ForwardLinks] and [NetHelper.ForwardRoute] directly,
// or run a [Router] for dynamic route computation.
func (net *NetHelper) ForwardAllLinks() error {
	return ErrNotImplemented
}

// ResetLink overrides a link's propagation delay and/or bandwidth in
// place. Pass nil to leave a field unchanged.
func (net *NetHelper) ResetLink(link *Link, propagation, bandwidth *float64) {
	if propagation != nil {
		link.Propagation = *propagation
	}
	if bandwidth != nil {
		link.Bandwidth = *bandwidth
	}
}

// ResetAllLinks applies [NetHelper.ResetLink] to every link in the
// topology.
func (net *NetHelper) ResetAllLinks(propagation, bandwidth *float64) {
	for _, node := range net.nodes {
		for _, link := range node.Links() {
			net.ResetLink(link, propagation, bandwidth)
		}
	}
}

// ResolveDestAddress resolves dest (an address already known to src's
// recv links or forwarding table, a link, or a node reachable via
// [NetHelper.FindRoute]) to the address src should address packets to.
// Returns 0 if dest is a node with no route from src.
func (net *NetHelper) ResolveDestAddress(src *Node, dest any) int {
	switch d := dest.(type) {
	case int:
		return d
	case *Link:
		return d.Address
	case *Node:
		route := net.FindRoute(src, d)
		if route == nil {
			return 0
		}
		return route[len(route)-1].Address
	default:
		panic(fmt.Sprintf("netsim: ResolveDestAddress: unsupported type %T", dest))
	}
}

// SendPacket schedules a new [Packet] from src to dest after delay
// seconds of virtual time. protocol and length default to
// DefaultProtocol/DefaultLength when zero. Returns an error if no
// default is set where needed, or no route can be resolved.
func (net *NetHelper) SendPacket(delay float64, src *Node, dest any, protocol string, length int) (*Packet, error) {
	if protocol == "" {
		if net.DefaultProtocol == "" {
			return nil, ErrNoDefaultProtocol
		}
		protocol = net.DefaultProtocol
	}
	if length == 0 {
		if net.DefaultLength == 0 {
			return nil, ErrNoDefaultLength
		}
		length = net.DefaultLength
	}
	destAddr := net.ResolveDestAddress(src, dest)
	if destAddr == 0 {
		return nil, ErrNoRoute
	}

	ident := net.nextIdent
	net.nextIdent++

	p := &Packet{
		Ident:              ident,
		Protocol:           protocol,
		DestinationAddress: destAddr,
		Length:             length,
		TTL:                DefaultTTL,
	}
	net.sim.Scheduler.Add(delay, Envelope(p), func(payload any) {
		src.SendPacket(payload.(Envelope))
	})
	return p, nil
}

// SendPacketStream schedules count packets of length bytes from src
// to dest, spaced apart by the first hop's transmission delay so they
// arrive back to back at the link's bandwidth, starting delay seconds
// from now.
func (net *NetHelper) SendPacketStream(src *Node, dest any, count int, delay float64, length int) error {
	destAddr := net.ResolveDestAddress(src, dest)
	if destAddr == 0 {
		return ErrNoRoute
	}
	firstLink, ok := src.ForwardingTable()[destAddr]
	if !ok {
		return fmt.Errorf("netsim: no forwarded route available from %s to %d: %w", src.Hostname, destAddr, ErrNoRoute)
	}
	if length == 0 {
		if net.DefaultLength == 0 {
			return ErrNoDefaultLength
		}
		length = net.DefaultLength
	}

	packetDelay := 8 * float64(length) / firstLink.Bandwidth
	for i := 0; i < count; i++ {
		if _, err := net.SendPacket(delay, src, dest, "", length); err != nil {
			return err
		}
		delay += packetDelay
	}
	return nil
}

// RunScenario resets the scheduler to virtual time zero, runs fn, then
// invokes sim.Scheduler.Run to drive the scenario to completion. fn is
// where a caller wires up sends, scripted drops, and timers before the
// clock starts moving.
func (net *NetHelper) RunScenario(fn func(*NetHelper) error) error {
	net.sim.Scheduler.Reset()
	net.nextIdent = 0
	if err := fn(net); err != nil {
		return err
	}
	net.sim.Scheduler.Run()
	return nil
}
