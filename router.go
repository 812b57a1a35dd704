package netsim

//
// Router: distance-vector routing protocol. Periodic beacon exchange,
// neighbor liveness state machine, Bellman-Ford-style update.
//

import "math"

// DvrPacket is the beacon a [Router] broadcasts to its neighbors: its
// own distance vector and host-link knowledge, with TTL 1 so a
// neighbor's own re-broadcast never reaches a second hop.
type DvrPacket struct {
	Packet

	// SrcHostname is the hostname of the router that sent this beacon.
	SrcHostname string

	// DistanceVector maps a link address (meaningful to SrcHostname) to
	// its currently known cost.
	DistanceVector map[int]float64

	// HostLinks maps a hostname to the set of link addresses
	// (meaningful to SrcHostname) by which it is reachable.
	HostLinks map[string]map[int]bool
}

// CloneEnvelope implements [Envelope]. DvrPacket beacons are never
// split or retransmitted, so a shallow copy of the maps is sufficient:
// callers must not mutate a beacon after broadcasting it.
func (p *DvrPacket) CloneEnvelope() Envelope {
	cp := *p
	cp.Packet = *p.Packet.Clone()
	return &cp
}

// neighborState is a per-neighbor liveness state, matching the
// Unknown -> Live -> Stale -> Unknown cycle: a neighbor starts
// Unknown, becomes Live on its first beacon, and reverts to Unknown
// once link_timeout elapses with no further beacon (the Stale
// transition and the revert to Unknown happen atomically in
// neighborTimeout, since nothing observes the intermediate state).
type neighborState int

const (
	neighborUnknown neighborState = iota
	neighborLive
)

// defaultSendRate and defaultLinkTimeout are the periodic-broadcast
// interval and neighbor liveness timeout used when a [Router] is
// constructed with zero values via [NewRouter].
const (
	defaultSendRate    = 30.0
	defaultLinkTimeout = 90.0
)

// Router runs distance-vector routing on behalf of node: it maintains
// a distance vector keyed by link address, a host-links map from
// hostname to the set of link addresses that reach it, and installs
// forwarding-table entries on node as shorter routes are discovered.
//
// A Router holds a reference to its node and is registered as the
// "dvr" protocol handler on that node; it does not own the node.
type Router struct {
	node       *Node
	sched      *Scheduler
	log        Logger
	sendRate   float64
	linkTimout float64

	distanceVector map[int]float64
	hostLinks      map[string]map[int]bool

	transmitTimer  *Event
	neighborTimers map[int]*Event
	neighborStates map[int]neighborState

	// onUpdate, if set, is notified every time this router adopts a
	// shorter-cost route to some link.
	onUpdate func()
}

// OnUpdate registers fn to run whenever this router recomputes a
// shorter-cost route.
func (r *Router) OnUpdate(fn func()) {
	r.onUpdate = fn
}

// NewRouter constructs a Router for node, announces immediately to its
// neighbors, and arms the periodic broadcast timer. sendRate and
// linkTimeout of 0 select the defaults of 30s and 90s respectively.
func NewRouter(node *Node, sched *Scheduler, log Logger, sendRate, linkTimeout float64) *Router {
	if sendRate == 0 {
		sendRate = defaultSendRate
	}
	if linkTimeout == 0 {
		linkTimeout = defaultLinkTimeout
	}
	r := &Router{
		node:           node,
		sched:          sched,
		log:            log,
		sendRate:       sendRate,
		linkTimout:     linkTimeout,
		distanceVector: make(map[int]float64),
		hostLinks:      make(map[string]map[int]bool),
		neighborTimers: make(map[int]*Event),
		neighborStates: make(map[int]neighborState),
	}
	for _, link := range node.RecvLinks() {
		r.distanceVector[link.Address] = 0
	}
	own := make(map[int]bool)
	for _, link := range node.RecvLinks() {
		own[link.Address] = true
	}
	r.hostLinks[node.Hostname] = own

	node.AddProtocol(ProtocolDVR, r)
	r.notifyNeighbors()
	return r
}

// Hostname returns the hostname of the node this router serves.
func (r *Router) Hostname() string {
	return r.node.Hostname
}

func (r *Router) linkCost(link *Link) float64 {
	return 1
}

func (r *Router) trace(format string, v ...any) {
	if r.log != nil {
		r.log.Debugf("%s: "+format, append([]any{r.Hostname()}, v...)...)
	}
}

// SendPacket routes p to hostname along the best known link and hands
// it to the node. Returns [ErrRoutingFailed] if no route is known.
func (r *Router) SendPacket(hostname string, p Envelope) error {
	if !r.hasFiniteRoute(hostname) {
		return ErrRoutingFailed
	}
	addr := r.BestAddress(hostname)
	p.Base().DestinationAddress = addr
	r.trace("sending to host %s (address %d)", hostname, addr)
	r.node.SendPacket(p)
	return nil
}

func (r *Router) hasFiniteRoute(hostname string) bool {
	for addr := range r.hostLinks[hostname] {
		if !math.IsInf(r.costOf(addr), 1) {
			return true
		}
	}
	return false
}

func (r *Router) costOf(addr int) float64 {
	cost, ok := r.distanceVector[addr]
	if !ok {
		return math.Inf(1)
	}
	return cost
}

// BestAddress returns the lowest-cost known link address reaching
// hostname, or 0 if no finite-cost route is known.
func (r *Router) BestAddress(hostname string) int {
	addresses := r.hostLinks[hostname]
	best := 0
	bestCost := math.Inf(1)
	for addr := range addresses {
		cost := r.costOf(addr)
		if cost < bestCost {
			bestCost = cost
			best = addr
		}
	}
	if math.IsInf(bestCost, 1) {
		return 0
	}
	return best
}

// ReceivePacket implements [ProtocolHandler]. It accepts only
// *DvrPacket beacons.
func (r *Router) ReceivePacket(p Envelope) {
	beacon, ok := p.(*DvrPacket)
	if !ok {
		return
	}
	r.receiveBeacon(beacon)
}

func (r *Router) receiveBeacon(beacon *DvrPacket) {
	newData := false
	src := beacon.SrcHostname

	forwardLink := r.node.GetLink(src)
	if forwardLink == nil {
		r.trace("could not find link for %s", src)
		return
	}
	r.trace("received dvr packet from %s", src)
	r.resetNeighbor(forwardLink.Address)

	known, ok := r.hostLinks[src]
	if !ok {
		known = make(map[int]bool)
		r.hostLinks[src] = known
	}
	if !known[forwardLink.Address] {
		newData = true
	}
	known[forwardLink.Address] = true

	for destHostname, links := range beacon.HostLinks {
		have, ok := r.hostLinks[destHostname]
		if !ok {
			have = make(map[int]bool)
			r.hostLinks[destHostname] = have
		}
		before := len(have)
		for addr := range links {
			have[addr] = true
		}
		if len(have) > before {
			newData = true
		}
	}

	for destLink, peerCost := range beacon.DistanceVector {
		candidate := peerCost + r.linkCost(forwardLink)
		current := r.costOf(destLink)
		if candidate < current {
			r.trace("update distance vector for %d from cost %f to %f via %s",
				destLink, current, candidate, forwardLink.Endpoint.Hostname)
			newData = true
			r.distanceVector[destLink] = candidate
			r.node.AddForwardingEntry(destLink, forwardLink)
			if r.onUpdate != nil {
				r.onUpdate()
			}
		}
	}

	if newData {
		r.trace("new data detected, notifying immediately")
		r.notifyNeighbors()
	}
}

// notifyNeighbors broadcasts the current distance vector and host
// links to every outgoing link, and re-arms the periodic timer.
func (r *Router) notifyNeighbors() {
	if r.transmitTimer != nil {
		r.sched.Cancel(r.transmitTimer)
	}
	r.transmitTimer = r.sched.Add(r.sendRate, nil, func(any) {
		r.notifyNeighbors()
	})

	r.trace("notifying neighbors")
	beacon := &DvrPacket{
		Packet: Packet{
			Protocol:           ProtocolDVR,
			DestinationAddress: BroadcastAddress,
			TTL:                1,
		},
		SrcHostname:    r.Hostname(),
		DistanceVector: cloneFloatMap(r.distanceVector),
		HostLinks:      cloneHostLinks(r.hostLinks),
	}
	r.node.SendPacket(beacon)
}

func (r *Router) resetNeighbor(linkAddr int) {
	if ev, ok := r.neighborTimers[linkAddr]; ok {
		r.sched.Cancel(ev)
	}
	r.neighborStates[linkAddr] = neighborLive
	r.neighborTimers[linkAddr] = r.sched.Add(r.linkTimout, linkAddr, func(payload any) {
		r.neighborTimeout(payload.(int))
	})
}

func (r *Router) neighborTimeout(linkAddr int) {
	r.trace("timeout for link %d", linkAddr)
	delete(r.neighborTimers, linkAddr)
	r.neighborStates[linkAddr] = neighborUnknown
	delete(r.distanceVector, linkAddr)
	for dest, link := range r.node.ForwardingTable() {
		if link.Address == linkAddr {
			delete(r.distanceVector, dest)
		}
	}
	r.notifyNeighbors()
}

func cloneFloatMap(m map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneHostLinks(m map[string]map[int]bool) map[string]map[int]bool {
	out := make(map[string]map[int]bool, len(m))
	for host, links := range m {
		cp := make(map[int]bool, len(links))
		for addr := range links {
			cp[addr] = true
		}
		out[host] = cp
	}
	return out
}
