package scenario

import (
	"fmt"

	"github.com/netlab-sim/netsim"
)

// Build constructs a topology on top of net from cfg: every node, then
// every link. Scripted drops are not applied here; [ScheduleSends]
// applies them once a [netsim.Transport] exists to receive them.
// It returns the node lookup table keyed by hostname for convenience.
func Build(net *netsim.NetHelper, cfg *Config) (map[string]*netsim.Node, error) {
	nodes := make(map[string]*netsim.Node, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		if n.Hostname == "" {
			return nil, fmt.Errorf("scenario: node with empty hostname")
		}
		node, err := net.AddNode(n.Hostname)
		if err != nil {
			return nil, fmt.Errorf("scenario: %w", err)
		}
		nodes[n.Hostname] = node
	}

	for _, l := range cfg.Links {
		start, ok := nodes[l.From]
		if !ok {
			return nil, fmt.Errorf("scenario: link %d: unknown node %q", l.Address, l.From)
		}
		end, ok := nodes[l.To]
		if !ok {
			return nil, fmt.Errorf("scenario: link %d: unknown node %q", l.Address, l.To)
		}
		link := net.AddLink(l.Address, start, end, l.BandwidthBps, l.PropagationS)
		if l.LossRate != nil {
			link.SetLossRate(l.LossRate)
		}
		if l.QueueLimit != nil {
			link.SetQueueLimit(l.QueueLimit)
		}
	}

	return nodes, nil
}

// InstallRouting wires up forwarding according to cfg.Run.Routing.
// Must be called after the scheduler has been reset for the run (inside
// the function passed to [netsim.NetHelper.RunScenario], or after a
// manual [netsim.Scheduler.Reset]): "dvr" mode arms each node's
// periodic beacon timer immediately, and a later reset would discard it.
//
// onRouteUpdate, if non-nil, is called with a router's hostname every
// time it adopts a shorter-cost route; it is only ever invoked in
// "dvr" mode.
func InstallRouting(net *netsim.NetHelper, nodes map[string]*netsim.Node, cfg *Config, log netsim.Logger, onRouteUpdate func(hostname string)) ([]*netsim.Router, error) {
	switch cfg.Run.Routing {
	case "", "static":
		for _, send := range cfg.Sends {
			src, ok := nodes[send.From]
			if !ok {
				return nil, fmt.Errorf("scenario: send: unknown node %q", send.From)
			}
			dest, ok := nodes[send.To]
			if !ok {
				return nil, fmt.Errorf("scenario: send: unknown node %q", send.To)
			}
			route := net.FindRoute(src, dest)
			if route == nil {
				return nil, fmt.Errorf("scenario: send from %q to %q: %w", send.From, send.To, netsim.ErrNoRoute)
			}
			net.ForwardRoute(route, true)
		}
		return nil, nil
	case "dvr":
		routers := make([]*netsim.Router, 0, len(nodes))
		for _, node := range nodes {
			router := netsim.NewRouter(node, net.Sim().Scheduler, log, 0, 0)
			if onRouteUpdate != nil {
				hostname := node.Hostname
				router.OnUpdate(func() { onRouteUpdate(hostname) })
			}
			routers = append(routers, router)
		}
		return routers, nil
	default:
		return nil, fmt.Errorf("scenario: %w: %q", ErrUnknownRouting, cfg.Run.Routing)
	}
}

// CongestionFor constructs the [netsim.CongestionControl] variant
// named by cfg.Run.Congestion. mss and threshold size the Tahoe/Reno
// controllers; variants that do not use them ignore the arguments.
func CongestionFor(cfg *Config, log netsim.Logger, mss, threshold int) (netsim.CongestionControl, error) {
	switch cfg.Run.Congestion {
	case "", "none":
		return netsim.NoCongestionControl{}, nil
	case "tahoe":
		return netsim.NewTahoe(mss, threshold, log), nil
	case "reno":
		return netsim.NewReno(mss, threshold, log), nil
	default:
		return nil, fmt.Errorf("scenario: %w: %q", ErrUnknownCongestion, cfg.Run.Congestion)
	}
}

// ByteCounter is a trivial [netsim.Application] that counts delivered
// bytes, enough for a CLI run to report throughput without pulling in
// an actual application protocol.
type ByteCounter struct {
	total int
}

// ReceiveData implements [netsim.Application].
func (b *ByteCounter) ReceiveData(data []byte) {
	b.total += len(data)
}

// Total returns the number of bytes delivered so far.
func (b *ByteCounter) Total() int {
	return b.total
}

// tcpBasePort is the first source/destination port handed out to
// scripted TCP sends; each send gets a distinct port pair so
// concurrent connections between the same pair of nodes never collide
// in a [netsim.Transport]'s binding table.
const tcpBasePort = 5000

// ScheduleSends builds and schedules cfg.Sends. Must be called after
// the scheduler has been reset for the run, for the same reason as
// [InstallRouting]: sending data schedules events and may arm timers.
//
// "tcp" sends get a dedicated [netsim.Transport] and [netsim.TCP]
// connection per node pair (with scripted drops from cfg.Drops applied
// to the sender's transport); any other protocol name is sent as raw
// fixed-length packets via [netsim.NetHelper.SendPacketStream].
//
// onRetransmit, if non-nil, is called with the sending node's hostname
// and whether the retransmit was duplicate-ACK-triggered every time a
// scheduled TCP connection retransmits.
func ScheduleSends(net *netsim.NetHelper, nodes map[string]*netsim.Node, cfg *Config, log netsim.Logger, onRetransmit func(hostname string, fast bool)) ([]*ByteCounter, error) {
	transports := make(map[string]*netsim.Transport, len(nodes))
	transportFor := func(node *netsim.Node) *netsim.Transport {
		if t, ok := transports[node.Hostname]; ok {
			return t
		}
		t := netsim.NewTransport(node, net.Sim().Scheduler, log)
		transports[node.Hostname] = t
		return t
	}

	var counters []*ByteCounter
	for i, send := range cfg.Sends {
		src, ok := nodes[send.From]
		if !ok {
			return nil, fmt.Errorf("scenario: send: unknown node %q", send.From)
		}
		dest, ok := nodes[send.To]
		if !ok {
			return nil, fmt.Errorf("scenario: send: unknown node %q", send.To)
		}

		if send.Protocol != "tcp" {
			protocol := send.Protocol
			if protocol == "" {
				protocol = "data"
			}
			prevProtocol := net.DefaultProtocol
			net.DefaultProtocol = protocol
			err := net.SendPacketStream(src, dest, send.Count, send.DelaySeconds, send.LengthBytes)
			net.DefaultProtocol = prevProtocol
			if err != nil {
				return nil, fmt.Errorf("scenario: send %d: %w", i, err)
			}
			continue
		}

		srcTransport := transportFor(src)
		destTransport := transportFor(dest)
		// Identity addresses: the address a node is recognized by when
		// the *other* side resolves a route toward it. A node's own
		// TCP.sourceAddress must be the identity its peer sees, and
		// its TCP.destinationAddress is its own view of the peer.
		srcIdentity := net.ResolveDestAddress(dest, src)
		destIdentity := net.ResolveDestAddress(src, dest)
		port := tcpBasePort + i

		congestion, err := CongestionFor(cfg, log, defaultSendMSS(send.LengthBytes), defaultSendMSS(send.LengthBytes)*8)
		if err != nil {
			return nil, err
		}

		counter := &ByteCounter{}
		counters = append(counters, counter)
		netsim.NewTCP(destTransport, net.Sim().Scheduler, log, destIdentity, port, srcIdentity, port, counter, netsim.TCPConfig{})
		sender := netsim.NewTCP(srcTransport, net.Sim().Scheduler, log, srcIdentity, port, destIdentity, port, nil,
			netsim.TCPConfig{Congestion: congestion, FastRetransmit: 3})
		if onRetransmit != nil {
			hostname := src.Hostname
			sender.OnRetransmit(func(fast bool) { onRetransmit(hostname, fast) })
		}

		for _, drop := range cfg.Drops {
			if drop.Node != send.From {
				continue
			}
			srcTransport.DropData(drop.SeqStart, drop.SeqEnd, drop.Times)
		}

		data := make([]byte, send.LengthBytes*maxInt(send.Count, 1))
		net.Sim().Scheduler.Add(send.DelaySeconds, nil, func(any) {
			sender.Send(data)
		})
	}
	return counters, nil
}

func defaultSendMSS(length int) int {
	if length <= 0 {
		return 1000
	}
	return length
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
