package netsim

import "testing"

type recordingHandler struct {
	received []Envelope
}

func (h *recordingHandler) ReceivePacket(p Envelope) {
	h.received = append(h.received, p)
}

func twoNodeLink(sched *Scheduler) (*Node, *Node, *Link) {
	a := NewNode("a", sched, nil)
	b := NewNode("b", sched, nil)
	link := NewLink(1, a, b, 1_000_000, 0.01, sched, nil)
	a.AddLink(link)
	return a, b, link
}

func TestNodeDirectDelivery(t *testing.T) {
	t.Run("a packet addressed to one of the node's own recv links is delivered without forwarding", func(t *testing.T) {
		sched := NewScheduler()
		a, b, link := twoNodeLink(sched)
		handler := &recordingHandler{}
		b.AddProtocol("data", handler)

		b.SendPacket(&Packet{Protocol: "data", DestinationAddress: link.Address, Length: 10})
		sched.Run()

		if len(handler.received) != 1 {
			t.Fatalf("got %d deliveries, want 1", len(handler.received))
		}
		_ = a
	})
}

func TestNodeForwardsAcrossLink(t *testing.T) {
	t.Run("an unreachable destination is forwarded over the link and delivered at the endpoint", func(t *testing.T) {
		sched := NewScheduler()
		a, b, link := twoNodeLink(sched)
		handler := &recordingHandler{}
		b.AddProtocol("data", handler)
		a.AddForwardingEntry(link.Address, link)

		a.SendPacket(&Packet{Protocol: "data", DestinationAddress: link.Address, Length: 10})
		sched.Run()

		if len(handler.received) != 1 {
			t.Fatalf("got %d deliveries, want 1", len(handler.received))
		}
	})

	t.Run("a missing forwarding entry silently drops the packet", func(t *testing.T) {
		sched := NewScheduler()
		a, b, _ := twoNodeLink(sched)
		handler := &recordingHandler{}
		b.AddProtocol("data", handler)

		a.SendPacket(&Packet{Protocol: "data", DestinationAddress: 999, Length: 10})
		sched.Run()

		if len(handler.received) != 0 {
			t.Fatalf("got %d deliveries, want 0", len(handler.received))
		}
	})
}

func TestNodeBroadcast(t *testing.T) {
	t.Run("a broadcast fans out a clone to every outgoing link", func(t *testing.T) {
		sched := NewScheduler()
		a := NewNode("a", sched, nil)
		b := NewNode("b", sched, nil)
		c := NewNode("c", sched, nil)
		linkB := NewLink(1, a, b, 1_000_000, 0, sched, nil)
		linkC := NewLink(2, a, c, 1_000_000, 0, sched, nil)
		a.AddLink(linkB)
		a.AddLink(linkC)

		handlerB := &recordingHandler{}
		handlerC := &recordingHandler{}
		b.AddProtocol("data", handlerB)
		c.AddProtocol("data", handlerC)

		a.SendPacket(&Packet{Protocol: "data", DestinationAddress: BroadcastAddress, Length: 10})
		sched.Run()

		if len(handlerB.received) != 1 || len(handlerC.received) != 1 {
			t.Fatalf("got b=%d c=%d, want 1 each", len(handlerB.received), len(handlerC.received))
		}
	})
}

func TestNodeTTLExpiry(t *testing.T) {
	t.Run("TTL is decremented on each intermediate forwarding hop and the packet is dropped at zero", func(t *testing.T) {
		sched := NewScheduler()
		a := NewNode("a", sched, nil)
		mid := NewNode("mid", sched, nil)
		c := NewNode("c", sched, nil)

		linkAMid := NewLink(1, a, mid, 1_000_000, 0, sched, nil)
		linkMidC := NewLink(2, mid, c, 1_000_000, 0, sched, nil)
		a.AddLink(linkAMid)
		mid.AddLink(linkMidC)
		a.AddForwardingEntry(linkMidC.Address, linkAMid)
		mid.AddForwardingEntry(linkMidC.Address, linkMidC)

		handler := &recordingHandler{}
		c.AddProtocol("data", handler)

		// TTL=1: mid decrements to 0 and drops before it ever reaches c.
		a.SendPacket(&Packet{Protocol: "data", DestinationAddress: linkMidC.Address, Length: 10, TTL: 1})
		sched.Run()

		if len(handler.received) != 0 {
			t.Fatalf("got %d deliveries, want 0 (TTL should have expired at mid)", len(handler.received))
		}
	})

	t.Run("a high enough TTL survives the same hop", func(t *testing.T) {
		sched := NewScheduler()
		a := NewNode("a", sched, nil)
		mid := NewNode("mid", sched, nil)
		c := NewNode("c", sched, nil)

		linkAMid := NewLink(1, a, mid, 1_000_000, 0, sched, nil)
		linkMidC := NewLink(2, mid, c, 1_000_000, 0, sched, nil)
		a.AddLink(linkAMid)
		mid.AddLink(linkMidC)
		a.AddForwardingEntry(linkMidC.Address, linkAMid)
		mid.AddForwardingEntry(linkMidC.Address, linkMidC)

		handler := &recordingHandler{}
		c.AddProtocol("data", handler)

		a.SendPacket(&Packet{Protocol: "data", DestinationAddress: linkMidC.Address, Length: 10, TTL: 2})
		sched.Run()

		if len(handler.received) != 1 {
			t.Fatalf("got %d deliveries, want 1", len(handler.received))
		}
	})
}

func TestNodeDeliverPacketNoHandler(t *testing.T) {
	t.Run("delivering to an unregistered protocol is a no-op, not a panic", func(t *testing.T) {
		sched := NewScheduler()
		node := NewNode("solo", sched, nil)
		node.DeliverPacket(&Packet{Protocol: "nobody-home"})
	})
}

func TestNodeLinkBookkeeping(t *testing.T) {
	t.Run("AddLink registers both the outgoing link and the endpoint's recv link", func(t *testing.T) {
		sched := NewScheduler()
		a, b, link := twoNodeLink(sched)
		if a.GetLink("b") != link {
			t.Fatal("expected GetLink to find the link by endpoint hostname")
		}
		if len(b.RecvLinks()) != 1 || b.RecvLinks()[0] != link {
			t.Fatal("expected endpoint to record the recv link")
		}
		if a.GetAddress("b") != link.Address {
			t.Fatalf("got %d, want %d", a.GetAddress("b"), link.Address)
		}
	})

	t.Run("DeleteLink undoes AddLink on both sides", func(t *testing.T) {
		sched := NewScheduler()
		a, b, link := twoNodeLink(sched)
		a.DeleteLink(link)
		if a.GetLink("b") != nil {
			t.Fatal("expected link to be gone from a")
		}
		if len(b.RecvLinks()) != 0 {
			t.Fatal("expected recv link to be gone from b")
		}
	})
}
