package netsim

import "testing"

// lineTopology builds a three-node line a - b - c (bidirectional links
// in both directions, no direct a-c link) so that distance-vector
// convergence has exactly one candidate route between the end nodes,
// rather than a tie to break.
func lineTopology(sched *Scheduler) (a, b, c *Node) {
	a = NewNode("a", sched, nil)
	b = NewNode("b", sched, nil)
	c = NewNode("c", sched, nil)

	linkAB := NewLink(1, a, b, 1_000_000, 0.001, sched, nil)
	linkBA := NewLink(2, b, a, 1_000_000, 0.001, sched, nil)
	linkBC := NewLink(3, b, c, 1_000_000, 0.001, sched, nil)
	linkCB := NewLink(4, c, b, 1_000_000, 0.001, sched, nil)

	a.AddLink(linkAB)
	b.AddLink(linkBA)
	b.AddLink(linkBC)
	c.AddLink(linkCB)
	return a, b, c
}

func TestRouterConvergesOnALine(t *testing.T) {
	t.Run("each router learns the right hop count to every other host", func(t *testing.T) {
		sched := NewScheduler()
		a, b, c := lineTopology(sched)

		routerA := NewRouter(a, sched, nil, 100, 500)
		routerB := NewRouter(b, sched, nil, 100, 500)
		routerC := NewRouter(c, sched, nil, 100, 500)

		sched.RunUntil(1.0)

		if got := routerA.costOf(routerA.BestAddress("b")); got != 1 {
			t.Fatalf("a->b: got cost %v, want 1", got)
		}
		if got := routerA.costOf(routerA.BestAddress("c")); got != 2 {
			t.Fatalf("a->c: got cost %v, want 2", got)
		}
		if got := routerB.costOf(routerB.BestAddress("a")); got != 1 {
			t.Fatalf("b->a: got cost %v, want 1", got)
		}
		if got := routerB.costOf(routerB.BestAddress("c")); got != 1 {
			t.Fatalf("b->c: got cost %v, want 1", got)
		}
		if got := routerC.costOf(routerC.BestAddress("b")); got != 1 {
			t.Fatalf("c->b: got cost %v, want 1", got)
		}
		if got := routerC.costOf(routerC.BestAddress("a")); got != 2 {
			t.Fatalf("c->a: got cost %v, want 2", got)
		}
	})
}

func TestRouterSendPacketNoRoute(t *testing.T) {
	t.Run("routing to an unknown hostname fails with ErrRoutingFailed", func(t *testing.T) {
		sched := NewScheduler()
		a, _, _ := lineTopology(sched)
		routerA := NewRouter(a, sched, nil, 100, 500)

		err := routerA.SendPacket("nowhere", &Packet{Protocol: "data", Length: 10})
		if err != ErrRoutingFailed {
			t.Fatalf("got %v, want ErrRoutingFailed", err)
		}
	})
}

func TestRouterNeighborTimeoutWithdrawsRoute(t *testing.T) {
	t.Run("a neighbor that stops beaconing is withdrawn after the link timeout", func(t *testing.T) {
		sched := NewScheduler()
		a, b, _ := lineTopology(sched)

		routerA := NewRouter(a, sched, nil, 1000, 1)
		routerB := NewRouter(b, sched, nil, 1000, 1)

		var sawRoute bool
		// Shortly after the initial beacon exchange (near-instant given the
		// 0.001s link propagation here), silence b's own periodic timer and
		// its neighbor timers (whose expiry would re-advertise) so it never
		// beacons again; a's neighbor timer for b then has nothing to reset
		// it and must expire on schedule.
		sched.Add(0.05, nil, func(any) {
			sawRoute = routerA.BestAddress("b") != 0
			sched.Cancel(routerB.transmitTimer)
			for _, ev := range routerB.neighborTimers {
				sched.Cancel(ev)
			}
		})

		sched.RunUntil(1.5)

		if !sawRoute {
			t.Fatal("expected a route to b once beacons had exchanged")
		}
		if routerA.BestAddress("b") != 0 {
			t.Fatalf("expected the route to b to be withdrawn after the link timeout, got address %d", routerA.BestAddress("b"))
		}
	})
}
