package netsim

import "testing"

func TestSchedulerFireOrder(t *testing.T) {
	t.Run("fires in (fireTime, sequence) order", func(t *testing.T) {
		s := NewScheduler()
		var order []string
		s.Add(5, nil, func(any) { order = append(order, "b@5") })
		s.Add(1, nil, func(any) { order = append(order, "a@1") })
		s.Add(5, nil, func(any) { order = append(order, "c@5") })
		s.Run()
		want := []string{"a@1", "b@5", "c@5"}
		if len(order) != len(want) {
			t.Fatalf("got %v, want %v", order, want)
		}
		for i := range want {
			if order[i] != want[i] {
				t.Fatalf("got %v, want %v", order, want)
			}
		}
	})

	t.Run("current time advances to each fired event", func(t *testing.T) {
		s := NewScheduler()
		var seen []float64
		s.Add(3, nil, func(any) { seen = append(seen, s.CurrentTime()) })
		s.Add(7, nil, func(any) { seen = append(seen, s.CurrentTime()) })
		s.Run()
		if len(seen) != 2 || seen[0] != 3 || seen[1] != 7 {
			t.Fatalf("got %v", seen)
		}
	})
}

func TestSchedulerCancel(t *testing.T) {
	t.Run("cancelled event never fires", func(t *testing.T) {
		s := NewScheduler()
		fired := false
		ev := s.Add(1, nil, func(any) { fired = true })
		s.Cancel(ev)
		s.Run()
		if fired {
			t.Fatal("expected cancelled event not to fire")
		}
	})

	t.Run("cancel is a no-op after firing", func(t *testing.T) {
		s := NewScheduler()
		ev := s.Add(1, nil, func(any) {})
		s.Run()
		s.Cancel(ev) // must not panic
	})

	t.Run("cancel is a no-op on nil", func(t *testing.T) {
		s := NewScheduler()
		s.Cancel(nil) // must not panic
	})
}

func TestSchedulerRunUntil(t *testing.T) {
	t.Run("stops at the horizon even with events queued past it", func(t *testing.T) {
		s := NewScheduler()
		var fired []float64
		// A perpetually re-arming timer, much like a Router's beacon.
		var rearm EventHandler
		rearm = func(any) {
			fired = append(fired, s.CurrentTime())
			s.Add(1, nil, rearm)
		}
		s.Add(1, nil, rearm)

		s.RunUntil(5)

		if len(fired) == 0 {
			t.Fatal("expected at least one firing")
		}
		for _, ft := range fired {
			if ft > 5 {
				t.Fatalf("event fired past horizon: %v", ft)
			}
		}
	})

	t.Run("resets current time to zero afterwards", func(t *testing.T) {
		s := NewScheduler()
		s.Add(1, nil, func(any) {})
		s.RunUntil(10)
		if s.CurrentTime() != 0 {
			t.Fatalf("got %v, want 0", s.CurrentTime())
		}
	})
}

func TestSchedulerReset(t *testing.T) {
	t.Run("empties the queue and zeroes time", func(t *testing.T) {
		s := NewScheduler()
		fired := false
		s.Add(1, nil, func(any) { fired = true })
		s.Reset()
		s.Run()
		if fired {
			t.Fatal("expected queue to be empty after reset")
		}
		if s.CurrentTime() != 0 {
			t.Fatalf("got %v, want 0", s.CurrentTime())
		}
	})
}

func TestSchedulerNegativeDelayClampsToZero(t *testing.T) {
	t.Run("negative delay does not go backwards", func(t *testing.T) {
		s := NewScheduler()
		s.Add(5, nil, func(any) {})
		s.current = 5
		fired := false
		s.Add(-3, nil, func(any) { fired = true })
		s.Run()
		if !fired {
			t.Fatal("expected event with negative delay to still fire")
		}
		if s.CurrentTime() < 5 {
			t.Fatalf("time went backwards: %v", s.CurrentTime())
		}
	})
}
