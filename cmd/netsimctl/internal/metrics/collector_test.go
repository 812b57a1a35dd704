package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/goleak"

	"github.com/netlab-sim/netsim/cmd/netsimctl/internal/metrics"
)

// TestMain checks for goroutine leaks across every test in this
// package. Prometheus registration and metric mutation never spawns a
// goroutine on its own, so any leak here would point at a bug.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func counterValue(t *testing.T, c *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.WithLabelValues(labels...).Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestNewCollectorRegistersEveryMetric(t *testing.T) {
	t.Run("registers against the given registry without panicking", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		c := metrics.NewCollector(reg)
		if c.PacketsSent == nil || c.QueueingDelay == nil || c.DVRUpdates == nil {
			t.Fatal("expected every metric vector to be populated")
		}

		families, err := reg.Gather()
		if err != nil {
			t.Fatalf("Gather: %v", err)
		}
		if len(families) != 0 {
			t.Fatalf("got %d metric families before any observation, want 0 (counters start unexported until labeled)", len(families))
		}
	})

	t.Run("registering twice against the same registry panics", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		metrics.NewCollector(reg)
		defer func() {
			if recover() == nil {
				t.Fatal("expected a panic from a duplicate MustRegister")
			}
		}()
		metrics.NewCollector(reg)
	})
}

func TestObserveLinkTransmit(t *testing.T) {
	t.Run("records queueing delay without touching the drop counter", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		c := metrics.NewCollector(reg)

		c.ObserveLinkTransmit("1", 0.05)

		if got := counterValue(t, c.PacketsDropped, "1"); got != 0 {
			t.Fatalf("got %v dropped packets, want 0", got)
		}
	})
}

func TestObserveLinkDrop(t *testing.T) {
	t.Run("increments the drop counter for the given link", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		c := metrics.NewCollector(reg)

		c.ObserveLinkDrop("1")
		c.ObserveLinkDrop("1")

		if got := counterValue(t, c.PacketsDropped, "1"); got != 2 {
			t.Fatalf("got %v dropped packets, want 2", got)
		}
	})

	t.Run("counters for distinct link labels are independent", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		c := metrics.NewCollector(reg)

		c.ObserveLinkDrop("1")

		if got := counterValue(t, c.PacketsDropped, "1"); got != 1 {
			t.Fatalf("link 1: got %v, want 1", got)
		}
		if got := counterValue(t, c.PacketsDropped, "2"); got != 0 {
			t.Fatalf("link 2: got %v, want 0", got)
		}
	})
}

func TestObserveTCPRetransmit(t *testing.T) {
	t.Run("timer-driven retransmits increment TCPRetransmits, not the fast counter", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		c := metrics.NewCollector(reg)

		c.ObserveTCPRetransmit("a", false)

		if got := counterValue(t, c.TCPRetransmits, "a"); got != 1 {
			t.Fatalf("got %v, want 1", got)
		}
		if got := counterValue(t, c.TCPFastRetransmits, "a"); got != 0 {
			t.Fatalf("got %v, want 0", got)
		}
	})

	t.Run("fast retransmits increment TCPFastRetransmits, not the timer counter", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		c := metrics.NewCollector(reg)

		c.ObserveTCPRetransmit("a", true)

		if got := counterValue(t, c.TCPFastRetransmits, "a"); got != 1 {
			t.Fatalf("got %v, want 1", got)
		}
		if got := counterValue(t, c.TCPRetransmits, "a"); got != 0 {
			t.Fatalf("got %v, want 0", got)
		}
	})
}

func TestObserveDVRUpdate(t *testing.T) {
	t.Run("increments the per-hostname update counter", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		c := metrics.NewCollector(reg)

		c.ObserveDVRUpdate("r1")
		c.ObserveDVRUpdate("r1")
		c.ObserveDVRUpdate("r2")

		if got := counterValue(t, c.DVRUpdates, "r1"); got != 2 {
			t.Fatalf("r1: got %v, want 2", got)
		}
		if got := counterValue(t, c.DVRUpdates, "r2"); got != 1 {
			t.Fatalf("r2: got %v, want 1", got)
		}
	})
}

func TestCounterVecsIncrementIndependently(t *testing.T) {
	t.Run("per-node counters track distinct hostnames separately", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		c := metrics.NewCollector(reg)

		c.PacketsSent.WithLabelValues("a").Inc()
		c.PacketsSent.WithLabelValues("a").Inc()
		c.PacketsSent.WithLabelValues("b").Inc()

		if got := counterValue(t, c.PacketsSent, "a"); got != 2 {
			t.Fatalf("node a: got %v, want 2", got)
		}
		if got := counterValue(t, c.PacketsSent, "b"); got != 1 {
			t.Fatalf("node b: got %v, want 1", got)
		}
	})
}
