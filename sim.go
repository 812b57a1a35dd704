package netsim

//
// Sim: a simulation harness bundling a Scheduler with named debug-tag
// tracing.
//
// Sim is an ordinary value rather than a package-level singleton: a
// shared mutable global would make it impossible to run two
// independent simulations (e.g. two scenarios in parallel tests, or
// two concurrent runs from a CLI batch command) in the same process.
// Construct one per simulation with [NewSim] and thread it through the
// topology you build on top of it.
//

// Sim bundles a [Scheduler] with debug-tag gated tracing, the harness
// every [NetHelper]-built topology runs on.
type Sim struct {
	Scheduler *Scheduler
	Log       Logger

	debug *debugGate
}

// NewSim constructs a Sim with a fresh [Scheduler] at virtual time
// zero, logging to log.
func NewSim(log Logger) *Sim {
	return &Sim{
		Scheduler: NewScheduler(),
		Log:       log,
		debug:     newDebugGate(),
	}
}

// SetDebug enables tracing for tag; subsequent [Sim.Trace] calls with
// the same tag will be logged.
func (s *Sim) SetDebug(tag string) {
	s.debug.set(tag)
}

// Trace logs message at the scheduler's current virtual time if tag
// has been enabled via [Sim.SetDebug]. A no-op (cheaply) otherwise.
func (s *Sim) Trace(tag, message string) {
	if !s.debug.enabled(tag) {
		return
	}
	if s.Log != nil {
		s.Log.Debugf("%.5f %s: %s", s.Scheduler.CurrentTime(), tag, message)
	}
}
