package netsim

//
// Congestion control: pluggable strategy covering slow start, AIMD,
// Tahoe loss response, and Reno fast recovery. Reno is built by
// composition over Tahoe, not inheritance.
//

import "math"

// CongestionControl is the capability a [TCP] sender consults to size
// each outgoing segment and to react to success or failure.
type CongestionControl interface {
	// SendSuccessful reports numBytes newly acknowledged bytes.
	SendSuccessful(numBytes int)

	// SendFailed reports a retransmission. dupAcks is the duplicate-ACK
	// count that triggered it, or 0 for a timer-driven retransmit.
	SendFailed(numBytes, dupAcks int)

	// MaxOutstanding is the current cap on unacknowledged bytes.
	MaxOutstanding() int

	// SkipSending is the count of bytes the sender must not re-emit
	// because they are logically (if not yet cumulatively) ACKed while
	// a retransmitted segment is still in flight.
	SkipSending() int
}

// NoCongestionControl imposes no congestion window: MaxOutstanding is
// unbounded and success/failure are no-ops.
type NoCongestionControl struct{}

// SendSuccessful implements [CongestionControl].
func (NoCongestionControl) SendSuccessful(numBytes int) {}

// SendFailed implements [CongestionControl].
func (NoCongestionControl) SendFailed(numBytes, dupAcks int) {}

// MaxOutstanding implements [CongestionControl].
func (NoCongestionControl) MaxOutstanding() int { return math.MaxInt }

// SkipSending implements [CongestionControl].
func (NoCongestionControl) SkipSending() int { return 0 }

// Tahoe implements slow start, additive increase, and threshold
// halving on loss.
type Tahoe struct {
	mss       int
	cwnd      int
	threshold int
	failed    bool
	log       Logger
}

// NewTahoe constructs a Tahoe controller with the given MSS and
// ssthresh; cwnd starts at one MSS.
func NewTahoe(mss, threshold int, log Logger) *Tahoe {
	return &Tahoe{mss: mss, cwnd: mss, threshold: threshold, log: log}
}

func (t *Tahoe) alignMSS(numBytes int) int {
	return t.mss * (numBytes / t.mss)
}

func (t *Tahoe) lossThreshold() int {
	half := t.alignMSS(t.MaxOutstanding() / 2)
	if t.mss > half {
		return t.mss
	}
	return half
}

// MaxOutstanding implements [CongestionControl].
func (t *Tahoe) MaxOutstanding() int {
	return t.alignMSS(t.cwnd)
}

// SkipSending implements [CongestionControl].
func (t *Tahoe) SkipSending() int { return 0 }

// SendSuccessful implements [CongestionControl]: slow start below
// threshold, additive increase at or above it.
func (t *Tahoe) SendSuccessful(numBytes int) {
	t.failed = false
	if t.cwnd < t.threshold {
		t.slowStart(numBytes)
	} else {
		t.additiveIncrease(numBytes)
	}
}

func (t *Tahoe) slowStart(numBytes int) {
	increase := numBytes
	if increase > t.mss {
		increase = t.mss
	}
	t.cwnd += increase
	t.trace("slow start increase by %d to %d", increase, t.cwnd)
	if t.cwnd >= t.threshold {
		t.trace("slow start hit threshold of %d", t.threshold)
		t.cwnd = t.threshold
	}
}

func (t *Tahoe) additiveIncrease(numBytes int) {
	increase := numBytes * t.mss / t.cwnd
	t.cwnd += increase
	t.trace("additive increase by %d to %d", increase, t.cwnd)
}

// SendFailed implements [CongestionControl]: halve the threshold to
// the aligned half of the current window and reset cwnd to one MSS.
// A further failure before the next SendSuccessful leaves both alone.
// dupAcks is ignored; Tahoe has no fast-recovery path of its own.
func (t *Tahoe) SendFailed(numBytes, dupAcks int) {
	if t.failed {
		t.trace("still recovering")
	} else {
		t.threshold = t.lossThreshold()
		t.trace("loss, threshold = %d / 2 = %d, cwnd = %d", t.MaxOutstanding(), t.threshold, t.mss)
		t.cwnd = t.mss
	}
	t.failed = true
}

func (t *Tahoe) trace(format string, v ...any) {
	if t.log != nil {
		t.log.Debugf(format, v...)
	}
}

// Reno adds fast recovery on top of a [Tahoe] core, reached by
// composition: Reno holds a Tahoe instance and delegates to it
// explicitly rather than inheriting its methods.
type Reno struct {
	core *Tahoe

	dupAcks int
	skip    int
}

// NewReno constructs a Reno controller with the given MSS and
// ssthresh.
func NewReno(mss, threshold int, log Logger) *Reno {
	return &Reno{core: NewTahoe(mss, threshold, log)}
}

// FastRecovery reports whether Reno is currently inflating
// MaxOutstanding because of an unresolved fast retransmit.
func (r *Reno) FastRecovery() bool {
	return r.dupAcks > 0
}

// MaxOutstanding implements [CongestionControl]. During fast recovery
// the Tahoe core's window is inflated by one MSS per duplicate ACK
// seen so far.
func (r *Reno) MaxOutstanding() int {
	base := r.core.MaxOutstanding()
	if r.FastRecovery() {
		val := base + r.dupAcks*r.core.mss
		r.core.trace("in fast recovery, dup acks = %d, max outstanding = %d", r.dupAcks, val)
		return val
	}
	return base
}

// SkipSending implements [CongestionControl].
func (r *Reno) SkipSending() int {
	if r.skip > 0 {
		r.core.trace("continue to skip %d outstanding bytes", r.skip)
	}
	return r.skip
}

// SendSuccessful implements [CongestionControl]. Bytes ACKed during
// fast recovery end it; otherwise success is delegated to the Tahoe
// core (net of whatever is still being skipped), and skip is drawn
// down by the newly ACKed bytes.
func (r *Reno) SendSuccessful(numBytes int) {
	if numBytes > 0 && r.FastRecovery() {
		r.core.trace("leaving fast recovery with %d bytes acked", numBytes)
		r.dupAcks = 0
	} else {
		credited := numBytes - r.skip
		if credited < 0 {
			credited = 0
		}
		r.core.SendSuccessful(credited)
	}
	r.skip -= numBytes
	if r.skip < 0 {
		r.skip = 0
	}
	if r.skip > 0 {
		r.core.trace("received %d bytes, new skip %d", numBytes, r.skip)
	}
}

// SendFailed implements [CongestionControl]. A duplicate-ACK-triggered
// failure enters (or continues) fast recovery without touching the
// Tahoe core's failed latch; a timer-driven failure resets dupAcks and
// delegates to the Tahoe core's ordinary loss response.
func (r *Reno) SendFailed(numBytes, dupAcks int) {
	if dupAcks > 0 {
		if r.FastRecovery() {
			r.core.trace("already in fast recovery, dup acks = %d", dupAcks)
		} else {
			r.core.trace("loss with duplicate acks, entering fast recovery")
			r.skip = numBytes
			maxOutstanding := r.MaxOutstanding()
			r.core.threshold = r.core.lossThreshold()
			r.core.cwnd = r.core.threshold
			r.core.trace("fast recovery, cwnd = threshold = %d / 2 = %d, %d skipped",
				maxOutstanding, r.core.threshold, r.skip)
		}
		r.dupAcks = dupAcks
		return
	}
	r.dupAcks = 0
	r.core.SendFailed(numBytes, 0)
}
