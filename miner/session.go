package miner

import "sync/atomic"

// SessionHandle carries the cooperative cancellation state threaded
// into every spawned loop: a run flag plus a monotonic session
// sequence. A loop started under sequence N must stop as soon as the
// global sequence advances past N OR the run flag clears, whichever it
// observes first. The check is a cheap comparison performed at the top
// of every iteration, so shutdown latency is bounded by the loop's own
// tick interval and stale loops are safe to simply let run out.
type SessionHandle struct {
	run atomic.Bool
	seq atomic.Uint64
}

// NewSessionHandle creates an idle handle.
func NewSessionHandle() *SessionHandle {
	return &SessionHandle{}
}

// Begin advances the session sequence and raises the run flag,
// returning the new sequence. Loops from earlier sequences observe the
// advance and exit.
func (h *SessionHandle) Begin() uint64 {
	seq := h.seq.Add(1)
	h.run.Store(true)
	return seq
}

// StopRun clears the run flag. Every loop observes this within one
// tick.
func (h *SessionHandle) StopRun() {
	h.run.Store(false)
}

// Running reports whether a session is currently live.
func (h *SessionHandle) Running() bool {
	return h.run.Load()
}

// Seq returns the current session sequence.
func (h *SessionHandle) Seq() uint64 {
	return h.seq.Load()
}

// ActiveFor reports whether a loop started under seq may keep running.
func (h *SessionHandle) ActiveFor(seq uint64) bool {
	return h.run.Load() && h.seq.Load() == seq
}
