package sim

import (
	"math"

	"github.com/remy-sim/remy-sim/sim/whisker"
)

var inf = math.Inf(1)

// ewmaWeight is the weight of the newest sample in the memory EWMAs.
const ewmaWeight = 1.0 / 8.0

// Policy is the rule set consulted by a Rat on every ack.
// *whisker.WhiskerTree implements it.
type Policy interface {
	Use(m whisker.Memory, trace bool) *whisker.Whisker
	RecordWindow(window, maxWindow int)
}

// memoryTracker derives the Memory vector from the acks of one flow.
type memoryTracker struct {
	m            whisker.Memory
	seen         bool
	lastSent     float64
	lastReceived float64
	minRTT       float64
}

func (t *memoryTracker) reset() {
	*t = memoryTracker{}
}

func (t *memoryTracker) packetReceived(sentAt, receivedAt float64) {
	rtt := receivedAt - sentAt
	if !t.seen {
		t.seen = true
		t.lastSent = sentAt
		t.lastReceived = receivedAt
		t.minRTT = rtt
		return
	}
	t.m[whisker.AxisSendEWMA] = (1-ewmaWeight)*t.m[whisker.AxisSendEWMA] + ewmaWeight*(sentAt-t.lastSent)
	t.m[whisker.AxisRecEWMA] = (1-ewmaWeight)*t.m[whisker.AxisRecEWMA] + ewmaWeight*(receivedAt-t.lastReceived)
	t.lastSent = sentAt
	t.lastReceived = receivedAt
	t.minRTT = math.Min(t.minRTT, rtt)
	if t.minRTT > 0 {
		t.m[whisker.AxisRTTRatio] = rtt / t.minRTT
	}
}

// Rat is a window- and pacing-controlled sender whose behaviour is entirely
// decided by a Policy.
type Rat struct {
	policy    Policy
	trace     bool
	maxWindow int

	memory    memoryTracker
	window    int
	intersend float64
	lastSend  float64
	inFlight  int
	flow      int
}

// NewRat creates a sender driven by policy.
func NewRat(policy Policy, maxWindow int, trace bool) *Rat {
	return &Rat{policy: policy, maxWindow: maxWindow, trace: trace, lastSend: -inf}
}

// reset starts a new flow: memory is cleared and the policy is consulted once
// for the initial window and pacing.
func (r *Rat) reset() {
	r.flow++
	r.memory.reset()
	r.window = 0
	r.inFlight = 0
	r.lastSend = -inf
	r.apply()
}

func (r *Rat) apply() {
	w := r.policy.Use(r.memory.m, r.trace)
	r.window = w.Action.Window(r.window, r.maxWindow)
	r.intersend = w.Action.Intersend
	r.policy.RecordWindow(r.window, r.maxWindow)
}

// canSend reports whether a packet may leave at now.
func (r *Rat) canSend(now float64) bool {
	return r.inFlight < r.window && now >= r.lastSend+r.intersend
}

// send records a departure at now and returns the packet.
func (r *Rat) send(src int, now float64) Packet {
	r.inFlight++
	r.lastSend = now
	return Packet{Src: src, Flow: r.flow, SentAt: now}
}

// nextSendTime returns the earliest time the Rat could send again, or +Inf
// when the window is full.
func (r *Rat) nextSendTime() float64 {
	if r.inFlight >= r.window {
		return inf
	}
	return r.lastSend + r.intersend
}

// ack processes the acknowledgement of p at now. Acks of earlier flows are ignored.
func (r *Rat) ack(p Packet, now float64) {
	if p.Flow != r.flow {
		return
	}
	r.inFlight--
	r.memory.packetReceived(p.SentAt, now)
	r.apply()
}

// Memory returns the current memory vector.
func (r *Rat) Memory() whisker.Memory {
	return r.memory.m
}

// Window returns the current congestion window.
func (r *Rat) Window() int {
	return r.window
}
