package sim

import (
	"math"
	"math/rand"
)

// SwitchedSender wraps a Rat with on/off traffic: it alternates between
// exponentially distributed on and off periods, starting a fresh flow each
// time it turns on.
type SwitchedSender struct {
	id  int
	rat *Rat

	on         bool
	nextSwitch float64
	onSince    float64

	timeOn     float64
	sent       int64
	delivered  int64
	totalDelay float64
}

func newSwitchedSender(id int, rat *Rat) *SwitchedSender {
	return &SwitchedSender{id: id, rat: rat, nextSwitch: inf}
}

// start schedules the first transition. Always-on senders turn on at time zero.
func (s *SwitchedSender) start(cfg NetConfig, rng *rand.Rand, now float64) {
	if cfg.AlwaysOn() {
		s.turnOn(now)
		s.nextSwitch = inf
		return
	}
	s.nextSwitch = now + rng.ExpFloat64()*cfg.MeanOffDuration
}

func (s *SwitchedSender) turnOn(now float64) {
	s.on = true
	s.onSince = now
	s.rat.reset()
}

func (s *SwitchedSender) turnOff(now float64) {
	s.on = false
	s.timeOn += now - s.onSince
}

// switchIfDue applies every on/off transition scheduled at or before now.
func (s *SwitchedSender) switchIfDue(cfg NetConfig, rng *rand.Rand, now float64) {
	for s.nextSwitch <= now {
		at := s.nextSwitch
		if s.on {
			s.turnOff(at)
			s.nextSwitch = at + rng.ExpFloat64()*cfg.MeanOffDuration
		} else {
			s.turnOn(at)
			s.nextSwitch = at + rng.ExpFloat64()*cfg.MeanOnDuration
		}
	}
}

// transmit sends every packet the Rat allows at now.
func (s *SwitchedSender) transmit(now float64, link *Link) {
	for s.on && s.rat.canSend(now) {
		link.Enqueue(s.rat.send(s.id, now), now)
		s.sent++
	}
}

func (s *SwitchedSender) ack(p Packet, now float64) {
	s.delivered++
	s.totalDelay += now - p.SentAt
	s.rat.ack(p, now)
}

func (s *SwitchedSender) nextEventTime() float64 {
	t := s.nextSwitch
	if s.on {
		t = math.Min(t, s.rat.nextSendTime())
	}
	return t
}

// finish closes the current on period at end.
func (s *SwitchedSender) finish(end float64) {
	if s.on {
		s.timeOn += end - s.onSince
		s.onSince = end
	}
}

// SenderResult summarizes one sender after a run.
type SenderResult struct {
	Throughput float64 // delivered packets per ms of on time
	Delay      float64 // mean packet delay (send to ack), ms
	TimeOn     float64 // total on time, ms
	Sent       int64
	Delivered  int64
}

func (s *SwitchedSender) result() SenderResult {
	r := SenderResult{TimeOn: s.timeOn, Sent: s.sent, Delivered: s.delivered}
	if s.timeOn > 0 {
		r.Throughput = float64(s.delivered) / s.timeOn
	}
	if s.delivered > 0 {
		r.Delay = s.totalDelay / float64(s.delivered)
	}
	return r
}

// Utility is log2(throughput/link rate) - log2(delay/base delay). Senders that
// were never on contribute nothing; senders that were on but delivered nothing
// are scored as if one packet arrived after their whole on time.
func Utility(r SenderResult, cfg NetConfig) float64 {
	if r.TimeOn <= 0 {
		return 0
	}
	tp, delay := r.Throughput, r.Delay
	if r.Delivered == 0 {
		tp = 1 / r.TimeOn
		delay = r.TimeOn
	}
	return math.Log2(tp/cfg.LinkPPT) - math.Log2(delay/cfg.Delay)
}
