package sim

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// DefaultMaxWindow bounds the congestion window and the window histogram.
const DefaultMaxWindow = 256

// NetworkOptions tunes a Network.
type NetworkOptions struct {
	MaxWindow int  // largest congestion window; DefaultMaxWindow when zero
	Trace     bool // record matched memory points on whiskers for bisection
}

// Network is a single bottleneck shared by on/off senders that all follow the
// same policy. Time is continuous and measured in ms; one tick is one ms.
//
// Every packet crosses the link and then the fixed round-trip delay, after
// which its ack reaches the sender.
type Network struct {
	cfg     NetConfig
	rng     *rand.Rand
	senders []*SwitchedSender
	link    *Link
	acks    deliveryQueue
	seq     uint64
	now     float64
	started bool
}

// NewNetwork builds the scenario cfg driven by policy. All randomness comes
// from rng.
func NewNetwork(policy Policy, cfg NetConfig, rng *rand.Rand, opts NetworkOptions) *Network {
	if opts.MaxWindow <= 0 {
		opts.MaxWindow = DefaultMaxWindow
	}
	n := &Network{cfg: cfg, rng: rng, link: NewLink(cfg.LinkPPT)}
	for i := 0; i < cfg.NumSenders; i++ {
		n.senders = append(n.senders, newSwitchedSender(i, NewRat(policy, opts.MaxWindow, opts.Trace)))
	}
	return n
}

// Run advances the simulation by ticks ms.
func (n *Network) Run(ticks int64) {
	if !n.started {
		for _, s := range n.senders {
			s.start(n.cfg, n.rng, n.now)
		}
		n.started = true
	}
	end := n.now + float64(ticks)
	events := 0
	for {
		n.step()
		events++
		next := n.nextEventTime()
		if next > end {
			break
		}
		n.now = next
	}
	n.now = end
	for _, s := range n.senders {
		s.finish(end)
	}
	logrus.Debugf("network %s: ran %d ticks in %d steps", n.cfg, ticks, events)
}

// step processes everything due at the current time.
func (n *Network) step() {
	for {
		d, ok := n.acks.popDue(n.now)
		if !ok {
			break
		}
		n.senders[d.packet.Src].ack(d.packet, n.now)
	}
	for _, s := range n.senders {
		s.switchIfDue(n.cfg, n.rng, n.now)
		s.transmit(n.now, n.link)
	}
	n.link.Tick(n.now, func(p Packet, at float64) {
		n.seq++
		n.acks.schedule(delivery{at: at + n.cfg.Delay, seq: n.seq, packet: p})
	})
}

func (n *Network) nextEventTime() float64 {
	t := math.Min(n.acks.peekTime(), n.link.NextEventTime())
	for _, s := range n.senders {
		t = math.Min(t, s.nextEventTime())
	}
	return t
}

// Now returns the current simulation time in ms.
func (n *Network) Now() float64 {
	return n.now
}

// Results returns per-sender throughput and delay.
func (n *Network) Results() []SenderResult {
	out := make([]SenderResult, len(n.senders))
	for i, s := range n.senders {
		out[i] = s.result()
	}
	return out
}

// Utility sums the utility of every sender.
func (n *Network) Utility() float64 {
	total := 0.0
	for _, r := range n.Results() {
		total += Utility(r, n.cfg)
	}
	return total
}
