package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remy-sim/remy-sim/sim/whisker"
)

func newTestPolicy() *whisker.WhiskerTree {
	return whisker.NewWhiskerTree(whisker.DefaultSettings())
}

func TestLink_ServesBackToBackAtFixedRate(t *testing.T) {
	// GIVEN a 2 packets/ms link with three packets enqueued at t=0
	l := NewLink(2)
	for i := 0; i < 3; i++ {
		l.Enqueue(Packet{Src: i}, 0)
	}

	// WHEN the link is ticked to t=1.5
	var done []float64
	l.Tick(1.5, func(p Packet, at float64) { done = append(done, at) })

	// THEN packets complete every 0.5 ms in FIFO order
	assert.Equal(t, []float64{0.5, 1.0, 1.5}, done)
	assert.True(t, math.IsInf(l.NextEventTime(), 1))
}

func TestMemoryTracker_FirstAckOnlyRecordsBaseline(t *testing.T) {
	var m memoryTracker
	m.packetReceived(0, 100)
	assert.Equal(t, whisker.Memory{}, m.m)

	m.packetReceived(8, 116)
	assert.InDelta(t, 1.0, m.m[whisker.AxisSendEWMA], 1e-12)
	assert.InDelta(t, 2.0, m.m[whisker.AxisRecEWMA], 1e-12)
	assert.InDelta(t, 1.08, m.m[whisker.AxisRTTRatio], 1e-12)
}

func TestNetwork_AlwaysOnSender_DeliversAndConserves(t *testing.T) {
	// GIVEN one always-on sender on a 1 pkt/ms, 100 ms link
	cfg := DefaultNetConfig().WithNumSenders(1).WithOnDuration(0)
	policy := newTestPolicy()
	n := NewNetwork(policy, cfg, rand.New(rand.NewSource(1)), NetworkOptions{})

	// WHEN it runs for 5 s
	n.Run(5000)

	// THEN packets are delivered, never more than were sent
	res := n.Results()
	require.Len(t, res, 1)
	assert.Greater(t, res[0].Delivered, int64(0))
	assert.LessOrEqual(t, res[0].Delivered, res[0].Sent)
	assert.InDelta(t, 5000, res[0].TimeOn, 1e-9)
	assert.GreaterOrEqual(t, res[0].Delay, cfg.Delay)
	assert.False(t, math.IsNaN(n.Utility()))

	// AND the policy saw usage and window observations
	assert.Greater(t, policy.Leaves()[0].Count, uint64(0))
	assert.NotEmpty(t, policy.UsedWindows())
}

func TestNetwork_SameSeedSameResults(t *testing.T) {
	cfg := DefaultNetConfig().WithOnDuration(500).WithOffDuration(500)
	run := func(seed int64) []SenderResult {
		n := NewNetwork(newTestPolicy(), cfg, rand.New(rand.NewSource(seed)), NetworkOptions{})
		n.Run(20000)
		return n.Results()
	}

	assert.Equal(t, run(7), run(7))
	assert.NotEqual(t, run(7), run(8))
}

func TestNetwork_TraceRecordsSamplesForBisection(t *testing.T) {
	// GIVEN a traced run
	cfg := DefaultNetConfig().WithNumSenders(1).WithOnDuration(0)
	policy := newTestPolicy()
	n := NewNetwork(policy, cfg, rand.New(rand.NewSource(1)), NetworkOptions{Trace: true})
	n.Run(3000)

	// WHEN the most used whisker is bisected
	w, ok := policy.MostUsed(0)
	require.True(t, ok)
	sub := policy.Bisect(w)

	// THEN the split is non-degenerate
	assert.Equal(t, 2, sub.NumChildren())
}

func TestUtility(t *testing.T) {
	cfg := DefaultNetConfig()
	tests := []struct {
		name string
		r    SenderResult
		want float64
	}{
		{"ideal", SenderResult{Throughput: 1, Delay: 100, TimeOn: 10, Delivered: 10}, 0},
		{"half rate double delay", SenderResult{Throughput: 0.5, Delay: 200, TimeOn: 10, Delivered: 5}, -2},
		{"never on", SenderResult{}, 0},
		{"on but starved", SenderResult{TimeOn: 100}, math.Log2(0.01) - math.Log2(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Utility(tt.r, cfg), 1e-12)
		})
	}
}
