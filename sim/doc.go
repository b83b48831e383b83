// Package sim provides the packet-level network simulator that policies are
// scored in.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - netconfig.go: NetConfig, the scenario a network is built from
//   - rat.go: the sender's congestion-control state machine and its memory
//   - network.go: the event loop tying senders, the link and acks together
//
// # Architecture
//
// The sim package holds the simulator; the search lives in sub-packages:
//   - sim/whisker/: the policy tree, bisection and serialization
//   - sim/evaluator/: scoring a tree over a battery of NetConfigs with a frozen seed
//   - sim/breeder/: generation-staged local search with a memoizing search cache
//   - sim/trace/: decision trace recording for the search
//   - sim/metrics/: Prometheus instruments for the search
//   - sim/history/: SQLite run history
//
// # Model
//
// A network is one FIFO bottleneck link of rate LinkPPT packets per ms followed
// by a fixed propagation delay, so an unqueued packet is acknowledged one
// service time plus Delay ms after it was sent. Senders alternate between
// exponentially distributed on and off periods; every on period starts a new
// flow with reset memory. Time is continuous, in ms.
//
// # Determinism
//
// All randomness flows through PartitionedRNG, which derives one stream per
// named subsystem from a single seed. The same seed and NetConfig always give
// the same SenderResults.
package sim
