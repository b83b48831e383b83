package sim

import "container/heap"

// Packet is a single data packet. Acks are implicit: a packet's ack reaches
// its sender when the packet leaves the propagation delay.
type Packet struct {
	Src    int     // sender index
	Flow   int     // flow id of the sender when the packet was sent
	SentAt float64 // send time, ms
}

// delivery is a packet whose ack is due at a fixed time.
type delivery struct {
	at     float64
	seq    uint64 // insertion order, deterministic tie-breaker
	packet Packet
}

// deliveryQueue implements heap.Interface and orders deliveries by time, then
// insertion order.
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type deliveryQueue []delivery

func (q deliveryQueue) Len() int { return len(q) }
func (q deliveryQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}
func (q deliveryQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *deliveryQueue) Push(x any) {
	*q = append(*q, x.(delivery))
}

func (q *deliveryQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[0 : n-1]
	return item
}

// schedule adds a delivery.
func (q *deliveryQueue) schedule(d delivery) {
	heap.Push(q, d)
}

// popDue removes and returns the next delivery if it is due at or before now.
func (q *deliveryQueue) popDue(now float64) (delivery, bool) {
	if q.Len() == 0 || (*q)[0].at > now {
		return delivery{}, false
	}
	return heap.Pop(q).(delivery), true
}

// peekTime returns the time of the next delivery, or +Inf.
func (q deliveryQueue) peekTime() float64 {
	if len(q) == 0 {
		return inf
	}
	return q[0].at
}
