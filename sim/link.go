package sim

// Link is the bottleneck: an unbounded FIFO served at a fixed rate. A packet
// occupies the link for 1/rate ms.
type Link struct {
	serviceTime float64
	queue       []Packet
	busy        bool
	current     Packet
	finishAt    float64
}

// NewLink creates a link serving rate packets per ms.
func NewLink(rate float64) *Link {
	return &Link{serviceTime: 1 / rate}
}

// Enqueue accepts a packet at time now.
func (l *Link) Enqueue(p Packet, now float64) {
	l.queue = append(l.queue, p)
	if !l.busy {
		l.startNext(now)
	}
}

func (l *Link) startNext(now float64) {
	if len(l.queue) == 0 {
		l.busy = false
		return
	}
	l.current = l.queue[0]
	l.queue = l.queue[1:]
	l.busy = true
	l.finishAt = now + l.serviceTime
}

// Tick hands every packet whose service completes at or before now to out,
// together with its completion time.
func (l *Link) Tick(now float64, out func(p Packet, at float64)) {
	for l.busy && l.finishAt <= now {
		done, at := l.current, l.finishAt
		l.startNext(at)
		out(done, at)
	}
}

// NextEventTime returns when the packet in service completes, or +Inf.
func (l *Link) NextEventTime() float64 {
	if !l.busy {
		return inf
	}
	return l.finishAt
}

// QueueLen returns the number of packets waiting behind the one in service.
func (l *Link) QueueLen() int {
	return len(l.queue)
}
