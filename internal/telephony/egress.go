package telephony

import "sync"

// EgressQueue buffers outbound telephony frames with a hard capacity.
// There is no cross-call backpressure: on overflow the oldest unsent frames
// are dropped and counted, never blocking the producer.
type EgressQueue struct {
	mu       sync.Mutex
	frames   [][]byte
	capacity int
	dropped  int
}

func NewEgressQueue(capacity int) *EgressQueue {
	if capacity <= 0 {
		capacity = 200
	}
	return &EgressQueue{capacity: capacity}
}

// Push enqueues one frame, evicting the oldest frames if needed.
// Returns how many frames were dropped to make room.
func (q *EgressQueue) Push(frame []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	dropped := 0
	for len(q.frames) >= q.capacity {
		q.frames = q.frames[1:]
		dropped++
	}
	q.frames = append(q.frames, frame)
	q.dropped += dropped
	return dropped
}

// Pop dequeues the oldest frame.
func (q *EgressQueue) Pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) == 0 {
		return nil, false
	}
	frame := q.frames[0]
	q.frames = q.frames[1:]
	return frame, true
}

// Flush drains every queued frame without blocking and returns the count.
// Used on barge-in: queued audio belongs to a cancelled response.
func (q *EgressQueue) Flush() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.frames)
	q.frames = q.frames[:0]
	return n
}

// Len returns the number of queued frames.
func (q *EgressQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Dropped returns the cumulative overflow-drop count.
func (q *EgressQueue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
