package link

import (
	"time"

	"github.com/aeriden/stratolink/core/codec"
)

// Priority orders transmit traffic. Lower values are transmitted first.
// Values above PriorityStatus are treated as PriorityStatus.
type Priority uint8

const (
	PriorityEmergency Priority = iota
	PriorityPosition
	PriorityTelemetry
	PriorityBulk
	PriorityStatus

	numPriorities = 5
)

func (p Priority) String() string {
	switch p {
	case PriorityEmergency:
		return "emergency"
	case PriorityPosition:
		return "position"
	case PriorityTelemetry:
		return "telemetry"
	case PriorityBulk:
		return "bulk"
	case PriorityStatus:
		return "status"
	default:
		return "unknown"
	}
}

// queueEntry is one frame awaiting or undergoing transmission. The wire
// bytes are encoded once at enqueue time and reused for every attempt.
type queueEntry struct {
	ptype        codec.PacketType
	seq          uint16
	priority     Priority
	data         []byte
	attempts     int
	enqueueTime  time.Time
	lastTransmit time.Time
	awaitingAck  bool

	// Link-quality averages observed when the entry was created.
	avgRSSI int16
	avgSNR  float32
}

// transmitQueue is five independent bounded FIFOs, one per priority level.
type transmitQueue struct {
	levels [numPriorities][]*queueEntry
	depth  int
}

func newTransmitQueue(depth int) *transmitQueue {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &transmitQueue{depth: depth}
}

// push appends the entry to its level's tail. If the level is full, that
// level's oldest entry is evicted (never another level's) and returned so
// the caller can account for it.
func (q *transmitQueue) push(e *queueEntry) (evicted *queueEntry) {
	level := q.levels[e.priority]
	if len(level) >= q.depth {
		evicted = level[0]
		copy(level, level[1:])
		level = level[:len(level)-1]
	}
	q.levels[e.priority] = append(level, e)
	return evicted
}

// peek returns the head of the highest-priority non-empty level, or nil if
// every level is empty. Strict priority: sustained high-priority traffic
// starves lower levels.
func (q *transmitQueue) peek() *queueEntry {
	for i := range q.levels {
		if len(q.levels[i]) > 0 {
			return q.levels[i][0]
		}
	}
	return nil
}

// remove deletes the first entry with the given sequence number. All
// levels are searched because an ACK does not carry a priority.
func (q *transmitQueue) remove(seq uint16) bool {
	for li := range q.levels {
		level := q.levels[li]
		for i, e := range level {
			if e.seq == seq {
				copy(level[i:], level[i+1:])
				level[len(level)-1] = nil
				q.levels[li] = level[:len(level)-1]
				return true
			}
		}
	}
	return false
}

// depthAt reports the number of entries queued at one priority level.
func (q *transmitQueue) depthAt(p Priority) int {
	if int(p) >= numPriorities {
		return 0
	}
	return len(q.levels[p])
}

// totalDepth reports the number of entries across all levels.
func (q *transmitQueue) totalDepth() int {
	total := 0
	for i := range q.levels {
		total += len(q.levels[i])
	}
	return total
}
