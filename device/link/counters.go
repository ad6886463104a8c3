package link

import "sync/atomic"

// LinkCounters tracks link-layer statistics using atomic counters.
// All fields are safe for concurrent access.
type LinkCounters struct {
	FramesSent        atomic.Uint32 // Frames accepted by the radio (including retransmissions)
	FramesReceived    atomic.Uint32 // Valid frames assembled from the receive stream
	AcksSent          atomic.Uint32 // ACK frames transmitted
	NacksSent         atomic.Uint32 // NACK frames transmitted
	AcksReceived      atomic.Uint32 // ACK frames received
	NacksReceived     atomic.Uint32 // NACK frames received
	AckTimeouts       atomic.Uint32 // In-flight entries that timed out waiting for an ACK
	DeliveryFailures  atomic.Uint32 // Entries dropped after exhausting their attempts
	QueueOverflows    atomic.Uint32 // Entries evicted because their priority level was full
	FramingErrors     atomic.Uint32 // Bad sync, bad header checksum, or impossible declared length
	ChecksumErrors    atomic.Uint32 // Complete frames rejected by checksum validation
	ReceiveErrors     atomic.Uint32 // Radio poll failures and malformed control payloads
	TransceiverErrors atomic.Uint32 // Transmit and reconfigure failures reported by the radio
	PayloadsRejected  atomic.Uint32 // Enqueue calls rejected before anything was queued
	UnknownAcks       atomic.Uint32 // ACK/NACK frames naming no in-flight sequence
}

// CountersSnapshot is a plain-value copy of LinkCounters for reading.
type CountersSnapshot struct {
	FramesSent        uint32
	FramesReceived    uint32
	AcksSent          uint32
	NacksSent         uint32
	AcksReceived      uint32
	NacksReceived     uint32
	AckTimeouts       uint32
	DeliveryFailures  uint32
	QueueOverflows    uint32
	FramingErrors     uint32
	ChecksumErrors    uint32
	ReceiveErrors     uint32
	TransceiverErrors uint32
	PayloadsRejected  uint32
	UnknownAcks       uint32
}

// Snapshot returns a consistent point-in-time copy of all counters.
func (c *LinkCounters) Snapshot() CountersSnapshot {
	return CountersSnapshot{
		FramesSent:        c.FramesSent.Load(),
		FramesReceived:    c.FramesReceived.Load(),
		AcksSent:          c.AcksSent.Load(),
		NacksSent:         c.NacksSent.Load(),
		AcksReceived:      c.AcksReceived.Load(),
		NacksReceived:     c.NacksReceived.Load(),
		AckTimeouts:       c.AckTimeouts.Load(),
		DeliveryFailures:  c.DeliveryFailures.Load(),
		QueueOverflows:    c.QueueOverflows.Load(),
		FramingErrors:     c.FramingErrors.Load(),
		ChecksumErrors:    c.ChecksumErrors.Load(),
		ReceiveErrors:     c.ReceiveErrors.Load(),
		TransceiverErrors: c.TransceiverErrors.Load(),
		PayloadsRejected:  c.PayloadsRejected.Load(),
		UnknownAcks:       c.UnknownAcks.Load(),
	}
}

// Reset zeroes all counters.
func (c *LinkCounters) Reset() {
	c.FramesSent.Store(0)
	c.FramesReceived.Store(0)
	c.AcksSent.Store(0)
	c.NacksSent.Store(0)
	c.AcksReceived.Store(0)
	c.NacksReceived.Store(0)
	c.AckTimeouts.Store(0)
	c.DeliveryFailures.Store(0)
	c.QueueOverflows.Store(0)
	c.FramingErrors.Store(0)
	c.ChecksumErrors.Store(0)
	c.ReceiveErrors.Store(0)
	c.TransceiverErrors.Store(0)
	c.PayloadsRejected.Store(0)
	c.UnknownAcks.Store(0)
}
