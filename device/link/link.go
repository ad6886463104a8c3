// Package link implements the radio link layer for a telemetry station.
//
// The Link sits between payload producers and the transceiver driver,
// advancing only when its Tick is called from a fixed-rate control loop.
// It handles:
//   - Prioritized transmission: five bounded FIFOs, emergency traffic first
//   - Single-flight delivery: at most one frame awaiting an ACK at a time
//   - Retries: ACK timeout with a bounded attempt count, NACK fast retry
//   - Receive dispatch: incremental framing, checksum validation, auto-ACK
//   - Link quality: RSSI/SNR windows driving spreading-factor adaptation
//
// Every Enqueue call is synchronous: the payload is encoded and queued (or
// rejected) before the call returns. Transmission, acknowledgment, and
// retry all happen inside Tick.
package link

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aeriden/stratolink/core/codec"
	"github.com/aeriden/stratolink/core/quality"
	"github.com/aeriden/stratolink/radio"
)

const (
	// DefaultAckTimeout is the default time to wait for an ACK after a
	// transmission before retrying.
	DefaultAckTimeout = 2 * time.Second

	// DefaultMaxRetries is the default total number of transmissions per
	// entry, the first attempt included.
	DefaultMaxRetries = 3

	// DefaultQueueDepth is the default capacity of each priority level.
	DefaultQueueDepth = 10

	// LowPowerTxDBm is the transmit power used in low-power mode.
	LowPowerTxDBm = 10
)

// ErrNoRadio is returned by New when no radio driver is supplied.
var ErrNoRadio = errors.New("radio driver is required")

// Config configures a Link.
type Config struct {
	// Radio is the transceiver driver. Required.
	Radio radio.Radio

	// RadioConfig is the physical-layer tuning applied at construction.
	// The zero value selects radio.DefaultConfig().
	RadioConfig radio.Config

	// AckTimeout is the maximum wait for an ACK per transmission.
	// Default: 2 seconds.
	AckTimeout time.Duration

	// MaxRetries is the total number of transmissions per entry before it
	// is dropped, counting the first attempt. Default: 3.
	MaxRetries int

	// QueueDepth is the capacity of each priority level. When a level is
	// full its oldest entry is evicted to make room. Default: 10.
	QueueDepth int

	// WindowSize is the number of receptions averaged for link-quality
	// readings. Default: quality.DefaultWindowSize.
	WindowSize int

	// AutoAck makes the link acknowledge every valid data frame it
	// receives. Ground stations enable this; the airborne side leaves it
	// off and lets its peers acknowledge.
	AutoAck bool

	// DisableAdaptiveSF turns off automatic spreading-factor adaptation.
	// Low-power overrides still apply.
	DisableAdaptiveSF bool

	// OnReceive is called for every valid non-ACK/NACK frame. May be nil.
	OnReceive func(frame *codec.Frame)

	// OnDelivered is called when an entry is acknowledged. May be nil.
	OnDelivered func(seq uint16, ptype codec.PacketType, attempts int)

	// OnDeliveryFailed is called when an entry is dropped after exhausting
	// its attempts or being evicted mid-flight. May be nil.
	OnDeliveryFailed func(seq uint16, ptype codec.PacketType, attempts int)

	// Logger for link events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Stats is a point-in-time summary of link quality.
type Stats struct {
	AvgRSSI         int16   // dBm, quality.NoSignal when no receptions yet
	AvgSNR          float32 // dB, quality.NoSignal when no receptions yet
	LossRate        float64 // ACK timeouts per frame handed to the radio
	SpreadingFactor int
}

// deliveryEvent carries the identity of a resolved entry to a callback.
type deliveryEvent struct {
	seq      uint16
	ptype    codec.PacketType
	attempts int
}

// tickEvents accumulates callback work while the link mutex is held, so
// callbacks run unlocked and may call back into the Link.
type tickEvents struct {
	received  []*codec.Frame
	delivered []deliveryEvent
	failed    []deliveryEvent
}

// Link is the delivery manager. One Link owns the transmit queues, the
// sequence counter, the in-flight entry, the framer, and the quality
// state; a single mutex serializes all of it.
type Link struct {
	cfg   Config
	log   *slog.Logger
	radio radio.Radio

	mu         sync.Mutex
	radioCfg   radio.Config
	txPowerCfg int // configured TX power, restored after low-power mode
	queue      *transmitQueue
	framer     *codec.Framer
	monitor    *quality.Monitor
	controller *quality.Controller
	inflight   *queueEntry
	nextSeq    uint16
	heartbeat  uint8
	lowPower   bool
	sleeping   bool

	counters LinkCounters

	// nowFn allows overriding time.Now() for testing. It stamps enqueue
	// times; Tick uses the caller's clock.
	nowFn func() time.Time
}

// New creates a Link and applies the radio configuration.
func New(cfg Config) (*Link, error) {
	if cfg.Radio == nil {
		return nil, ErrNoRadio
	}
	if cfg.RadioConfig == (radio.Config{}) {
		cfg.RadioConfig = radio.DefaultConfig()
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultAckTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultQueueDepth
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	l := &Link{
		cfg:        cfg,
		log:        logger.WithGroup("link"),
		radio:      cfg.Radio,
		radioCfg:   cfg.RadioConfig,
		txPowerCfg: cfg.RadioConfig.TxPowerDBm,
		queue:      newTransmitQueue(cfg.QueueDepth),
		monitor:    quality.NewMonitor(cfg.WindowSize),
		nowFn:      time.Now,
	}
	l.framer = codec.NewFramer(codec.FramerConfig{OnError: l.onFramingError})
	l.controller = quality.NewController(quality.ControllerConfig{
		Initial:  cfg.RadioConfig.SpreadingFactor,
		Disabled: cfg.DisableAdaptiveSF,
		Apply:    l.applySpreadingFactor,
	})

	if err := l.radio.Configure(l.radioCfg); err != nil {
		return nil, fmt.Errorf("configure radio: %w", err)
	}
	return l, nil
}

// Tick advances the link by one control-loop step: drain and dispatch
// received bytes, resolve the in-flight entry's ACK timeout, then transmit
// the next queued entry if the link is idle. All work completes before
// Tick returns.
func (l *Link) Tick(now time.Time) {
	var ev tickEvents
	l.mu.Lock()
	l.receivePhase(&ev)
	l.resolvePhase(now, &ev)
	l.transmitPhase(now, &ev)
	l.mu.Unlock()
	l.fire(&ev)
}

// Enqueue encodes a payload and inserts it into the transmit queue at the
// given priority, returning the assigned sequence number. The payload is
// rejected synchronously if the codec refuses it; nothing is queued and
// the sequence counter does not advance.
func (l *Link) Enqueue(ptype codec.PacketType, payload []byte, prio Priority) (uint16, error) {
	var ev tickEvents
	l.mu.Lock()
	seq, err := l.enqueueLocked(ptype, payload, prio, &ev)
	l.mu.Unlock()
	l.fire(&ev)
	return seq, err
}

// EnqueueHeartbeat queues a heartbeat frame carrying a rolling counter.
func (l *Link) EnqueueHeartbeat(prio ...Priority) (uint16, error) {
	l.mu.Lock()
	counter := l.heartbeat
	l.heartbeat++
	l.mu.Unlock()
	return l.Enqueue(codec.TypeHeartbeat, codec.BuildHeartbeat(counter), override(PriorityStatus, prio))
}

// EnqueueTelemetry queues a housekeeping telemetry frame.
func (l *Link) EnqueueTelemetry(t codec.Telemetry, prio ...Priority) (uint16, error) {
	return l.Enqueue(codec.TypeTelemetry, codec.BuildTelemetry(t), override(PriorityTelemetry, prio))
}

// EnqueuePosition queues a GPS position frame.
func (l *Link) EnqueuePosition(p codec.Position, prio ...Priority) (uint16, error) {
	return l.Enqueue(codec.TypePosition, codec.BuildPosition(p), override(PriorityPosition, prio))
}

// EnqueueImageChunk queues one chunk of a camera image.
func (l *Link) EnqueueImageChunk(c codec.ImageChunk, prio ...Priority) (uint16, error) {
	payload, err := codec.BuildImageChunk(c)
	if err != nil {
		l.counters.PayloadsRejected.Add(1)
		return 0, err
	}
	return l.Enqueue(codec.TypeImageChunk, payload, override(PriorityBulk, prio))
}

// EnqueueAlert queues an alert frame at emergency priority.
func (l *Link) EnqueueAlert(a codec.Alert, prio ...Priority) (uint16, error) {
	return l.Enqueue(codec.TypeAlert, codec.BuildAlert(a), override(PriorityEmergency, prio))
}

// EnqueueStatus queues a free-text status frame. Text longer than
// codec.MaxStatusLen is truncated; this is the documented policy for text
// payloads, unlike structured payloads which are rejected instead.
func (l *Link) EnqueueStatus(text string, prio ...Priority) (uint16, error) {
	return l.Enqueue(codec.TypeStatus, codec.BuildStatus(text), override(PriorityStatus, prio))
}

// EnqueueDebug queues a free-text debug frame, truncated at
// codec.MaxDebugLen.
func (l *Link) EnqueueDebug(text string, prio ...Priority) (uint16, error) {
	return l.Enqueue(codec.TypeDebug, codec.BuildDebug(text), override(PriorityStatus, prio))
}

// SendNack transmits a negative acknowledgment for seq immediately,
// bypassing the queue. NACKs are fire-and-forget: they are not retried
// and do not await acknowledgment.
func (l *Link) SendNack(seq uint16, reason uint8) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	payload := codec.BuildNack(codec.NackPayload{Seq: seq, Reason: reason})
	data, err := codec.Encode(codec.TypeNack, l.nextSeqLocked(), payload)
	if err != nil {
		return err
	}
	if err := l.radio.Transmit(data); err != nil {
		l.counters.TransceiverErrors.Add(1)
		return fmt.Errorf("transmit nack: %w", err)
	}
	l.counters.NacksSent.Add(1)
	l.log.Debug("nack sent", "seq", seq, "reason", reason)
	return nil
}

// EnterLowPower forces the most robust spreading factor and drops the
// transmit power. Adaptation is suspended until ExitLowPower.
func (l *Link) EnterLowPower() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lowPower {
		return nil
	}
	l.lowPower = true
	l.radioCfg.TxPowerDBm = LowPowerTxDBm
	l.controller.Override(quality.MaxSpreadingFactor)
	l.log.Info("entering low-power mode")
	return l.configureRadioLocked()
}

// ExitLowPower restores the configured transmit power and the spreading
// factor adaptation had reached before the override.
func (l *Link) ExitLowPower() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.lowPower {
		return nil
	}
	l.lowPower = false
	l.radioCfg.TxPowerDBm = l.txPowerCfg
	l.controller.Restore()
	l.log.Info("leaving low-power mode")
	return l.configureRadioLocked()
}

// Sleep puts the radio into its low-power state. Nothing is transmitted
// until Wake; enqueued entries wait in their queues.
func (l *Link) Sleep() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sleeping {
		return nil
	}
	if err := l.radio.Sleep(); err != nil {
		l.counters.TransceiverErrors.Add(1)
		return fmt.Errorf("radio sleep: %w", err)
	}
	l.sleeping = true
	l.log.Info("radio sleeping")
	return nil
}

// Wake restores the radio from sleep.
func (l *Link) Wake() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.sleeping {
		return nil
	}
	if err := l.radio.Wake(); err != nil {
		l.counters.TransceiverErrors.Add(1)
		return fmt.Errorf("radio wake: %w", err)
	}
	l.sleeping = false
	l.log.Info("radio awake")
	return nil
}

// QueueDepth reports the number of entries queued at one priority level.
func (l *Link) QueueDepth(p Priority) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.depthAt(p)
}

// QueueDepthTotal reports the number of entries across all levels.
func (l *Link) QueueDepthTotal() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.totalDepth()
}

// Stats returns the current link-quality summary.
func (l *Link) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	sent := l.counters.FramesSent.Load()
	timeouts := l.counters.AckTimeouts.Load()
	var loss float64
	if sent > 0 {
		loss = float64(timeouts) / float64(sent)
	}
	return Stats{
		AvgRSSI:         l.monitor.AverageRSSI(),
		AvgSNR:          l.monitor.AverageSNR(),
		LossRate:        loss,
		SpreadingFactor: l.controller.SpreadingFactor(),
	}
}

// Counters exposes the link's statistics counters.
func (l *Link) Counters() *LinkCounters {
	return &l.counters
}

// ResetStatistics zeroes all counters and clears the quality windows.
func (l *Link) ResetStatistics() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counters.Reset()
	l.monitor.Reset()
}

// receivePhase drains the radio, feeds the framer, and dispatches every
// assembled frame.
func (l *Link) receivePhase(ev *tickEvents) {
	for {
		rec, err := l.radio.PollReceive()
		if err != nil {
			l.counters.ReceiveErrors.Add(1)
			l.log.Warn("receive poll failed", "error", err)
			return
		}
		if rec == nil {
			return
		}
		l.monitor.Record(rec.RSSI, rec.SNR)
		for _, frame := range l.framer.Feed(rec.Data) {
			frame.RSSI = rec.RSSI
			frame.SNR = rec.SNR
			l.handleFrame(frame, ev)
		}
	}
}

func (l *Link) handleFrame(f *codec.Frame, ev *tickEvents) {
	l.counters.FramesReceived.Add(1)

	switch f.Type {
	case codec.TypeAck:
		l.handleAck(f, ev)
	case codec.TypeNack:
		l.handleNack(f)
	default:
		if l.cfg.AutoAck {
			l.sendAck(f)
		}
		ev.received = append(ev.received, f)
	}
}

func (l *Link) handleAck(f *codec.Frame, ev *tickEvents) {
	ack, err := codec.ParseAck(f.Payload)
	if err != nil {
		l.counters.ReceiveErrors.Add(1)
		l.log.Debug("malformed ack", "error", err)
		return
	}
	l.counters.AcksReceived.Add(1)

	// The receiver reports the RSSI it saw for our transmission; that is
	// the reading that matters for choosing our spreading factor.
	l.controller.Adapt(int16(ack.RSSI))

	if l.inflight == nil || l.inflight.seq != ack.Seq {
		l.counters.UnknownAcks.Add(1)
		l.log.Debug("ack for unknown sequence", "seq", ack.Seq)
		return
	}

	e := l.inflight
	l.inflight = nil
	l.queue.remove(e.seq)
	l.log.Debug("delivered", "seq", e.seq, "type", e.ptype, "attempts", e.attempts)
	ev.delivered = append(ev.delivered, deliveryEvent{e.seq, e.ptype, e.attempts})
}

func (l *Link) handleNack(f *codec.Frame) {
	nack, err := codec.ParseNack(f.Payload)
	if err != nil {
		l.counters.ReceiveErrors.Add(1)
		l.log.Debug("malformed nack", "error", err)
		return
	}
	l.counters.NacksReceived.Add(1)

	if l.inflight == nil || l.inflight.seq != nack.Seq {
		l.counters.UnknownAcks.Add(1)
		l.log.Debug("nack for unknown sequence", "seq", nack.Seq)
		return
	}

	// The peer saw the frame but rejected it. Retry at the next transmit
	// opportunity without waiting out the ACK timeout; attempts are
	// unchanged.
	l.inflight.awaitingAck = false
	l.inflight = nil
	l.log.Debug("nack received", "seq", nack.Seq, "reason", nack.Reason)
}

// sendAck transmits an acknowledgment for a received frame, bypassing the
// queue. The payload carries the observed RSSI back to the sender.
func (l *Link) sendAck(f *codec.Frame) {
	payload := codec.BuildAck(codec.AckPayload{
		Seq:     f.Seq,
		AckType: uint8(f.Type),
		RSSI:    clampRSSI(f.RSSI),
	})
	data, err := codec.Encode(codec.TypeAck, l.nextSeqLocked(), payload)
	if err != nil {
		return
	}
	if err := l.radio.Transmit(data); err != nil {
		l.counters.TransceiverErrors.Add(1)
		l.log.Warn("ack transmit failed", "seq", f.Seq, "error", err)
		return
	}
	l.counters.AcksSent.Add(1)
}

// resolvePhase checks the in-flight entry against the ACK timeout.
func (l *Link) resolvePhase(now time.Time, ev *tickEvents) {
	e := l.inflight
	if e == nil {
		return
	}
	if now.Sub(e.lastTransmit) < l.cfg.AckTimeout {
		return
	}

	l.counters.AckTimeouts.Add(1)
	e.awaitingAck = false
	l.inflight = nil

	if e.attempts >= l.cfg.MaxRetries {
		l.queue.remove(e.seq)
		l.counters.DeliveryFailures.Add(1)
		l.log.Warn("delivery failed",
			"seq", e.seq, "type", e.ptype, "attempts", e.attempts,
			"age", now.Sub(e.enqueueTime), "enqueue_rssi", e.avgRSSI)
		ev.failed = append(ev.failed, deliveryEvent{e.seq, e.ptype, e.attempts})
		return
	}
	// Still queued at its level's head; the transmit phase this same tick
	// may retransmit it.
	l.log.Debug("ack timeout", "seq", e.seq, "attempt", e.attempts)
}

// transmitPhase sends the highest-priority queued entry if no entry is
// awaiting an ACK.
func (l *Link) transmitPhase(now time.Time, ev *tickEvents) {
	if l.sleeping || l.inflight != nil {
		return
	}
	e := l.queue.peek()
	if e == nil {
		return
	}

	e.attempts++
	e.lastTransmit = now

	if err := l.radio.Transmit(e.data); err != nil {
		// A failed hand-off to the radio consumes an attempt just like an
		// unacknowledged transmission, but there is no ACK to wait for.
		l.counters.TransceiverErrors.Add(1)
		l.log.Warn("transmit failed", "seq", e.seq, "attempt", e.attempts, "error", err)
		if e.attempts >= l.cfg.MaxRetries {
			l.queue.remove(e.seq)
			l.counters.DeliveryFailures.Add(1)
			ev.failed = append(ev.failed, deliveryEvent{e.seq, e.ptype, e.attempts})
		}
		return
	}

	l.counters.FramesSent.Add(1)
	e.awaitingAck = true
	l.inflight = e
	l.log.Debug("transmitted",
		"seq", e.seq, "type", e.ptype, "priority", e.priority, "attempt", e.attempts)
}

func (l *Link) enqueueLocked(ptype codec.PacketType, payload []byte, prio Priority, ev *tickEvents) (uint16, error) {
	if prio > PriorityStatus {
		prio = PriorityStatus
	}

	// Encode with the candidate sequence number; the counter advances only
	// when the payload is accepted, so rejected payloads leave no gap.
	seq := l.nextSeq
	data, err := codec.Encode(ptype, seq, payload)
	if err != nil {
		l.counters.PayloadsRejected.Add(1)
		return 0, err
	}
	l.nextSeq++

	e := &queueEntry{
		ptype:       ptype,
		seq:         seq,
		priority:    prio,
		data:        data,
		enqueueTime: l.nowFn(),
		avgRSSI:     l.monitor.AverageRSSI(),
		avgSNR:      l.monitor.AverageSNR(),
	}

	if evicted := l.queue.push(e); evicted != nil {
		l.counters.QueueOverflows.Add(1)
		l.log.Warn("queue overflow", "priority", prio, "evicted_seq", evicted.seq)
		if evicted == l.inflight {
			// The evicted entry was awaiting an ACK; abandon the wait so
			// the link does not stall on a frame that no longer exists.
			l.inflight = nil
			l.counters.DeliveryFailures.Add(1)
			ev.failed = append(ev.failed, deliveryEvent{evicted.seq, evicted.ptype, evicted.attempts})
		}
	}

	l.log.Debug("enqueued", "seq", seq, "type", ptype, "priority", prio)
	return seq, nil
}

// fire invokes the callbacks collected during a locked section. It must
// be called without the link mutex held.
func (l *Link) fire(ev *tickEvents) {
	if l.cfg.OnReceive != nil {
		for _, f := range ev.received {
			l.cfg.OnReceive(f)
		}
	}
	if l.cfg.OnDelivered != nil {
		for _, d := range ev.delivered {
			l.cfg.OnDelivered(d.seq, d.ptype, d.attempts)
		}
	}
	if l.cfg.OnDeliveryFailed != nil {
		for _, d := range ev.failed {
			l.cfg.OnDeliveryFailed(d.seq, d.ptype, d.attempts)
		}
	}
}

// onFramingError classifies framer errors into the statistics counters.
func (l *Link) onFramingError(err error) {
	switch {
	case errors.Is(err, codec.ErrFraming):
		l.counters.FramingErrors.Add(1)
	case errors.Is(err, codec.ErrHeaderChecksumMismatch),
		errors.Is(err, codec.ErrPayloadChecksumMismatch):
		l.counters.ChecksumErrors.Add(1)
	default:
		l.counters.ReceiveErrors.Add(1)
	}
	l.log.Debug("framing error", "error", err)
}

// applySpreadingFactor is the adaptive controller's apply hook. It runs
// with the link mutex held.
func (l *Link) applySpreadingFactor(sf int) {
	l.radioCfg.SpreadingFactor = sf
	if err := l.radio.Configure(l.radioCfg); err != nil {
		l.counters.TransceiverErrors.Add(1)
		l.log.Warn("radio reconfigure failed", "sf", sf, "error", err)
		return
	}
	l.log.Info("spreading factor changed", "sf", sf)
}

func (l *Link) configureRadioLocked() error {
	if err := l.radio.Configure(l.radioCfg); err != nil {
		l.counters.TransceiverErrors.Add(1)
		return fmt.Errorf("configure radio: %w", err)
	}
	return nil
}

// nextSeqLocked returns the next sequence number. The counter wraps from
// 65535 to 0 with no gap.
func (l *Link) nextSeqLocked() uint16 {
	seq := l.nextSeq
	l.nextSeq++
	return seq
}

func override(def Priority, o []Priority) Priority {
	if len(o) > 0 {
		return o[0]
	}
	return def
}

func clampRSSI(v int16) int8 {
	if v < -128 {
		return -128
	}
	if v > 127 {
		return 127
	}
	return int8(v)
}
