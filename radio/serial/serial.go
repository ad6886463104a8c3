// Package serial drives an AT-command LoRa modem over a serial port.
//
// The modem speaks a line protocol: commands are sent as "AT+..." lines
// terminated with CRLF, and the modem answers each with "OK" or "+ERR=<code>".
// Received frames arrive asynchronously as "+RX=<hex>,<rssi>,<snr>" lines,
// which the driver parses and buffers for PollReceive. The driver implements
// radio.Radio, so a link.Link can run over real hardware unchanged.
package serial

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/aeriden/stratolink/radio"
)

// Compile-time interface check.
var _ radio.Radio = (*Modem)(nil)

const (
	// DefaultBaudRate is the default baud rate for the modem UART.
	DefaultBaudRate = 115200

	// DefaultCommandTimeout is the default wait for a command response.
	DefaultCommandTimeout = 2 * time.Second

	// DefaultReceiveBuffer is the default number of parsed receptions held
	// for PollReceive before the oldest unread ones are dropped.
	DefaultReceiveBuffer = 32

	// readBufSize is the size of the serial read buffer.
	readBufSize = 1024

	crlf = "\r\n"
)

var (
	// ErrNotConnected is returned when the port is not open.
	ErrNotConnected = errors.New("modem not connected")

	// ErrCommandFailed is returned when the modem answers a command with
	// an error response.
	ErrCommandFailed = errors.New("modem command failed")

	// ErrCommandTimeout is returned when the modem does not answer a
	// command in time.
	ErrCommandTimeout = errors.New("modem command timed out")
)

// Config holds the configuration for a modem driver.
type Config struct {
	// Port is the serial port path (e.g., "/dev/ttyUSB0" or "COM3").
	Port string
	// BaudRate is the serial baud rate. Defaults to 115200.
	BaudRate int
	// CommandTimeout is the maximum wait for a command response.
	// Defaults to 2 seconds.
	CommandTimeout time.Duration
	// ReceiveBuffer is the number of receptions buffered for PollReceive.
	// Defaults to 32.
	ReceiveBuffer int
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Modem implements radio.Radio over an AT-command serial modem.
type Modem struct {
	cfg  Config
	log  *slog.Logger
	rxCh chan *radio.Reception

	// cmdMu serializes command/response exchanges on the wire.
	cmdMu  sync.Mutex
	respCh chan string

	mu        sync.RWMutex
	port      serial.Port
	connected bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a modem driver with the given configuration. The port is not
// opened until Start.
func New(cfg Config) *Modem {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.ReceiveBuffer <= 0 {
		cfg.ReceiveBuffer = DefaultReceiveBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Modem{
		cfg:    cfg,
		log:    cfg.Logger.WithGroup("modem"),
		rxCh:   make(chan *radio.Reception, cfg.ReceiveBuffer),
		respCh: make(chan string, 4),
	}
}

// Start opens the serial port and begins reading modem lines.
func (m *Modem) Start(ctx context.Context) error {
	if m.cfg.Port == "" {
		return errors.New("serial port is required")
	}

	mode := &serial.Mode{
		BaudRate: m.cfg.BaudRate,
	}

	port, err := serial.Open(m.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("opening serial port: %w", err)
	}

	m.mu.Lock()
	m.port = port
	m.connected = true
	m.done = make(chan struct{})
	m.mu.Unlock()

	readCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	go m.readLoop(readCtx, port)

	m.log.Info("modem connected", "port", m.cfg.Port, "baud", m.cfg.BaudRate)
	return nil
}

// Stop closes the serial port and stops the read loop.
func (m *Modem) Stop() error {
	if m.cancel != nil {
		m.cancel()
	}

	m.mu.Lock()
	m.connected = false
	port := m.port
	m.port = nil
	done := m.done
	m.mu.Unlock()

	var err error
	if port != nil {
		err = port.Close()
	}

	// Wait for the read loop to finish
	if done != nil {
		<-done
	}

	return err
}

// IsConnected returns true if the serial port is open.
func (m *Modem) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Configure tunes the modem's RF parameters, one command per setting.
func (m *Modem) Configure(cfg radio.Config) error {
	for _, cmd := range configCommands(cfg) {
		if err := m.command(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Transmit hands one encoded frame to the modem for transmission.
func (m *Modem) Transmit(data []byte) error {
	return m.command("AT+TX=" + strings.ToUpper(hex.EncodeToString(data)))
}

// PollReceive returns the next buffered reception, or nil when none is
// pending. It never blocks.
func (m *Modem) PollReceive() (*radio.Reception, error) {
	select {
	case rec := <-m.rxCh:
		return rec, nil
	default:
	}
	if !m.IsConnected() {
		return nil, ErrNotConnected
	}
	return nil, nil
}

// Sleep puts the modem into its low-power state. The UART stays responsive
// enough to wake on traffic.
func (m *Modem) Sleep() error {
	return m.command("AT+SLEEP")
}

// Wake brings the modem out of sleep. Any UART activity wakes it; a bare
// probe also confirms it is answering again.
func (m *Modem) Wake() error {
	return m.command("AT")
}

// configCommands renders a radio configuration as modem commands.
func configCommands(cfg radio.Config) []string {
	return []string{
		fmt.Sprintf("AT+FREQ=%d", cfg.FrequencyHz),
		fmt.Sprintf("AT+SF=%d", cfg.SpreadingFactor),
		fmt.Sprintf("AT+BW=%d", cfg.BandwidthHz),
		fmt.Sprintf("AT+CR=%d", cfg.CodingRate),
		fmt.Sprintf("AT+PWR=%d", cfg.TxPowerDBm),
		fmt.Sprintf("AT+PRE=%d", cfg.PreambleLength),
		fmt.Sprintf("AT+SYNC=%02X", cfg.SyncWord),
	}
}

// command writes one command line and waits for the modem's answer. Only
// one exchange runs at a time; unsolicited +RX lines never interleave with
// responses because the read loop routes them separately.
func (m *Modem) command(cmd string) error {
	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()

	m.mu.RLock()
	port := m.port
	connected := m.connected
	m.mu.RUnlock()

	if !connected || port == nil {
		return ErrNotConnected
	}

	// Discard any stale answer from a previously timed-out command.
	for {
		select {
		case <-m.respCh:
			continue
		default:
		}
		break
	}

	if _, err := port.Write([]byte(cmd + crlf)); err != nil {
		return fmt.Errorf("writing to serial port: %w", err)
	}

	select {
	case resp := <-m.respCh:
		if resp != "OK" {
			return fmt.Errorf("%w: %q answered %q", ErrCommandFailed, cmd, resp)
		}
		return nil
	case <-time.After(m.cfg.CommandTimeout):
		return fmt.Errorf("%w: %q", ErrCommandTimeout, cmd)
	}
}

// readLoop continuously reads from the serial port and assembles lines.
func (m *Modem) readLoop(ctx context.Context, port serial.Port) {
	defer close(m.done)

	buf := make([]byte, readBufSize)
	var assemblyBuf []byte

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return // context cancelled, clean shutdown
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				m.handleDisconnect(err)
				return
			}
			m.log.Error("serial read error", "error", err)
			m.handleDisconnect(err)
			return
		}

		if n == 0 {
			continue
		}

		assemblyBuf = append(assemblyBuf, buf[:n]...)
		assemblyBuf = m.processLines(assemblyBuf)
	}
}

// processLines extracts complete lines from the buffer and dispatches them.
// Returns any trailing bytes that don't yet form a complete line.
func (m *Modem) processLines(data []byte) []byte {
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			return data
		}
		line := strings.TrimRight(string(data[:idx]), "\r")
		data = data[idx+1:]
		if line != "" {
			m.handleLine(line)
		}
	}
}

// handleLine routes one modem line. Unsolicited +RX receptions go to the
// receive buffer and command answers to the waiting command; anything else
// is logged and dropped.
func (m *Modem) handleLine(line string) {
	switch {
	case strings.HasPrefix(line, "+RX="):
		rec, err := parseReception(line)
		if err != nil {
			m.log.Debug("discarding malformed reception", "line", line, "error", err)
			return
		}
		select {
		case m.rxCh <- rec:
		default:
			m.log.Warn("receive buffer full, dropping frame", "bytes", len(rec.Data))
		}

	case line == "OK" || line == "ERROR" || strings.HasPrefix(line, "+ERR="):
		select {
		case m.respCh <- line:
		default:
			m.log.Debug("unexpected modem response", "line", line)
		}

	default:
		m.log.Debug("modem line", "line", line)
	}
}

// parseReception parses a "+RX=<hex>,<rssi>,<snr>" line.
func parseReception(line string) (*radio.Reception, error) {
	parts := strings.Split(strings.TrimPrefix(line, "+RX="), ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("want 3 fields, got %d", len(parts))
	}

	data, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	rssi, err := strconv.ParseInt(parts[1], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("rssi: %w", err)
	}
	snr, err := strconv.ParseFloat(parts[2], 32)
	if err != nil {
		return nil, fmt.Errorf("snr: %w", err)
	}

	return &radio.Reception{
		Data: data,
		RSSI: int16(rssi),
		SNR:  float32(snr),
	}, nil
}

func (m *Modem) handleDisconnect(err error) {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()

	if err != nil {
		m.log.Error("modem disconnected", "error", err)
	}
}
