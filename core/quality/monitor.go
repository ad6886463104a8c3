// Package quality tracks received signal quality over sliding sample
// windows and adapts the LoRa spreading factor to observed conditions.
package quality

const (
	// DefaultWindowSize is the number of recent receptions averaged.
	DefaultWindowSize = 10

	// NoSignal is returned by the averages when the window is empty.
	NoSignal = -128
)

// Monitor keeps the most recent signal strength and noise readings in two
// fixed-capacity circular windows. Averages cover only slots that have
// been written, so a cold start is not biased toward zero and a zero SNR
// reading is a legal sample.
type Monitor struct {
	rssi  []int16
	snr   []float32
	next  int
	count int
}

// NewMonitor returns a monitor holding the last windowSize samples.
// A non-positive windowSize selects DefaultWindowSize.
func NewMonitor(windowSize int) *Monitor {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Monitor{
		rssi: make([]int16, windowSize),
		snr:  make([]float32, windowSize),
	}
}

// Record stores one reception's readings, overwriting the oldest slot
// once the window is full.
func (m *Monitor) Record(rssi int16, snr float32) {
	m.rssi[m.next] = rssi
	m.snr[m.next] = snr
	m.next = (m.next + 1) % len(m.rssi)
	if m.count < len(m.rssi) {
		m.count++
	}
}

// AverageRSSI returns the mean signal strength in dBm over the filled
// portion of the window, or NoSignal if nothing has been recorded.
func (m *Monitor) AverageRSSI() int16 {
	if m.count == 0 {
		return NoSignal
	}
	sum := 0
	for i := 0; i < m.count; i++ {
		sum += int(m.rssi[i])
	}
	return int16(sum / m.count)
}

// AverageSNR returns the mean signal-to-noise ratio in dB over the filled
// portion of the window, or NoSignal if nothing has been recorded.
func (m *Monitor) AverageSNR() float32 {
	if m.count == 0 {
		return NoSignal
	}
	var sum float32
	for i := 0; i < m.count; i++ {
		sum += m.snr[i]
	}
	return sum / float32(m.count)
}

// SampleCount reports how many window slots hold data.
func (m *Monitor) SampleCount() int { return m.count }

// Reset discards all recorded samples.
func (m *Monitor) Reset() {
	m.next = 0
	m.count = 0
}
