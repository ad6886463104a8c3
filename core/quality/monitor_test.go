package quality

import "testing"

func TestMonitorEmpty(t *testing.T) {
	m := NewMonitor(10)

	if got := m.AverageRSSI(); got != NoSignal {
		t.Errorf("AverageRSSI() = %d, want %d", got, NoSignal)
	}
	if got := m.AverageSNR(); got != NoSignal {
		t.Errorf("AverageSNR() = %v, want %d", got, NoSignal)
	}
	if got := m.SampleCount(); got != 0 {
		t.Errorf("SampleCount() = %d, want 0", got)
	}
}

func TestMonitorPartialFill(t *testing.T) {
	// Averages must cover only recorded samples, never empty slots, and a
	// zero SNR reading is a real sample.
	m := NewMonitor(10)
	m.Record(-100, 0)
	m.Record(-90, 5.5)
	m.Record(-110, -2.5)

	if got := m.AverageRSSI(); got != -100 {
		t.Errorf("AverageRSSI() = %d, want -100", got)
	}
	if got := m.AverageSNR(); got != 1.0 {
		t.Errorf("AverageSNR() = %v, want 1", got)
	}
	if got := m.SampleCount(); got != 3 {
		t.Errorf("SampleCount() = %d, want 3", got)
	}
}

func TestMonitorOverwritesOldest(t *testing.T) {
	m := NewMonitor(4)
	m.Record(-120, 0)
	m.Record(-120, 0)
	m.Record(-120, 0)
	m.Record(-120, 0)
	// The next four displace every -120 sample.
	for i := 0; i < 4; i++ {
		m.Record(-60, 8)
	}

	if got := m.AverageRSSI(); got != -60 {
		t.Errorf("AverageRSSI() = %d, want -60", got)
	}
	if got := m.AverageSNR(); got != 8 {
		t.Errorf("AverageSNR() = %v, want 8", got)
	}
	if got := m.SampleCount(); got != 4 {
		t.Errorf("SampleCount() = %d, want 4", got)
	}
}

func TestMonitorReset(t *testing.T) {
	m := NewMonitor(10)
	m.Record(-85, 3)
	m.Reset()

	if got := m.AverageRSSI(); got != NoSignal {
		t.Errorf("AverageRSSI() after Reset = %d, want %d", got, NoSignal)
	}
	if got := m.SampleCount(); got != 0 {
		t.Errorf("SampleCount() after Reset = %d, want 0", got)
	}
}

func TestMonitorDefaultWindowSize(t *testing.T) {
	m := NewMonitor(0)
	for i := 0; i < DefaultWindowSize+3; i++ {
		m.Record(-90, 1)
	}
	if got := m.SampleCount(); got != DefaultWindowSize {
		t.Errorf("SampleCount() = %d, want %d", got, DefaultWindowSize)
	}
}
