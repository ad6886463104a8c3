// Package radio defines the transceiver driver interface the link layer
// drives, along with the physical-layer configuration it is tuned with.
package radio

// Default physical-layer parameters for the 915 MHz ISM band.
const (
	DefaultFrequencyHz     = 915000000
	DefaultSpreadingFactor = 7
	DefaultBandwidthHz     = 125000
	DefaultCodingRate      = 5
	DefaultTxPowerDBm      = 20
	DefaultPreambleLength  = 8
	DefaultSyncWord        = 0x12
)

// Config holds LoRa physical-layer parameters.
type Config struct {
	FrequencyHz     uint32
	SpreadingFactor int
	BandwidthHz     uint32
	CodingRate      int
	TxPowerDBm      int
	PreambleLength  int
	SyncWord        byte
}

// DefaultConfig returns the stock tuning for the 915 MHz band.
func DefaultConfig() Config {
	return Config{
		FrequencyHz:     DefaultFrequencyHz,
		SpreadingFactor: DefaultSpreadingFactor,
		BandwidthHz:     DefaultBandwidthHz,
		CodingRate:      DefaultCodingRate,
		TxPowerDBm:      DefaultTxPowerDBm,
		PreambleLength:  DefaultPreambleLength,
		SyncWord:        DefaultSyncWord,
	}
}

// Reception is one received transmission with its signal readings.
type Reception struct {
	Data []byte
	RSSI int16   // dBm
	SNR  float32 // dB
}

// Radio is implemented by transceiver drivers. The link layer never
// blocks on a Radio: Transmit covers one airtime-bounded send and
// PollReceive returns immediately.
type Radio interface {
	// Configure applies the physical-layer parameters. Drivers may be
	// reconfigured at any time between transmissions.
	Configure(cfg Config) error
	// Transmit sends one encoded frame over the air.
	Transmit(data []byte) error
	// PollReceive returns the next pending reception, or nil if none is
	// waiting. It never blocks.
	PollReceive() (*Reception, error)
	// Sleep puts the transceiver into its low-power state.
	Sleep() error
	// Wake restores the transceiver from sleep.
	Wake() error
}
