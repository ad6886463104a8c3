package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// Fixed payload sizes (bytes on the wire).
	HeartbeatSize = 1
	TelemetrySize = 33
	PositionSize  = 27
	AlertSize     = 75
	AckSize       = 4
	NackSize      = 3

	// AlertMessageSize is the fixed, zero-padded alert message field.
	AlertMessageSize = 64

	// ImageChunkHeaderSize is image ID(2) + chunk index(2) + chunk count(2).
	ImageChunkHeaderSize = 6
	// MaxImageChunkData is the largest chunk that fits a single frame.
	MaxImageChunkData = MaxPayloadSize - ImageChunkHeaderSize

	// MaxStatusLen and MaxDebugLen are the documented truncation caps for
	// the two free-text payload types. Structured payloads never truncate.
	MaxStatusLen = 100
	MaxDebugLen  = 150
)

var (
	ErrTelemetryTooShort  = errors.New("telemetry payload too short")
	ErrPositionTooShort   = errors.New("position payload too short")
	ErrImageChunkTooShort = errors.New("image chunk payload too short")
	ErrChunkTooLarge      = errors.New("image chunk data exceeds maximum size")
	ErrAlertTooShort      = errors.New("alert payload too short")
	ErrAckTooShort        = errors.New("ack payload too short")
	ErrNackTooShort       = errors.New("nack payload too short")
)

// AlertType identifies the condition an alert frame reports.
type AlertType uint8

const (
	AlertLowBattery        AlertType = 0x01
	AlertCriticalBattery   AlertType = 0x02
	AlertSystemError       AlertType = 0x03
	AlertSensorFailure     AlertType = 0x04
	AlertCommunicationLost AlertType = 0x05
	AlertMemoryFull        AlertType = 0x06
	AlertOverheating       AlertType = 0x07
)

// String returns a human-readable name for the alert type.
func (a AlertType) String() string {
	switch a {
	case AlertLowBattery:
		return "LOW_BATTERY"
	case AlertCriticalBattery:
		return "CRITICAL_BATTERY"
	case AlertSystemError:
		return "SYSTEM_ERROR"
	case AlertSensorFailure:
		return "SENSOR_FAILURE"
	case AlertCommunicationLost:
		return "COMMUNICATION_LOST"
	case AlertMemoryFull:
		return "MEMORY_FULL"
	case AlertOverheating:
		return "OVERHEATING"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(a))
	}
}

// Telemetry is a periodic housekeeping snapshot.
type Telemetry struct {
	Temperature float32 // °C
	Pressure    float32 // hPa
	Humidity    float32 // %RH
	BatteryV    float32 // volts
	BatteryA    float32 // amps
	BatteryPct  uint8
	Uptime      uint32 // seconds since boot
	RSSI        int8   // last observed downlink RSSI, dBm
	FreeHeap    uint16 // bytes
	CPUTemp     float32 // °C
	PowerState  uint8
}

// Position is a GPS fix.
type Position struct {
	Latitude   float32 // degrees
	Longitude  float32 // degrees
	Altitude   float32 // meters
	Satellites uint8
	Speed      float32 // m/s over ground
	Course     float32 // degrees
	FixTime    uint32  // GPS fix timestamp
	HDOP       uint8
	Quality    uint8
}

// ImageChunk is one piece of a captured image. ChunkCount pieces with the
// same ImageID reassemble into the whole image.
type ImageChunk struct {
	ImageID    uint16
	ChunkIndex uint16
	ChunkCount uint16
	Data       []byte
}

// Alert reports an abnormal condition. Message is truncated to
// AlertMessageSize bytes on the wire.
type Alert struct {
	Type        AlertType
	Timestamp   uint32
	Severity    uint8
	Message     string
	SensorValue float32
	SensorID    uint8
}

// AckPayload acknowledges receipt of the frame with sequence number Seq.
// RSSI is the receiver's observed signal strength for that frame, fed back
// to the sender's adaptive controller.
type AckPayload struct {
	Seq     uint16
	AckType uint8
	RSSI    int8
}

// NACK reason codes.
const (
	NackReasonParseFailure = 0x01
	NackReasonBusy         = 0x02
)

// NackPayload asks the sender to retransmit the frame with sequence number
// Seq without waiting for the ACK timeout.
type NackPayload struct {
	Seq    uint16
	Reason uint8
}

// -----------------------------------------------------------------------------
// Parsers
// -----------------------------------------------------------------------------

// ParseTelemetry parses a TELEMETRY payload.
func ParseTelemetry(data []byte) (*Telemetry, error) {
	if len(data) < TelemetrySize {
		return nil, ErrTelemetryTooShort
	}
	return &Telemetry{
		Temperature: float32FromBytes(data[0:4]),
		Pressure:    float32FromBytes(data[4:8]),
		Humidity:    float32FromBytes(data[8:12]),
		BatteryV:    float32FromBytes(data[12:16]),
		BatteryA:    float32FromBytes(data[16:20]),
		BatteryPct:  data[20],
		Uptime:      binary.BigEndian.Uint32(data[21:25]),
		RSSI:        int8(data[25]),
		FreeHeap:    binary.BigEndian.Uint16(data[26:28]),
		CPUTemp:     float32FromBytes(data[28:32]),
		PowerState:  data[32],
	}, nil
}

// ParsePosition parses a POSITION payload.
func ParsePosition(data []byte) (*Position, error) {
	if len(data) < PositionSize {
		return nil, ErrPositionTooShort
	}
	return &Position{
		Latitude:   float32FromBytes(data[0:4]),
		Longitude:  float32FromBytes(data[4:8]),
		Altitude:   float32FromBytes(data[8:12]),
		Satellites: data[12],
		Speed:      float32FromBytes(data[13:17]),
		Course:     float32FromBytes(data[17:21]),
		FixTime:    binary.BigEndian.Uint32(data[21:25]),
		HDOP:       data[25],
		Quality:    data[26],
	}, nil
}

// ParseImageChunk parses an IMAGE_CHUNK payload.
func ParseImageChunk(data []byte) (*ImageChunk, error) {
	if len(data) < ImageChunkHeaderSize {
		return nil, ErrImageChunkTooShort
	}
	chunk := &ImageChunk{
		ImageID:    binary.BigEndian.Uint16(data[0:2]),
		ChunkIndex: binary.BigEndian.Uint16(data[2:4]),
		ChunkCount: binary.BigEndian.Uint16(data[4:6]),
		Data:       make([]byte, len(data)-ImageChunkHeaderSize),
	}
	copy(chunk.Data, data[ImageChunkHeaderSize:])
	return chunk, nil
}

// ParseAlert parses an ALERT payload. Trailing zero padding is stripped from
// the message.
func ParseAlert(data []byte) (*Alert, error) {
	if len(data) < AlertSize {
		return nil, ErrAlertTooShort
	}
	msg := bytes.TrimRight(data[6:6+AlertMessageSize], "\x00")
	return &Alert{
		Type:        AlertType(data[0]),
		Timestamp:   binary.BigEndian.Uint32(data[1:5]),
		Severity:    data[5],
		Message:     string(msg),
		SensorValue: float32FromBytes(data[70:74]),
		SensorID:    data[74],
	}, nil
}

// ParseAck parses an ACK payload.
func ParseAck(data []byte) (*AckPayload, error) {
	if len(data) < AckSize {
		return nil, ErrAckTooShort
	}
	return &AckPayload{
		Seq:     binary.BigEndian.Uint16(data[0:2]),
		AckType: data[2],
		RSSI:    int8(data[3]),
	}, nil
}

// ParseNack parses a NACK payload.
func ParseNack(data []byte) (*NackPayload, error) {
	if len(data) < NackSize {
		return nil, ErrNackTooShort
	}
	return &NackPayload{
		Seq:    binary.BigEndian.Uint16(data[0:2]),
		Reason: data[2],
	}, nil
}

func float32FromBytes(b []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}
