package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// -----------------------------------------------------------------------------
// Payload builders. Each returns the wire bytes for one payload category.
// -----------------------------------------------------------------------------

// BuildHeartbeat builds a HEARTBEAT payload: a single rolling counter byte.
func BuildHeartbeat(counter uint8) []byte {
	return []byte{counter}
}

// BuildTelemetry builds a TELEMETRY payload.
func BuildTelemetry(t Telemetry) []byte {
	data := make([]byte, TelemetrySize)
	putFloat32(data[0:4], t.Temperature)
	putFloat32(data[4:8], t.Pressure)
	putFloat32(data[8:12], t.Humidity)
	putFloat32(data[12:16], t.BatteryV)
	putFloat32(data[16:20], t.BatteryA)
	data[20] = t.BatteryPct
	binary.BigEndian.PutUint32(data[21:25], t.Uptime)
	data[25] = uint8(t.RSSI)
	binary.BigEndian.PutUint16(data[26:28], t.FreeHeap)
	putFloat32(data[28:32], t.CPUTemp)
	data[32] = t.PowerState
	return data
}

// BuildPosition builds a POSITION payload.
func BuildPosition(p Position) []byte {
	data := make([]byte, PositionSize)
	putFloat32(data[0:4], p.Latitude)
	putFloat32(data[4:8], p.Longitude)
	putFloat32(data[8:12], p.Altitude)
	data[12] = p.Satellites
	putFloat32(data[13:17], p.Speed)
	putFloat32(data[17:21], p.Course)
	binary.BigEndian.PutUint32(data[21:25], p.FixTime)
	data[25] = p.HDOP
	data[26] = p.Quality
	return data
}

// BuildImageChunk builds an IMAGE_CHUNK payload. Fails with ErrChunkTooLarge
// if the chunk data cannot fit a single frame; image data is never truncated.
func BuildImageChunk(c ImageChunk) ([]byte, error) {
	if len(c.Data) > MaxImageChunkData {
		return nil, fmt.Errorf("%w: %d bytes", ErrChunkTooLarge, len(c.Data))
	}
	data := make([]byte, ImageChunkHeaderSize+len(c.Data))
	binary.BigEndian.PutUint16(data[0:2], c.ImageID)
	binary.BigEndian.PutUint16(data[2:4], c.ChunkIndex)
	binary.BigEndian.PutUint16(data[4:6], c.ChunkCount)
	copy(data[ImageChunkHeaderSize:], c.Data)
	return data, nil
}

// BuildAlert builds an ALERT payload. The message occupies a fixed
// AlertMessageSize field, zero padded; longer messages are truncated.
func BuildAlert(a Alert) []byte {
	data := make([]byte, AlertSize)
	data[0] = uint8(a.Type)
	binary.BigEndian.PutUint32(data[1:5], a.Timestamp)
	data[5] = a.Severity
	copy(data[6:6+AlertMessageSize], a.Message)
	putFloat32(data[70:74], a.SensorValue)
	data[74] = a.SensorID
	return data
}

// BuildAck builds an ACK payload.
func BuildAck(a AckPayload) []byte {
	data := make([]byte, AckSize)
	binary.BigEndian.PutUint16(data[0:2], a.Seq)
	data[2] = a.AckType
	data[3] = uint8(a.RSSI)
	return data
}

// BuildNack builds a NACK payload.
func BuildNack(n NackPayload) []byte {
	data := make([]byte, NackSize)
	binary.BigEndian.PutUint16(data[0:2], n.Seq)
	data[2] = n.Reason
	return data
}

// BuildStatus builds a STATUS payload from free text, truncated at
// MaxStatusLen bytes. Truncation here is deliberate policy: status text is
// advisory, unlike the structured payloads which reject oversize input.
func BuildStatus(text string) []byte {
	if len(text) > MaxStatusLen {
		text = text[:MaxStatusLen]
	}
	return []byte(text)
}

// BuildDebug builds a DEBUG payload from free text, truncated at MaxDebugLen
// bytes under the same policy as BuildStatus.
func BuildDebug(text string) []byte {
	if len(text) > MaxDebugLen {
		text = text[:MaxDebugLen]
	}
	return []byte(text)
}

func putFloat32(b []byte, v float32) {
	binary.BigEndian.PutUint32(b, math.Float32bits(v))
}
