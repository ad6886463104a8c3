package codec

const (
	crc8Poly  = 0x07
	crc16Poly = 0x1021
)

// CRC8 computes an 8-bit CRC (polynomial 0x07, zero init, MSB first) over
// data. It protects the frame header only.
func CRC8(data []byte) uint8 {
	var crc uint8
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ crc8Poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// CRC16 computes a CRC-16/XMODEM checksum (polynomial 0x1021, zero init,
// MSB first) over data. It protects type, sequence, length and payload,
// independently of the header CRC. The two deliberately use different
// polynomials.
func CRC16(data []byte) uint16 {
	return crc16Update(0, data)
}

// crc16Update folds data into a running CRC16, allowing the checksum to be
// computed over non-contiguous byte ranges without a scratch buffer.
func crc16Update(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ crc16Poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
