package protocol

// CRC16 is the CCITT variant used on the frame trailer and on the
// non-volatile configuration record.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b ^= uint8(crc & 0xFF)
		b ^= b << 4
		w := uint16(b)
		crc = (w<<8 | crc>>8) ^ (w >> 4) ^ (w << 3)
	}
	return crc
}

// AppendCRC16 appends the big-endian checksum of data to data.
func AppendCRC16(data []byte) []byte {
	crc := CRC16(data)
	return append(data, byte(crc>>8), byte(crc))
}

// CheckCRC16 reports whether the last two bytes of block are the checksum
// of everything before them.
func CheckCRC16(block []byte) bool {
	if len(block) < 2 {
		return false
	}
	n := len(block) - 2
	crc := CRC16(block[:n])
	return block[n] == byte(crc>>8) && block[n+1] == byte(crc)
}
