package protocol

import "encoding/binary"

// CRC16 computes the CRC-16/MODBUS checksum of data.
// Initial value 0xFFFF, reflected polynomial 0xA001.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// PutCRC16 writes crc into dst[0:2], low byte first.
func PutCRC16(dst []byte, crc uint16) {
	binary.LittleEndian.PutUint16(dst, crc)
}
