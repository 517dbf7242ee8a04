package controller

// crcTable is the board's fixed 32-entry nibble-lookup table for the
// one-wire style CRC over a 30-byte packet payload.
var crcTable = [32]byte{
	0x00, 0x5E, 0xBC, 0xE2, 0x61, 0x3F, 0xDD, 0x83, 0xC2, 0x9C, 0x7E, 0x20, 0xA3, 0xFD, 0x1F, 0x41,
	0x00, 0x9D, 0x23, 0xBE, 0x46, 0xDB, 0x65, 0xF8, 0x8C, 0x11, 0xAF, 0x32, 0xCA, 0x57, 0xE9, 0x74,
}

// onewireCRC computes the board's 8-bit CRC over packet.
func onewireCRC(packet []byte) byte {
	var crc byte
	for _, b := range packet {
		crc = b ^ crc
		crc = crcTable[crc&0x0F] ^ crcTable[16+((crc>>4)&0x0F)]
	}
	return crc
}
