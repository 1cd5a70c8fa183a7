package mavlink

// crcInit is the MCRF4XX seed used by MAVLink.
const crcInit = 0xFFFF

// crcAccumulate folds one byte into an X.25 (MCRF4XX) checksum.
func crcAccumulate(b byte, crc uint16) uint16 {
	tmp := b ^ byte(crc)
	tmp ^= tmp << 4
	t := uint16(tmp)
	return (crc >> 8) ^ (t << 8) ^ (t << 3) ^ (t >> 4)
}

// checksum computes the frame CRC over data (everything after STX up to the
// end of the payload) followed by the message's CRC_EXTRA byte.
func checksum(data []byte, crcExtra uint8) uint16 {
	crc := uint16(crcInit)
	for _, b := range data {
		crc = crcAccumulate(b, crc)
	}
	return crcAccumulate(crcExtra, crc)
}

// checksumDelta returns the value to XOR into a MAVLink 2 checksum when the
// byte at offset (within the checksummed range) is XORed with delta.
//
// The CRC is linear over GF(2), so the change only depends on the difference
// pattern run through the register from a zero seed.
func checksumDelta(offset int, delta byte, payloadLen int) uint16 {
	n := HeaderLenV2 - 1 + payloadLen + 1 // header after STX, payload, CRC_EXTRA
	var crc uint16
	for i := range n {
		var b byte
		if i == offset {
			b = delta
		}
		crc = crcAccumulate(b, crc)
	}
	return crc
}
