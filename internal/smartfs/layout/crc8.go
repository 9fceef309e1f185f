package layout

// crc8 updates a plain CRC-8 (polynomial 0x07, zero init, no reflection) with
// data. Version 1 sector headers store this checksum in a single byte; the
// check value crc8(0, []byte("123456789")) is 0xf4.
func crc8(crc byte, data []byte) byte {
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x07
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
