package ogg

// Ogg pages are checksummed with an unreflected CRC32 using the polynomial
// 0x04c11db7 and an initial value of 0 -- not the same table as stdlib's
// hash/crc32.IEEE (which is reflected / uses a different table shape), so a
// dedicated table is built here. Grounded on the identical table-generation
// loop in
// other_examples/643b5571_pion-webrtc__pkg-media-opus-writer.go.go's
// initChecksum/getChecksum.
var crcTable [256]uint32

func init() {
	for i := range crcTable {
		r := uint32(i) << 24
		for bit := 0; bit < 8; bit++ {
			if r&0x80000000 != 0 {
				r = (r << 1) ^ 0x04c11db7
			} else {
				r <<= 1
			}
		}
		crcTable[i] = r
	}
}

// checksum computes the Ogg page CRC32 over payload, matching libogg's
// byte-at-a-time table lookup.
func checksum(payload []byte) uint32 {
	var crc uint32
	for _, b := range payload {
		idx := byte((crc>>24)&0xff) ^ b
		crc = (crc << 8) ^ crcTable[idx]
	}
	return crc
}
