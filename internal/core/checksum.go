package core

// Internet checksum (RFC 791 / RFC 1071) helpers.
//
// Fold returns the folded one's-complement sum before complementing, so the same
// routine serves both directions: a header carries ^Fold(header with zero checksum),
// and a received header is intact when Fold over all of it, checksum included, is 0xFFFF.

// Sum adds the big-endian 16-bit words of b to initial. A trailing odd byte is
// treated as the high byte of a zero-padded word.
func Sum(b []byte, initial uint32) uint32 {
	sum := initial
	n := len(b) &^ 1
	for i := 0; i < n; i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if len(b)&1 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}
	return sum
}

// FoldSum folds the carries of a 32-bit partial sum into 16 bits.
func FoldSum(sum uint32) uint16 {
	for sum>>16 != 0 {
		sum = sum>>16 + sum&0xffff
	}
	return uint16(sum)
}

// Fold returns the pre-complement folded sum of b.
func Fold(b []byte) uint16 {
	return FoldSum(Sum(b, 0))
}

// Compute is Fold over a region whose checksum field has been zeroed.
func Compute(b []byte) uint16 {
	return Fold(b)
}

// Checksum returns the value to store in a header's checksum field.
func Checksum(b []byte) uint16 {
	return ^Fold(b)
}

// Verify reports whether a region that includes its populated checksum field is intact.
func Verify(b []byte) bool {
	return Fold(b) == 0xffff
}
