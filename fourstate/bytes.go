package fourstate

// PlaneBytes is the number of bytes one serialized plane of width bits needs.
func PlaneBytes(width int) int {
	return (width + 7) >> 3
}

func setBitLSB0(plane []byte, i int) {
	plane[i>>3] |= 1 << uint(i&7)
}

func testBitLSB0(plane []byte, i int) bool {
	return plane[i>>3]&(1<<uint(i&7)) != 0
}
