package fourstate

/*

# Four state values

Simulation values are drawn from {0, 1, X, Z}. A value of width n is stored as
two parallel bit planes of n bits each:

	zx value   state
	 0    0      0
	 0    1      1
	 1    0      Z
	 1    1      X

The zx plane is only allocated once an X or Z is seen. The common, fully
known, case therefore costs a single plane.

## Shapes

The storage shape is chosen by width alone and is not observable through the
API:

- ShapeBit: width 1
- ShapeWord: width <= 32, both planes held inline in a uint32
- ShapeWide: width > 32, planes held in heap allocated bit sets

## Bit numbering

Index 0 is the least significant bit. When planes are serialized they are
little endian with bit 0 the least significant bit of byte 0 (LSB0), matching
the numbering used by the puddle droplet format.

*/
