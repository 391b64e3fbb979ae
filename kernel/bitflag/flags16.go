// Package bitflag provides fixed-width flag registers.
package bitflag

// Width is the number of bits in a Flags16 register.
const Width = 16

// Flags16 is a 16-bit flag register.
type Flags16 uint16

// Bit returns the value (0 or 1) of the bit at the supplied index. Indices
// outside the register always read as 0.
func (f Flags16) Bit(index uint) uint16 {
	if index >= Width {
		return 0
	}
	return (uint16(f) >> index) & 1
}

// CheckFlag reports whether the bit at index is set. The second return value
// is false if index does not address a bit of the register.
func (f Flags16) CheckFlag(index uint) (set bool, ok bool) {
	if index >= Width {
		return false, false
	}
	return f.Bit(index) == 1, true
}

// Has returns true if all bits of flags are set.
func (f Flags16) Has(flags Flags16) bool {
	return f&flags == flags
}

// HasAny returns true if at least one bit of flags is set.
func (f Flags16) HasAny(flags Flags16) bool {
	return f&flags != 0
}

// TruncateBits clears the quantity high-order bits of the register and
// returns the result. TruncateBits(4) keeps bits 0-11.
func (f Flags16) TruncateBits(quantity uint) Flags16 {
	if quantity >= Width {
		return 0
	}
	return f & Flags16(uint16(0xffff)>>quantity)
}
