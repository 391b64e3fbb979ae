package bitflag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBit(t *testing.T) {
	f := Flags16(0b1000_0000_0000_0101)

	specs := []struct {
		index uint
		exp   uint16
	}{
		{0, 1},
		{1, 0},
		{2, 1},
		{15, 1},
		{16, 0},
		{64, 0},
	}

	for specIndex, spec := range specs {
		if got := f.Bit(spec.index); got != spec.exp {
			t.Errorf("[spec %d] expected Bit(%d) to return %d; got %d", specIndex, spec.index, spec.exp, got)
		}
	}
}

func TestCheckFlag(t *testing.T) {
	f := Flags16(1 << 3)

	set, ok := f.CheckFlag(3)
	assert.True(t, ok)
	assert.True(t, set)

	set, ok = f.CheckFlag(4)
	assert.True(t, ok)
	assert.False(t, set)

	_, ok = f.CheckFlag(Width)
	assert.False(t, ok)
}

func TestHas(t *testing.T) {
	f := Flags16(0b0101)

	assert.True(t, f.Has(0b0001))
	assert.True(t, f.Has(0b0101))
	assert.False(t, f.Has(0b0011))
	assert.True(t, f.HasAny(0b0011))
	assert.False(t, f.HasAny(0b1010))
}

func TestTruncateBits(t *testing.T) {
	specs := []struct {
		in       Flags16
		quantity uint
		exp      Flags16
	}{
		{0xffff, 0, 0xffff},
		{0xffff, 4, 0x0fff},
		{0x2801, 4, 0x0801},
		{0x8001, 1, 0x0001},
		{0xffff, 15, 0x0001},
		{0xffff, 16, 0},
		{0xffff, 100, 0},
	}

	for specIndex, spec := range specs {
		if got := spec.in.TruncateBits(spec.quantity); got != spec.exp {
			t.Errorf("[spec %d] expected %#04x.TruncateBits(%d) to return %#04x; got %#04x", specIndex, uint16(spec.in), spec.quantity, uint16(spec.exp), uint16(got))
		}
	}
}
