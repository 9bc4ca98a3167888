package core

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(ws ...uint32) []byte {
	b := make([]byte, 4*len(ws))
	for i, w := range ws {
		binary.LittleEndian.PutUint32(b[4*i:], w)
	}
	return b
}

func halves(hs ...uint16) []byte {
	b := make([]byte, 2*len(hs))
	for i, h := range hs {
		binary.LittleEndian.PutUint16(b[2*i:], h)
	}
	return b
}

func TestEncodeRedirect(t *testing.T) {
	b, lit := encodeRedirect(0x1000, false, 0x2000)
	assert.Len(t, b, 8)
	assert.EqualValues(t, 4, lit)
	assert.Equal(t, uint32(0xE51FF004), binary.LittleEndian.Uint32(b))
	assert.Equal(t, uint32(0x2000), binary.LittleEndian.Uint32(b[4:]))

	b, lit = encodeRedirect(0x1000, true, 0x2001)
	assert.Len(t, b, 8)
	assert.EqualValues(t, 4, lit)
	assert.Equal(t, halves(0xF8DF, 0xF000), b[:4])

	b, lit = encodeRedirect(0x1002, true, 0x2001)
	assert.Len(t, b, 10)
	assert.EqualValues(t, 6, lit)
	assert.Equal(t, halves(0xBF00, 0xF8DF, 0xF000), b[:6])
	assert.Equal(t, uint32(0x2001), binary.LittleEndian.Uint32(b[6:]))
}

func TestDisplacedSizeARM(t *testing.T) {
	n, err := displacedSize(words(0xE3A00000, 0xE2800001, 0xE2800002, 0), 0x1000, false)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	// b and pc-relative loads cannot be moved into a trampoline
	_, err = displacedSize(words(0xEA000010, 0xE3A00000, 0, 0), 0x1000, false)
	assert.Error(t, err)
	_, err = displacedSize(words(0xE3A00000, 0xE59F0004, 0, 0), 0x1000, false)
	assert.Error(t, err)
	// mov pc, lr
	_, err = displacedSize(words(0xE1A0F00E, 0xE3A00000, 0, 0), 0x1000, false)
	assert.Error(t, err)
}

func TestDisplacedSizeThumb(t *testing.T) {
	// all 16-bit: exactly the redirect footprint
	n, err := displacedSize(halves(0xB510, 0x2000, 0x3001, 0x2100, 0, 0, 0, 0), 0x1000, true)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	// a 32-bit instruction straddling the boundary extends the displacement
	n, err = displacedSize(halves(0xB510, 0x2000, 0x3001, 0xF44F, 0x7080, 0, 0, 0), 0x1000, true)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	// unaligned target needs the 10-byte form
	n, err = displacedSize(halves(0xB510, 0x2000, 0x3001, 0x2100, 0x3101, 0, 0, 0), 0x1002, true)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestCheckThumbInsn(t *testing.T) {
	for _, h := range []uint16{0x4801, 0xA001, 0xE7FE, 0xD0FE, 0x4770, 0x4778, 0xBD10, 0x44F8, 0xB110, 0xB910, 0xB35C} {
		_, err := checkThumbInsn(halves(h, 0))
		assert.Errorf(t, err, "%#04x should be rejected", h)
	}
	for _, h := range []uint16{0xB510, 0x2000, 0x3001, 0x46C0, 0xDE00, 0xDF35} {
		n, err := checkThumbInsn(halves(h, 0))
		require.NoErrorf(t, err, "%#04x", h)
		assert.Equal(t, 2, n)
	}

	// bl is two halfwords and never relocatable
	_, err := checkThumbInsn(halves(0xF000, 0xF800))
	assert.Error(t, err)
	// mov.w r0, #256
	n, err := checkThumbInsn(halves(0xF44F, 0x7080))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	// ldr.w r0, [pc, #8]
	_, err = checkThumbInsn(halves(0xF8DF, 0x0008))
	assert.Error(t, err)

	// the rest of the wide pc-relative family
	wide := [][2]uint16{
		{0xF20F, 0x0008}, // adr.w r0, pc+8
		{0xF60F, 0x0008}, // adr.w, upper imm bit set
		{0xF2AF, 0x0008}, // adr.w, sub form
		{0xE95F, 0x0102}, // ldrd r0, r1, [pc, #-8]
		{0xE9DF, 0x0102}, // ldrd r0, r1, [pc, #8]
		{0xE8DF, 0xF000}, // tbb [pc, r0]
		{0xED9F, 0x0A04}, // vldr s0, [pc, #16]
	}
	for _, w := range wide {
		_, err := checkThumbInsn(halves(w[0], w[1]))
		assert.Errorf(t, err, "%#04x %#04x should be rejected", w[0], w[1])
	}
}
