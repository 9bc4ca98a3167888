package core

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/arch/arm/armasm"
)

// A redirect is 8 bytes: a pc-load plus its literal. Thumb targets where the
// literal would land unaligned take a leading nop, and the final displaced
// instruction may be a 32-bit one, so at most 12 bytes get displaced.
const maxDisplace = 12

func putWord(b []byte, w uint32) {
	binary.LittleEndian.PutUint32(b, w)
}

func putHalf(b []byte, h uint16) {
	binary.LittleEndian.PutUint16(b, h)
}

func redirectSize(at uint32, thumb bool) int {
	if thumb && at&2 != 0 {
		return 10
	}
	return 8
}

// encodeRedirect builds an unconditional transfer to `to`, encoded for the
// instruction set at `at`. Returns the bytes and the offset of the literal
// word holding the destination.
func encodeRedirect(at uint32, thumb bool, to uint32) ([]byte, uint32) {
	if !thumb {
		b := make([]byte, 8)
		putWord(b, 0xE51FF004) // ldr pc, [pc, #-4]
		putWord(b[4:], to)
		return b, 4
	}
	if at&2 == 0 {
		b := make([]byte, 8)
		putHalf(b, 0xF8DF) // ldr.w pc, [pc]
		putHalf(b[2:], 0xF000)
		putWord(b[4:], to)
		return b, 4
	}
	b := make([]byte, 10)
	putHalf(b, 0xBF00) // nop, aligns the literal
	putHalf(b[2:], 0xF8DF)
	putHalf(b[4:], 0xF000)
	putWord(b[6:], to)
	return b, 6
}

// displacedSize measures how many whole instructions the redirect footprint
// displaces at `at`. Instructions that read or write pc cannot be relocated
// into a trampoline verbatim and are rejected.
func displacedSize(code []byte, at uint32, thumb bool) (int, error) {
	need := redirectSize(at, thumb)
	if !thumb {
		for n := 0; n < need; n += 4 {
			if err := checkARMInsn(code[n:]); err != nil {
				return 0, err
			}
		}
		return need, nil
	}
	n := 0
	for n < need {
		w, err := checkThumbInsn(code[n:])
		if err != nil {
			return 0, err
		}
		n += w
	}
	return n, nil
}

func checkARMInsn(b []byte) error {
	inst, err := armasm.Decode(b[:4], armasm.ModeARM)
	if err != nil {
		return err
	}
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		switch a := arg.(type) {
		case armasm.Reg:
			if a == armasm.PC {
				return fmt.Errorf("pc operand in %v", inst)
			}
		case armasm.Mem:
			if a.Base == armasm.PC || a.Index == armasm.PC {
				return fmt.Errorf("pc-relative addressing in %v", inst)
			}
		case armasm.PCRel:
			return fmt.Errorf("pc-relative %v", inst)
		case armasm.RegList:
			if a&(1<<15) != 0 {
				return fmt.Errorf("pc in register list of %v", inst)
			}
		}
	}
	return nil
}

func thumbHiRegPC(h uint16) bool {
	if h&0xFC00 != 0x4400 {
		return false
	}
	rd := h&7 | h>>4&8
	rm := h >> 3 & 0xF
	return rd == 15 || rm == 15
}

func checkThumbInsn(b []byte) (int, error) {
	h1 := binary.LittleEndian.Uint16(b)
	if h1>>11 >= 0x1D {
		h2 := binary.LittleEndian.Uint16(b[2:])
		switch {
		case h1&0xF800 == 0xF000 && h2&0x8000 == 0x8000: // b, bl, blx
		case h1&0xFF7F == 0xF85F: // ldr (literal)
		case h1&^0x0400 == 0xF20F || h1&^0x0400 == 0xF2AF: // adr
		case h1&0xFF7F == 0xE95F: // ldrd (literal)
		case h1 == 0xE8DF: // tbb, tbh [pc]
		case h1&0xFF3F == 0xED1F: // vldr (literal)
		default:
			return 4, nil
		}
		return 0, fmt.Errorf("pc-relative instruction %#04x %#04x", h1, h2)
	}
	switch {
	case h1&0xF800 == 0x4800: // ldr rt, [pc, #imm]
	case h1&0xF800 == 0xA000: // adr
	case h1&0xF800 == 0xE000: // b
	case h1&0xF000 == 0xD000 && h1>>8&0xF < 0xE: // b<cond>
	case h1&0xFF00 == 0x4700: // bx, blx
	case h1&0xF500 == 0xB100: // cbz, cbnz
	case thumbHiRegPC(h1):
	case h1&0xFF00 == 0xBD00: // pop {..., pc}
	default:
		return 2, nil
	}
	return 0, fmt.Errorf("unrelocatable instruction %#04x", h1)
}
