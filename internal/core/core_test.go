package core

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DaveeFTW/taiHEN/addrspace"
	"github.com/DaveeFTW/taiHEN/patch"
)

func newTestRegistry(pids ...int32) *addrspace.RAMRegistry {
	return addrspace.NewRAMRegistry(append(pids, patch.KernelPID)...)
}

func newEngine(t *testing.T, pids ...int32) (*Engine, *addrspace.RAMRegistry) {
	t.Helper()
	reg := newTestRegistry(pids...)
	e := new(Engine)
	require.NoError(t, e.Init(reg, zap.NewNop()))
	t.Cleanup(func() { e.Close() })
	return e, reg
}

func seedWords(t *testing.T, reg *addrspace.RAMRegistry, pid int32, addr uint32, words ...uint32) {
	t.Helper()
	space, err := reg.Get(pid)
	require.NoError(t, err)
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	require.NoError(t, space.MemWrite(addr, buf))
}

func seedHalves(t *testing.T, reg *addrspace.RAMRegistry, pid int32, addr uint32, halves ...uint16) {
	t.Helper()
	space, err := reg.Get(pid)
	require.NoError(t, err)
	buf := make([]byte, 2*len(halves))
	for i, h := range halves {
		binary.LittleEndian.PutUint16(buf[2*i:], h)
	}
	require.NoError(t, space.MemWrite(addr, buf))
}

func readMem(t *testing.T, reg *addrspace.RAMRegistry, pid int32, addr uint32, size int) []byte {
	t.Helper()
	space, err := reg.Get(pid)
	require.NoError(t, err)
	b, err := space.MemRead(addr, size)
	require.NoError(t, err)
	return b
}

func readWord(t *testing.T, reg *addrspace.RAMRegistry, pid int32, addr uint32) uint32 {
	t.Helper()
	return binary.LittleEndian.Uint32(readMem(t, reg, pid, addr, 4))
}

// push {r4, lr}; mov r0, #0; add r0, r0, #1; add r0, r0, #2
func seedARMFunc(t *testing.T, reg *addrspace.RAMRegistry, pid int32, addr uint32) {
	seedWords(t, reg, pid, addr, 0xE92D4010, 0xE3A00000, 0xE2800001, 0xE2800002)
}

// push {r4, lr}; movs r0, #0; adds r0, #1; movs r1, #0; adds r1, #1; ...
func seedThumbFunc(t *testing.T, reg *addrspace.RAMRegistry, pid int32, addr uint32) {
	seedHalves(t, reg, pid, addr, 0xB510, 0x2000, 0x3001, 0x2100, 0x3101, 0x2200, 0x3201)
}
