package core

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/DaveeFTW/taiHEN/addrspace"
	"github.com/DaveeFTW/taiHEN/patch"
)

// Memory above sharedRegionStart is mapped into every user process; patching
// it from the kernel context would leak into all of them.
const (
	sharedRegionStart = 0xE0000000
	sharedRegionEnd   = 0xF0000000
)

// InstallHook redirects execution at destAddr to hookAddr. The low bit of
// destAddr marks a compressed-encoding target. A second hook on the same
// address chains onto the existing one: the new entry becomes outermost and
// its ref resolves to the previous entry.
func (e *Engine) InstallHook(pid int32, destAddr, hookAddr uint32) (patch.Handle, patch.HookRef, error) {
	if hookAddr == 0 {
		return 0, patch.HookRef{}, patch.ErrInvalidArgs
	}
	thumb := destAddr&1 != 0
	addr := destAddr &^ 1
	if pid == patch.KernelPID && addr >= sharedRegionStart && addr < sharedRegionEnd {
		return 0, patch.HookRef{}, patch.ErrInvalidKernelAddr
	}
	space, err := e.reg.Get(pid)
	if err != nil {
		return 0, patch.HookRef{}, err
	}
	slot, chained, err := e.table.claim(pid, addr, patch.KindHook)
	if err != nil {
		return 0, patch.HookRef{}, err
	}
	if chained {
		return e.chainHook(space, slot, hookAddr)
	}
	slot.thumb = thumb
	h, ref, err := e.firstHook(space, slot, hookAddr)
	if err != nil {
		e.table.abort(slot)
		return 0, patch.HookRef{}, err
	}
	e.table.commit(slot)
	e.logger().Debug("hook installed",
		zap.Int32("pid", pid), zap.Uint32("addr", addr), zap.Uint32("func", hookAddr))
	return h, ref, nil
}

func (e *Engine) firstHook(space addrspace.AddressSpace, slot *patchSlot, hookAddr uint32) (patch.Handle, patch.HookRef, error) {
	addr := slot.key.addr
	code, err := space.MemRead(addr, maxDisplace+4)
	if err != nil {
		return 0, patch.HookRef{}, fmt.Errorf("%w: read target: %v", patch.ErrHookError, err)
	}
	disp, err := displacedSize(code, addr, slot.thumb)
	if err != nil {
		return 0, patch.HookRef{}, fmt.Errorf("%w: %v", patch.ErrHookError, err)
	}
	original := code[:disp:disp]

	resume := addr + uint32(disp)
	if slot.thumb {
		resume |= 1
	}
	tramp, err := space.MemAlloc(uint32(disp)+maxDisplace, addrspace.MEM_PROT_READ|addrspace.MEM_PROT_EXEC)
	if err != nil {
		return 0, patch.HookRef{}, fmt.Errorf("%w: trampoline alloc: %v", patch.ErrHookError, err)
	}
	back, _ := encodeRedirect(tramp+uint32(disp), slot.thumb, resume)
	buf := make([]byte, 0, disp+len(back))
	buf = append(buf, original...)
	buf = append(buf, back...)
	if err := space.MemWrite(tramp, buf); err != nil {
		space.MemFree(tramp)
		return 0, patch.HookRef{}, fmt.Errorf("%w: trampoline write: %v", patch.ErrHookError, err)
	}

	// The literal carries the destination; rewriting it later is a single
	// aligned word write, so concurrent execution sees old or new, never a
	// torn redirect.
	redirect, litOff := encodeRedirect(addr, slot.thumb, hookAddr)
	if err := space.MemWrite(addr, redirect); err != nil {
		space.MemFree(tramp)
		return 0, patch.HookRef{}, fmt.Errorf("%w: redirect write: %v", patch.ErrHookError, err)
	}

	slot.original = original
	slot.tramp = tramp
	slot.litOff = litOff
	target := tramp
	if slot.thumb {
		target |= 1
	}
	entry := &hookEntry{funcAddr: hookAddr, ref: patch.HookRef{Target: target}}
	entry.handle = e.handles.alloc(slot.key.pid, slot, entry)
	slot.chain = append(slot.chain, entry)
	return entry.handle, entry.ref, nil
}

func (e *Engine) chainHook(space addrspace.AddressSpace, slot *patchSlot, hookAddr uint32) (patch.Handle, patch.HookRef, error) {
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.state != slotLive || len(slot.chain) == 0 {
		// lost a race with the final release of this slot
		return 0, patch.HookRef{}, patch.ErrPatchExists
	}
	prev := slot.chain[len(slot.chain)-1]
	var lit [4]byte
	putWord(lit[:], hookAddr)
	if err := space.MemWrite(slot.key.addr+slot.litOff, lit[:]); err != nil {
		return 0, patch.HookRef{}, fmt.Errorf("%w: redirect rewrite: %v", patch.ErrHookError, err)
	}
	entry := &hookEntry{funcAddr: hookAddr, ref: patch.HookRef{Target: prev.funcAddr, Inner: true}}
	entry.handle = e.handles.alloc(slot.key.pid, slot, entry)
	slot.chain = append(slot.chain, entry)
	e.logger().Debug("hook chained",
		zap.Int32("pid", slot.key.pid), zap.Uint32("addr", slot.key.addr), zap.Uint32("func", hookAddr))
	return entry.handle, entry.ref, nil
}

// ReleaseHook unwinds one chain entry. Only the outermost entry may go;
// releasing an inner entry while others still wrap it is rejected.
func (e *Engine) ReleaseHook(h patch.Handle) error {
	info, ok := e.handles.lookup(h)
	if !ok {
		return patch.ErrInvalidHandle
	}
	if info.slot.kind != patch.KindHook {
		return patch.ErrInvalidArgs
	}
	slot := info.slot
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.state != slotLive {
		return patch.ErrInvalidHandle
	}
	n := len(slot.chain)
	if n == 0 || slot.chain[n-1] != info.entry {
		return fmt.Errorf("%w: entry is not outermost", patch.ErrHookError)
	}
	space, err := e.reg.Get(slot.key.pid)
	if err != nil {
		return fmt.Errorf("%w: %v", patch.ErrHookError, err)
	}
	if n == 1 {
		if err := space.MemWrite(slot.key.addr, slot.original); err != nil {
			return fmt.Errorf("%w: restore: %v", patch.ErrHookError, err)
		}
		space.MemFree(slot.tramp)
		slot.chain = nil
		e.table.remove(slot)
		e.handles.free(h)
		return nil
	}
	next := slot.chain[n-2]
	var lit [4]byte
	putWord(lit[:], next.funcAddr)
	if err := space.MemWrite(slot.key.addr+slot.litOff, lit[:]); err != nil {
		return fmt.Errorf("%w: redirect rewrite: %v", patch.ErrHookError, err)
	}
	slot.chain = slot.chain[:n-1]
	e.handles.free(h)
	return nil
}
