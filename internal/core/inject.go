package core

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/DaveeFTW/taiHEN/patch"
)

// Inject overwrites len(data) bytes at destAddr, bypassing protection. The
// displaced bytes are snapshotted into the patch record and restored verbatim
// on release.
func (e *Engine) Inject(pid int32, destAddr uint32, data []byte) (patch.Handle, error) {
	if len(data) == 0 {
		return 0, patch.ErrInvalidArgs
	}
	space, err := e.reg.Get(pid)
	if err != nil {
		return 0, err
	}
	slot, _, err := e.table.claim(pid, destAddr, patch.KindInjection)
	if err != nil {
		return 0, err
	}
	original, err := space.MemRead(destAddr, len(data))
	if err != nil {
		e.table.abort(slot)
		return 0, fmt.Errorf("read target: %w", err)
	}
	if err := space.MemWrite(destAddr, data); err != nil {
		e.table.abort(slot)
		return 0, fmt.Errorf("write target: %w", err)
	}
	slot.original = original
	slot.handle = e.handles.alloc(pid, slot, nil)
	e.table.commit(slot)
	e.logger().Debug("injection installed",
		zap.Int32("pid", pid), zap.Uint32("addr", destAddr), zap.Int("size", len(data)))
	return slot.handle, nil
}

func (e *Engine) ReleaseInject(h patch.Handle) error {
	info, ok := e.handles.lookup(h)
	if !ok {
		return patch.ErrInvalidHandle
	}
	if info.slot.kind != patch.KindInjection {
		return patch.ErrInvalidArgs
	}
	slot := info.slot
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.state != slotLive {
		return patch.ErrInvalidHandle
	}
	space, err := e.reg.Get(slot.key.pid)
	if err != nil {
		return err
	}
	if err := space.MemWrite(slot.key.addr, slot.original); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	e.table.remove(slot)
	e.handles.free(h)
	return nil
}

// ReleaseAllFor reverses every patch owned by `owner`. Chain ordering is
// handled by sweeping until a pass releases nothing; whatever still cannot be
// released is dropped from the bookkeeping and reported as a count, since
// teardown must not leak records.
func (e *Engine) ReleaseAllFor(owner int32) int {
	for {
		progress := false
		for _, h := range e.handles.byOwner(owner) {
			info, ok := e.handles.lookup(h)
			if !ok {
				continue
			}
			var err error
			if info.slot.kind == patch.KindHook {
				err = e.ReleaseHook(h)
			} else {
				err = e.ReleaseInject(h)
			}
			if err == nil {
				progress = true
			}
		}
		if !progress {
			break
		}
	}
	failed := 0
	for _, h := range e.handles.byOwner(owner) {
		e.forceDrop(h)
		failed++
	}
	if failed > 0 {
		e.logger().Warn("teardown dropped unreleasable patches",
			zap.Int32("owner", owner), zap.Int("count", failed))
	}
	return failed
}

func (e *Engine) forceDrop(h patch.Handle) {
	info, ok := e.handles.lookup(h)
	if !ok {
		return
	}
	slot := info.slot
	slot.mu.Lock()
	if info.entry != nil {
		slot.chain = slices.DeleteFunc(slot.chain, func(en *hookEntry) bool { return en == info.entry })
	}
	if info.entry == nil || len(slot.chain) == 0 {
		e.table.remove(slot)
	}
	slot.mu.Unlock()
	e.handles.free(h)
}
