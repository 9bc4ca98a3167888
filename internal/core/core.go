package core

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/DaveeFTW/taiHEN/addrspace"
	"github.com/DaveeFTW/taiHEN/patch"
)

// Engine owns all live patch state. Every modification flows through the
// patch table; no other component writes a patch record directly.
type Engine struct {
	reg addrspace.Registry
	log *zap.Logger
	seq atomic.Uint64

	handles handleTable
	table   patchTable
}

func (e *Engine) Init(reg addrspace.Registry, log *zap.Logger) error {
	if reg == nil {
		return patch.ErrInvalidArgs
	}
	if log == nil {
		log = zap.NewNop()
	}
	e.reg = reg
	e.log = log
	e.handles.ctor()
	e.table.ctor()
	return nil
}

// Close reverses every modification still installed, then drops the
// bookkeeping. All outstanding handles become invalid.
func (e *Engine) Close() error {
	for _, owner := range e.handles.owners() {
		e.ReleaseAllFor(owner)
	}
	e.table.dtor()
	e.handles.dtor()
	return nil
}

func (e *Engine) logger() *zap.Logger {
	return e.log.With(zap.Uint64("seq", e.seq.Add(1)))
}
