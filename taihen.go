// Package taihen is a code-patching framework for 32-bit ARM targets: it
// installs, tracks and reverses function hooks and raw data injections in
// per-process address spaces, including the privileged kernel context.
package taihen

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/modern-go/reflect2"
	"go.uber.org/zap"

	"github.com/DaveeFTW/taiHEN/addrspace"
	"github.com/DaveeFTW/taiHEN/config"
	"github.com/DaveeFTW/taiHEN/internal/core"
	"github.com/DaveeFTW/taiHEN/patch"
	"github.com/DaveeFTW/taiHEN/resolver"
)

const (
	KernelPID  = patch.KernelPID
	AnyLibrary = resolver.AnyLibrary
)

// PluginLoadFunc loads one plugin image into a process.
type PluginLoadFunc func(pid int32, path string, flags uint32) error

type TaiHEN struct {
	reg    addrspace.Registry
	res    resolver.Resolver
	log    *zap.Logger
	cfg    *config.Config
	loader PluginLoadFunc
	engine *core.Engine
}

type Option func(*TaiHEN)

func WithLogger(log *zap.Logger) Option {
	return func(t *TaiHEN) { t.log = log }
}

func WithConfig(cfg *config.Config) Option {
	return func(t *TaiHEN) { t.cfg = cfg }
}

func WithPluginLoader(fn PluginLoadFunc) Option {
	return func(t *TaiHEN) { t.loader = fn }
}

// New brings the framework up: the registry must already answer for the
// kernel context before any patching starts, then the engine initializes.
// Either failing aborts construction.
func New(reg addrspace.Registry, res resolver.Resolver, opts ...Option) (*TaiHEN, error) {
	if reg == nil || res == nil {
		return nil, patch.ErrInvalidArgs
	}
	t := &TaiHEN{reg: reg, res: res, log: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	if _, err := reg.Get(patch.KernelPID); err != nil {
		return nil, fmt.Errorf("kernel address space: %w", err)
	}
	t.engine = new(core.Engine)
	if err := t.engine.Init(reg, t.log); err != nil {
		return nil, err
	}
	t.log.Info("taihen started")
	return t, nil
}

// Close reverses everything still installed, engine before registry
// references, reverse order of New. Every handle still held becomes invalid.
func (t *TaiHEN) Close() error {
	err := t.engine.Close()
	t.log.Info("taihen stopped")
	return err
}

func (t *TaiHEN) HookFunctionAbs(pid int32, destAddr, hookAddr uint32) (patch.Handle, patch.HookRef, error) {
	return t.engine.InstallHook(pid, destAddr, hookAddr)
}

func (t *TaiHEN) HookFunctionExport(pid int32, module string, libraryNID, funcNID resolver.NID, hookAddr uint32) (patch.Handle, patch.HookRef, error) {
	addr, err := t.res.ResolveExport(pid, module, libraryNID, funcNID)
	if err != nil {
		t.log.Debug("export not resolved", zap.String("module", module),
			zap.Uint32("nid", uint32(funcNID)), zap.Error(err))
		return 0, patch.HookRef{}, err
	}
	return t.HookFunctionAbs(pid, addr, hookAddr)
}

func (t *TaiHEN) HookFunctionImport(pid int32, module string, importLibraryNID, importFuncNID resolver.NID, hookAddr uint32) (patch.Handle, patch.HookRef, error) {
	stub, err := t.res.ResolveImport(pid, module, importLibraryNID, importFuncNID)
	if err != nil {
		t.log.Debug("import not resolved", zap.String("module", module),
			zap.Uint32("nid", uint32(importFuncNID)), zap.Error(err))
		return 0, patch.HookRef{}, err
	}
	return t.HookFunctionAbs(pid, stub, hookAddr)
}

func (t *TaiHEN) HookFunctionOffset(pid int32, modid int32, segidx int, offset uint32, thumb bool, hookAddr uint32) (patch.Handle, patch.HookRef, error) {
	addr, err := t.res.ResolveOffset(pid, modid, segidx, offset)
	if err != nil {
		return 0, patch.HookRef{}, err
	}
	if thumb {
		addr |= 1
	}
	return t.HookFunctionAbs(pid, addr, hookAddr)
}

func (t *TaiHEN) HookRelease(h patch.Handle) error {
	return t.engine.ReleaseHook(h)
}

func (t *TaiHEN) InjectAbs(pid int32, destAddr uint32, data []byte) (patch.Handle, error) {
	return t.engine.Inject(pid, destAddr, data)
}

func (t *TaiHEN) InjectData(pid int32, modid int32, segidx int, offset uint32, data []byte) (patch.Handle, error) {
	addr, err := t.res.ResolveOffset(pid, modid, segidx, offset)
	if err != nil {
		return 0, err
	}
	return t.InjectAbs(pid, addr, data)
}

// InjectValue injects the backing bytes of a fixed-size value. The value must
// not contain pointers; only its raw representation crosses address spaces.
func (t *TaiHEN) InjectValue(pid int32, destAddr uint32, val any) (patch.Handle, error) {
	if val == nil {
		return 0, patch.ErrInvalidArgs
	}
	typ := reflect2.TypeOf(val)
	switch typ.Kind() {
	case reflect.Ptr, reflect.UnsafePointer, reflect.Map, reflect.Slice,
		reflect.Chan, reflect.Func, reflect.String, reflect.Interface, reflect.Invalid:
		return 0, patch.ErrInvalidArgs
	}
	size := typ.Type1().Size()
	data := unsafe.Slice((*byte)(reflect2.PtrOf(val)), size)
	return t.InjectAbs(pid, destAddr, data)
}

func (t *TaiHEN) InjectRelease(h patch.Handle) error {
	return t.engine.ReleaseInject(h)
}

func (t *TaiHEN) GetModuleInfo(pid int32, module string) (resolver.ModuleInfo, error) {
	return t.res.GetModuleInfo(pid, module)
}

// CleanupProcess releases every patch targeting pid, called when the process
// dies. Returns how many records could not be cleanly reversed.
func (t *TaiHEN) CleanupProcess(pid int32) int {
	return t.engine.ReleaseAllFor(pid)
}

// LoadPluginsForTitle walks the loaded configuration and hands every plugin
// entry for titleID to the plugin loader with (pid, flags) context. Loader
// failures are logged and skipped; a missing configuration is an error.
func (t *TaiHEN) LoadPluginsForTitle(pid int32, titleID string, flags uint32) error {
	if t.cfg == nil {
		t.log.Warn("config not loaded")
		return patch.ErrSystem
	}
	loader := t.loader
	if loader == nil {
		loader = func(pid int32, path string, flags uint32) error {
			t.log.Info("plugin load requested", zap.Int32("pid", pid), zap.String("path", path))
			return nil
		}
	}
	for _, p := range t.cfg.PluginsFor(titleID) {
		if err := loader(pid, p.Path, flags|p.Flags); err != nil {
			t.log.Warn("plugin load failed", zap.Int32("pid", pid),
				zap.String("path", p.Path), zap.Error(err))
		}
	}
	return nil
}
