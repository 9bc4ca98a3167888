package resolver

import "sync"

type Export struct {
	Library NID
	Func    NID
	Addr    uint32
}

type Import struct {
	Library NID
	Func    NID
	Stub    uint32
}

type StaticModule struct {
	Info    ModuleInfo
	Exports []Export
	Imports []Import
}

// Static is a table-backed Resolver for emulated targets and tests.
type Static struct {
	mu      sync.Mutex
	modules map[int32][]StaticModule
}

func NewStatic() *Static {
	return &Static{modules: make(map[int32][]StaticModule)}
}

func (s *Static) AddModule(pid int32, m StaticModule) {
	s.mu.Lock()
	s.modules[pid] = append(s.modules[pid], m)
	s.mu.Unlock()
}

func (s *Static) ResolveExport(pid int32, module string, libraryNID, funcNID NID) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.modules[pid] {
		if m.Info.Name != module {
			continue
		}
		for _, e := range m.Exports {
			if e.Func == funcNID && (libraryNID == AnyLibrary || e.Library == libraryNID) {
				return e.Addr, nil
			}
		}
	}
	return 0, ErrModuleNotFound
}

func (s *Static) ResolveImport(pid int32, module string, importLibraryNID, importFuncNID NID) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.modules[pid] {
		if m.Info.Name != module {
			continue
		}
		for _, i := range m.Imports {
			if i.Library == importLibraryNID && i.Func == importFuncNID {
				return i.Stub, nil
			}
		}
	}
	return 0, ErrModuleNotFound
}

func (s *Static) ResolveOffset(pid int32, modid int32, segidx int, offset uint32) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.modules[pid] {
		if m.Info.Modid != modid {
			continue
		}
		if segidx < 0 || segidx >= len(m.Info.Segments) {
			return 0, ErrInvalidOffset
		}
		seg := m.Info.Segments[segidx]
		if offset >= seg.Size {
			return 0, ErrInvalidOffset
		}
		return seg.Addr + offset, nil
	}
	return 0, ErrModuleNotFound
}

func (s *Static) GetModuleInfo(pid int32, module string) (ModuleInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.modules[pid] {
		if m.Info.Name == module {
			return m.Info, nil
		}
	}
	return ModuleInfo{}, ErrModuleNotFound
}
