package addrspace

import "sync"

const pageSize = 0x1000

const allocBase = 0x70000000

// RAMSpace is a page-granular in-memory address space. It backs emulated
// targets and the fakes used by the engine tests. Unmapped pages read as
// zeroes and materialize on first write.
type RAMSpace struct {
	pid    int32
	mu     sync.Mutex
	pages  map[uint32][]byte
	next   uint32
	allocs map[uint32]uint32
}

func NewRAMSpace(pid int32) *RAMSpace {
	return &RAMSpace{
		pid:    pid,
		pages:  make(map[uint32][]byte),
		next:   allocBase,
		allocs: make(map[uint32]uint32),
	}
}

func (s *RAMSpace) Pid() int32 {
	return s.pid
}

func (s *RAMSpace) page(base uint32) []byte {
	p, ok := s.pages[base]
	if !ok {
		p = make([]byte, pageSize)
		s.pages[base] = p
	}
	return p
}

func (s *RAMSpace) MemRead(addr uint32, size int) ([]byte, error) {
	if size < 0 {
		return nil, ErrAddressInvalid
	}
	out := make([]byte, size)
	s.mu.Lock()
	defer s.mu.Unlock()
	for n := 0; n < size; {
		base := (addr + uint32(n)) &^ (pageSize - 1)
		off := (addr + uint32(n)) & (pageSize - 1)
		n += copy(out[n:], s.page(base)[off:])
	}
	return out, nil
}

func (s *RAMSpace) MemWrite(addr uint32, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n := 0; n < len(data); {
		base := (addr + uint32(n)) &^ (pageSize - 1)
		off := (addr + uint32(n)) & (pageSize - 1)
		n += copy(s.page(base)[off:], data[n:])
	}
	return nil
}

func (s *RAMSpace) MemAlloc(size uint32, prot MemProt) (uint32, error) {
	if size == 0 {
		return 0, ErrAddressInvalid
	}
	size = Align(size, uint32(pageSize))
	s.mu.Lock()
	defer s.mu.Unlock()
	addr := s.next
	s.next += size
	s.allocs[addr] = size
	return addr, nil
}

func (s *RAMSpace) MemFree(addr uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	size, ok := s.allocs[addr]
	if !ok {
		return ErrAddressInvalid
	}
	delete(s.allocs, addr)
	for base := addr &^ (pageSize - 1); base < addr+size; base += pageSize {
		delete(s.pages, base)
	}
	return nil
}

// RAMRegistry tracks which pids are live targets.
type RAMRegistry struct {
	mu     sync.Mutex
	spaces map[int32]*RAMSpace
}

func NewRAMRegistry(pids ...int32) *RAMRegistry {
	r := &RAMRegistry{spaces: make(map[int32]*RAMSpace)}
	for _, pid := range pids {
		r.Add(pid)
	}
	return r
}

func (r *RAMRegistry) Add(pid int32) *RAMSpace {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.spaces[pid]
	if !ok {
		s = NewRAMSpace(pid)
		r.spaces[pid] = s
	}
	return s
}

func (r *RAMRegistry) Remove(pid int32) {
	r.mu.Lock()
	delete(r.spaces, pid)
	r.mu.Unlock()
}

func (r *RAMRegistry) Get(pid int32) (AddressSpace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.spaces[pid]
	if !ok {
		return nil, ErrProcessNotFound
	}
	return s, nil
}
