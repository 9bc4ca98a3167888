package addrspace

import "errors"

type MemProt int

const (
	MEM_PROT_NONE MemProt = 0
	MEM_PROT_READ MemProt = 1 << (iota - 1)
	MEM_PROT_WRITE
	MEM_PROT_EXEC

	MEM_PROT_ALL = MEM_PROT_READ | MEM_PROT_WRITE | MEM_PROT_EXEC
)

type Region struct {
	Addr, Size uint32
	Prot       MemProt
}

var (
	ErrProcessNotFound = errors.New("process not found")
	ErrAddressInvalid  = errors.New("address invalid")
)

// AddressSpace is the memory of one target context. Writes bypass page
// protection; the implementation owns any address-space-switch
// synchronization, callers never assume they run inside the target.
type AddressSpace interface {
	Pid() int32
	MemRead(addr uint32, size int) ([]byte, error)
	MemWrite(addr uint32, data []byte) error
	MemAlloc(size uint32, prot MemProt) (uint32, error)
	MemFree(addr uint32) error
}

type Registry interface {
	Get(pid int32) (AddressSpace, error)
}
