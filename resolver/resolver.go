package resolver

import "errors"

// NID is the stable numeric identifier of a named export or import.
type NID uint32

// AnyLibrary matches the first library exporting the requested function NID.
const AnyLibrary NID = 0xFFFFFFFF

type SegmentInfo struct {
	Addr uint32
	Size uint32
}

type ModuleInfo struct {
	Modid    int32
	Name     string
	NID      NID
	Segments []SegmentInfo
}

var (
	ErrModuleNotFound = errors.New("module not found")
	ErrInvalidOffset  = errors.New("invalid segment offset")
)

// Resolver maps symbolic locations to absolute runtime addresses in a target
// address space. ResolveOffset returns the raw address; marking compressed
// instruction encoding is the caller's concern.
type Resolver interface {
	ResolveExport(pid int32, module string, libraryNID, funcNID NID) (uint32, error)
	ResolveImport(pid int32, module string, importLibraryNID, importFuncNID NID) (uint32, error)
	ResolveOffset(pid int32, modid int32, segidx int, offset uint32) (uint32, error)
	GetModuleInfo(pid int32, module string) (ModuleInfo, error)
}
