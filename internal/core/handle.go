package core

import (
	"sync"
	"sync/atomic"

	"github.com/DaveeFTW/taiHEN/patch"
)

type handleInfo struct {
	slot  *patchSlot
	entry *hookEntry // nil for injections
	owner int32
}

// handleTable issues ids unique for the lifetime of the system; freed ids are
// never handed out again.
type handleTable struct {
	next atomic.Uint32
	mu   sync.Mutex
	live map[patch.Handle]*handleInfo
}

func (h *handleTable) ctor() {
	h.live = make(map[patch.Handle]*handleInfo)
}

func (h *handleTable) dtor() {
	h.live = nil
}

func (h *handleTable) alloc(owner int32, slot *patchSlot, entry *hookEntry) patch.Handle {
	id := patch.Handle(h.next.Add(1))
	h.mu.Lock()
	h.live[id] = &handleInfo{slot: slot, entry: entry, owner: owner}
	h.mu.Unlock()
	return id
}

func (h *handleTable) lookup(id patch.Handle) (*handleInfo, bool) {
	h.mu.Lock()
	info, ok := h.live[id]
	h.mu.Unlock()
	return info, ok
}

func (h *handleTable) free(id patch.Handle) {
	h.mu.Lock()
	delete(h.live, id)
	h.mu.Unlock()
}

func (h *handleTable) byOwner(owner int32) []patch.Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []patch.Handle
	for id, info := range h.live {
		if info.owner == owner {
			out = append(out, id)
		}
	}
	return out
}

func (h *handleTable) owners() []int32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := make(map[int32]struct{})
	var out []int32
	for _, info := range h.live {
		if _, ok := seen[info.owner]; !ok {
			seen[info.owner] = struct{}{}
			out = append(out, info.owner)
		}
	}
	return out
}
