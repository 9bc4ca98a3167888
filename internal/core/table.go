package core

import (
	"sync"

	"github.com/DaveeFTW/taiHEN/patch"
)

type key struct {
	pid  int32
	addr uint32
}

type slotState int

const (
	slotPending slotState = iota
	slotLive
	slotDead
)

type hookEntry struct {
	handle   patch.Handle
	funcAddr uint32
	ref      patch.HookRef
}

type patchSlot struct {
	key   key
	kind  patch.Kind
	state slotState

	// mu guards the chain and the target bytes belonging to this slot.
	mu       sync.Mutex
	original []byte
	thumb    bool
	tramp    uint32
	litOff   uint32
	chain    []*hookEntry // innermost first
	handle   patch.Handle // injection only
}

type patchTable struct {
	mu    sync.Mutex
	slots map[key]*patchSlot
}

func (t *patchTable) ctor() {
	t.slots = make(map[key]*patchSlot)
}

func (t *patchTable) dtor() {
	t.slots = nil
}

// claim reserves (pid, addr) or hands back the existing slot when a hook
// chains onto an already-hooked address. A pending claim holds exclusivity
// while the decode and trampoline work happens outside the table lock.
func (t *patchTable) claim(pid int32, addr uint32, kind patch.Kind) (*patchSlot, bool, error) {
	k := key{pid: pid, addr: addr}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.slots == nil {
		// engine already shut down
		return nil, false, patch.ErrSystem
	}
	if s, ok := t.slots[k]; ok {
		if kind == patch.KindHook && s.kind == patch.KindHook && s.state == slotLive {
			return s, true, nil
		}
		return nil, false, patch.ErrPatchExists
	}
	s := &patchSlot{key: k, kind: kind}
	t.slots[k] = s
	return s, false, nil
}

func (t *patchTable) commit(s *patchSlot) {
	t.mu.Lock()
	s.state = slotLive
	t.mu.Unlock()
}

func (t *patchTable) abort(s *patchSlot) {
	t.mu.Lock()
	delete(t.slots, s.key)
	t.mu.Unlock()
}

func (t *patchTable) remove(s *patchSlot) {
	t.mu.Lock()
	s.state = slotDead
	delete(t.slots, s.key)
	t.mu.Unlock()
}
