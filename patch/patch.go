package patch

// KernelPID addresses the privileged kernel context instead of a user process.
const KernelPID int32 = 0x10005

type Kind int

const (
	KindHook Kind = iota
	KindInjection
)

func (k Kind) String() string {
	switch k {
	case KindHook:
		return "hook"
	case KindInjection:
		return "injection"
	default:
		return "unknown"
	}
}

// Handle references one live patch. Handles are unique for the lifetime of the
// system and are never reused.
type Handle uint32

// HookRef is handed to a hook function so it can invoke the behavior it
// displaced. Target is resolved at install time: for the innermost entry of a
// chain it names the relocated prologue, for any later entry it names the
// previous entry's hook function.
type HookRef struct {
	Target uint32
	Inner  bool
}
