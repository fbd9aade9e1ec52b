package scope

import "github.com/monsieurbadia/q5c/internal/engine"

// symbolKey hashes a name to a uint64 map key via the shared engine
// helper. It is purely a lookup accelerator: callers still compare
// the stored name to guard against the rare FNV collision, so it has
// no effect on lookup semantics.
func symbolKey(s string) uint64 {
	return engine.HashStringKey(s)
}
