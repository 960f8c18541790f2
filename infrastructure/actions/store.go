package actions

import (
	"fmt"
	"strings"
)

// Mode selects how annotations are associated with nonconformity rows.
type Mode int

const (
	// ModeKeyed attaches each annotation to the nonconformity id, so it
	// survives refiltering and reordering.
	ModeKeyed Mode = iota
	// ModePositional attaches annotations to row positions of the current
	// filtered view and discards them all whenever the view size changes.
	ModePositional
)

func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "keyed":
		return ModeKeyed, nil
	case "positional":
		return ModePositional, nil
	}
	return ModeKeyed, fmt.Errorf("unknown action mode %q", raw)
}

func (m Mode) String() string {
	if m == ModePositional {
		return "positional"
	}
	return "keyed"
}

// Store holds one corrective action per row of the current filtered
// nonconformity view. Sync must be called with the view ids before Get or
// Set. Index access outside [0, Len()) panics with an IndexError.
type Store interface {
	Sync(ids []string)
	Len() int
	Get(index int) string
	Set(index int, text string)
	// Column returns the annotations aligned with the last synced view.
	Column() []string
}

// IndexError is the panic value for out-of-range access. It signals a
// reset/mutation ordering bug in the caller.
type IndexError struct {
	Index int
	Len   int
}

func (e IndexError) Error() string {
	return fmt.Sprintf("corrective action index %d out of range [0,%d)", e.Index, e.Len)
}

func checkIndex(i, n int) {
	if i < 0 || i >= n {
		panic(IndexError{Index: i, Len: n})
	}
}

func New(mode Mode) Store {
	if mode == ModePositional {
		return &PositionalStore{}
	}
	return NewKeyedStore()
}

// IndexOf returns the position of id in ids, or -1.
func IndexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
