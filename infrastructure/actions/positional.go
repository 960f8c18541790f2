package actions

// PositionalStore keeps one slot per row position. Any change in the
// number of filtered rows wipes every slot, even when most rows stayed
// the same, and an annotation follows the position rather than the id.
type PositionalStore struct {
	slots []string
}

// ResetIfSizeChanged reinitialises all slots to "" when n differs from
// the stored length and reports whether it did.
func (s *PositionalStore) ResetIfSizeChanged(n int) bool {
	if s.slots != nil && len(s.slots) == n {
		return false
	}
	s.slots = make([]string, n)
	return true
}

func (s *PositionalStore) Sync(ids []string) {
	s.ResetIfSizeChanged(len(ids))
}

func (s *PositionalStore) Len() int { return len(s.slots) }

func (s *PositionalStore) Get(index int) string {
	checkIndex(index, len(s.slots))
	return s.slots[index]
}

func (s *PositionalStore) Set(index int, text string) {
	checkIndex(index, len(s.slots))
	s.slots[index] = text
}

func (s *PositionalStore) Column() []string {
	out := make([]string, len(s.slots))
	copy(out, s.slots)
	return out
}
