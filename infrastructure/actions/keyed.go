package actions

// KeyedStore maps nonconformity id to annotation. Index access goes
// through the ids of the last synced view.
type KeyedStore struct {
	view []string
	text map[string]string
}

func NewKeyedStore() *KeyedStore {
	return &KeyedStore{text: make(map[string]string)}
}

func (s *KeyedStore) Sync(ids []string) {
	s.view = append(s.view[:0], ids...)
}

func (s *KeyedStore) Len() int { return len(s.view) }

func (s *KeyedStore) Get(index int) string {
	checkIndex(index, len(s.view))
	return s.text[s.view[index]]
}

func (s *KeyedStore) Set(index int, text string) {
	checkIndex(index, len(s.view))
	id := s.view[index]
	if text == "" {
		delete(s.text, id)
		return
	}
	s.text[id] = text
}

func (s *KeyedStore) Column() []string {
	out := make([]string, len(s.view))
	for i, id := range s.view {
		out[i] = s.text[id]
	}
	return out
}
