package hierarchy

// Store is the immutable Declaration Store. It is populated once by a Builder
// and is safe for concurrent readers.
type Store struct {
	types []*DeclaredType
	byKey map[string]*DeclaredType
}

// Lookup finds a declared type by case-insensitive name.
func (s *Store) Lookup(name string) (*DeclaredType, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.byKey[Key(name)]
	return t, ok
}

// Types returns every declared type in declaration order.
func (s *Store) Types() []*DeclaredType {
	if s == nil {
		return nil
	}
	return append([]*DeclaredType(nil), s.types...)
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.types)
}

// Declarations converts the store back into load-time declarations, in
// declaration order, so it can be persisted and rebuilt.
func (s *Store) Declarations() []Declaration {
	if s == nil {
		return nil
	}
	out := make([]Declaration, 0, len(s.types))
	for _, t := range s.types {
		out = append(out, t.Declaration())
	}
	return out
}

// EdgeCount returns the number of extends/implements/uses edges.
func (s *Store) EdgeCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, t := range s.types {
		if t.parent != nil {
			n++
		}
		n += len(t.interfaces) + len(t.traits)
	}
	return n
}
