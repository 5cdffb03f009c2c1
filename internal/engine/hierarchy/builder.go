package hierarchy

import (
	"fmt"
	"strings"

	"protoscope/internal/core/errors"
)

// Builder collects declarations during the load phase and validates them into
// an immutable Store. A Builder is not safe for concurrent use.
type Builder struct {
	decls []Declaration
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Add(decls ...Declaration) {
	b.decls = append(b.decls, decls...)
}

func (b *Builder) Len() int {
	return len(b.decls)
}

// Build validates every declaration and fails on the first invalid type.
func (b *Builder) Build() (*Store, error) {
	store, errs := b.BuildPartial()
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return store, nil
}

// BuildPartial validates every declaration, drops the invalid ones together
// with every type that depends on them, and builds a store from the rest.
// Errors are returned in declaration order.
func (b *Builder) BuildPartial() (*Store, []error) {
	v := newValidation(b.decls)
	v.checkLocal()
	v.checkEdges()
	v.checkCycles()
	v.propagate()
	return v.construct(), v.orderedErrors()
}

type validation struct {
	decls   []Declaration
	order   []string
	byKey   map[string]*Declaration
	invalid map[string]error
	dupes   []error
}

func newValidation(decls []Declaration) *validation {
	v := &validation{
		decls:   decls,
		byKey:   make(map[string]*Declaration, len(decls)),
		invalid: make(map[string]error),
	}
	for i := range decls {
		decl := &decls[i]
		key := Key(decl.Name)
		if key == "" {
			v.dupes = append(v.dupes, invalidType(decl.Name, "type name must not be empty"))
			continue
		}
		if prev, ok := v.byKey[key]; ok {
			v.dupes = append(v.dupes, invalidType(decl.Name, fmt.Sprintf("duplicate declaration of %s (first declared as %s)", decl.Name, prev.Name)))
			continue
		}
		v.byKey[key] = decl
		v.order = append(v.order, key)
	}
	return v
}

func (v *validation) fail(key string, err error) {
	if _, ok := v.invalid[key]; ok {
		return
	}
	v.invalid[key] = err
}

func (v *validation) checkLocal() {
	for _, key := range v.order {
		decl := v.byKey[key]
		if err := checkDeclaration(decl); err != nil {
			v.fail(key, err)
		}
	}
}

func checkDeclaration(decl *Declaration) error {
	switch decl.Kind {
	case KindClass, KindAbstractClass:
		if len(decl.Extends) > 1 {
			return invalidType(decl.Name, fmt.Sprintf("a class may extend at most one parent, got %s", strings.Join(decl.Extends, ", ")))
		}
	case KindInterface:
		if len(decl.Implements) > 0 {
			return invalidType(decl.Name, "an interface cannot implement interfaces; use extends")
		}
		if len(decl.Uses) > 0 {
			return invalidType(decl.Name, "an interface cannot use traits")
		}
	case KindTrait:
		if len(decl.Extends) > 0 || len(decl.Implements) > 0 {
			return invalidType(decl.Name, "a trait cannot extend or implement types")
		}
	default:
		return invalidType(decl.Name, fmt.Sprintf("unknown kind %s", decl.Kind))
	}

	seen := make(map[string]bool, len(decl.Methods))
	for _, m := range decl.Methods {
		mk := Key(m.Name)
		if mk == "" {
			return invalidType(decl.Name, "method name must not be empty")
		}
		if seen[mk] {
			return invalidType(decl.Name, fmt.Sprintf("duplicate method %s", m.Name))
		}
		seen[mk] = true

		switch decl.Kind {
		case KindInterface:
			if m.Visibility != Public {
				return invalidType(decl.Name, fmt.Sprintf("interface method %s must be public", m.Name))
			}
		case KindClass:
			if m.Abstract {
				return invalidType(decl.Name, fmt.Sprintf("class %s contains abstract method %s and must be declared abstract", decl.Name, m.Name))
			}
		}
		if m.Abstract && m.Visibility == Private && decl.Kind != KindTrait {
			return invalidType(decl.Name, fmt.Sprintf("abstract method %s cannot be private", m.Name))
		}
	}
	return nil
}

func (v *validation) checkEdges() {
	for _, key := range v.order {
		decl := v.byKey[key]
		if err := v.checkRefs(decl); err != nil {
			v.fail(key, err)
		}
	}
}

func (v *validation) checkRefs(decl *Declaration) error {
	for _, ref := range decl.Extends {
		target, err := v.target(decl, ref)
		if err != nil {
			return err
		}
		if decl.Kind == KindInterface {
			if target.Kind != KindInterface {
				return invalidType(decl.Name, fmt.Sprintf("interface %s cannot extend %s %s", decl.Name, target.Kind, target.Name))
			}
			continue
		}
		if !target.Kind.IsClassLike() {
			return invalidType(decl.Name, fmt.Sprintf("class %s cannot extend %s %s", decl.Name, target.Kind, target.Name))
		}
	}
	for _, ref := range decl.Implements {
		target, err := v.target(decl, ref)
		if err != nil {
			return err
		}
		if target.Kind != KindInterface {
			return invalidType(decl.Name, fmt.Sprintf("%s cannot implement %s %s", decl.Name, target.Kind, target.Name))
		}
	}
	for _, ref := range decl.Uses {
		target, err := v.target(decl, ref)
		if err != nil {
			return err
		}
		if target.Kind != KindTrait {
			return invalidType(decl.Name, fmt.Sprintf("%s cannot use %s %s as a trait", decl.Name, target.Kind, target.Name))
		}
	}
	return nil
}

func (v *validation) target(decl *Declaration, ref string) (*Declaration, error) {
	target, ok := v.byKey[Key(ref)]
	if !ok {
		return nil, invalidType(decl.Name, fmt.Sprintf("%s references undeclared type %s", decl.Name, ref))
	}
	return target, nil
}

func (v *validation) edges() map[string][]string {
	edges := make(map[string][]string, len(v.order))
	for _, key := range v.order {
		decl := v.byKey[key]
		refs := make([]string, 0, len(decl.Extends)+len(decl.Implements)+len(decl.Uses))
		for _, group := range [][]string{decl.Extends, decl.Implements, decl.Uses} {
			for _, ref := range group {
				if _, ok := v.byKey[Key(ref)]; ok {
					refs = append(refs, Key(ref))
				}
			}
		}
		edges[key] = refs
	}
	return edges
}

func (v *validation) checkCycles() {
	for _, cycle := range detectCycles(v.order, v.edges()) {
		names := make([]string, 0, len(cycle)+1)
		for _, key := range cycle {
			names = append(names, v.byKey[key].Name)
		}
		names = append(names, names[0])
		path := strings.Join(names, " -> ")
		for _, key := range cycle {
			v.fail(key, invalidType(v.byKey[key].Name, "inheritance cycle "+path))
		}
	}
}

// propagate marks every type that depends on an invalid type as invalid.
func (v *validation) propagate() {
	edges := v.edges()
	for changed := true; changed; {
		changed = false
		for _, key := range v.order {
			if _, bad := v.invalid[key]; bad {
				continue
			}
			for _, dep := range edges[key] {
				if _, bad := v.invalid[dep]; bad {
					v.fail(key, invalidType(v.byKey[key].Name, fmt.Sprintf("depends on invalid type %s", v.byKey[dep].Name)))
					changed = true
					break
				}
			}
		}
	}
}

func (v *validation) orderedErrors() []error {
	errs := append([]error(nil), v.dupes...)
	for _, key := range v.order {
		if err, ok := v.invalid[key]; ok {
			errs = append(errs, err)
		}
	}
	return errs
}

func (v *validation) construct() *Store {
	store := &Store{
		types: make([]*DeclaredType, 0, len(v.order)),
		byKey: make(map[string]*DeclaredType, len(v.order)),
	}

	for _, key := range v.order {
		if _, bad := v.invalid[key]; bad {
			continue
		}
		decl := v.byKey[key]
		t := &DeclaredType{
			name:   strings.TrimSpace(decl.Name),
			key:    key,
			kind:   decl.Kind,
			source: decl.Source,
			byKey:  make(map[string]*MethodSlot, len(decl.Methods)),
		}
		for _, m := range decl.Methods {
			slot := &MethodSlot{
				name:       strings.TrimSpace(m.Name),
				owner:      t,
				visibility: m.Visibility,
				abstract:   m.Abstract || decl.Kind == KindInterface,
				static:     m.Static,
			}
			t.methods = append(t.methods, slot)
			t.byKey[slot.Key()] = slot
		}
		store.types = append(store.types, t)
		store.byKey[key] = t
	}

	for _, t := range store.types {
		decl := v.byKey[t.key]
		if decl.Kind == KindInterface {
			for _, ref := range decl.Extends {
				t.interfaces = appendUniqueType(t.interfaces, store.byKey[Key(ref)])
			}
		} else if len(decl.Extends) == 1 {
			t.parent = store.byKey[Key(decl.Extends[0])]
		}
		for _, ref := range decl.Implements {
			t.interfaces = appendUniqueType(t.interfaces, store.byKey[Key(ref)])
		}
		for _, ref := range decl.Uses {
			t.traits = appendUniqueType(t.traits, store.byKey[Key(ref)])
		}
	}
	return store
}

func appendUniqueType(list []*DeclaredType, t *DeclaredType) []*DeclaredType {
	for _, existing := range list {
		if existing == t {
			return list
		}
	}
	return append(list, t)
}

func invalidType(name, msg string) error {
	return (&errors.DomainError{Code: errors.CodeInvalidHierarchy, Message: msg}).WithContext(errors.CtxType, name)
}
