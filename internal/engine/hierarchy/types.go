package hierarchy

import (
	"fmt"
	"strings"
)

type Kind int

const (
	KindClass Kind = iota
	KindAbstractClass
	KindInterface
	KindTrait
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindAbstractClass:
		return "abstract"
	case KindInterface:
		return "interface"
	case KindTrait:
		return "trait"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts the manifest spellings of a kind.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "class":
		return KindClass, nil
	case "abstract", "abstract class", "abstract_class":
		return KindAbstractClass, nil
	case "interface":
		return KindInterface, nil
	case "trait":
		return KindTrait, nil
	default:
		return KindClass, fmt.Errorf("unknown type kind %q", raw)
	}
}

// IsClassLike reports whether the kind participates in the class chain.
func (k Kind) IsClassLike() bool {
	return k == KindClass || k == KindAbstractClass
}

type Visibility int

const (
	Public Visibility = iota
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return fmt.Sprintf("visibility(%d)", int(v))
	}
}

func ParseVisibility(raw string) (Visibility, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "public":
		return Public, nil
	case "protected":
		return Protected, nil
	case "private":
		return Private, nil
	default:
		return Public, fmt.Errorf("unknown visibility %q", raw)
	}
}

// MethodDecl is the load-time description of a method slot.
type MethodDecl struct {
	Name       string
	Visibility Visibility
	Abstract   bool
	Static     bool
}

// Declaration is the load-time description of one declared type, as produced
// by a manifest or source loader. Extends holds the parent class for classes
// and the parent interfaces for interfaces.
type Declaration struct {
	Name       string
	Kind       Kind
	Extends    []string
	Implements []string
	Uses       []string
	Methods    []MethodDecl
	Source     string
}

// Key folds a type or method name to its lookup key. Names are
// case-insensitive; the declared spelling is kept for display.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MethodSlot is a named method entry owned by one declared type.
type MethodSlot struct {
	name       string
	owner      *DeclaredType
	visibility Visibility
	abstract   bool
	static     bool
}

func (m *MethodSlot) Name() string           { return m.name }
func (m *MethodSlot) Key() string            { return Key(m.name) }
func (m *MethodSlot) Owner() *DeclaredType   { return m.owner }
func (m *MethodSlot) Visibility() Visibility { return m.visibility }
func (m *MethodSlot) IsAbstract() bool       { return m.abstract }
func (m *MethodSlot) IsStatic() bool         { return m.static }
func (m *MethodSlot) IsPrivate() bool        { return m.visibility == Private }
func (m *MethodSlot) String() string         { return m.owner.name + "::" + m.name }
func (m *MethodSlot) decl() MethodDecl {
	return MethodDecl{Name: m.name, Visibility: m.visibility, Abstract: m.abstract, Static: m.static}
}

// DeclaredType is an immutable node of the hierarchy graph.
type DeclaredType struct {
	name       string
	key        string
	kind       Kind
	source     string
	parent     *DeclaredType
	interfaces []*DeclaredType
	traits     []*DeclaredType
	methods    []*MethodSlot
	byKey      map[string]*MethodSlot
}

func (t *DeclaredType) Name() string          { return t.name }
func (t *DeclaredType) Key() string           { return t.key }
func (t *DeclaredType) Kind() Kind            { return t.kind }
func (t *DeclaredType) Source() string        { return t.source }
func (t *DeclaredType) Parent() *DeclaredType { return t.parent }
func (t *DeclaredType) IsInterface() bool     { return t.kind == KindInterface }
func (t *DeclaredType) IsTrait() bool         { return t.kind == KindTrait }
func (t *DeclaredType) String() string        { return t.name }

// Interfaces returns the implemented interfaces of a class, or the extended
// interfaces of an interface, in declaration order.
func (t *DeclaredType) Interfaces() []*DeclaredType {
	return append([]*DeclaredType(nil), t.interfaces...)
}

// Traits returns the used traits in trait-use order.
func (t *DeclaredType) Traits() []*DeclaredType {
	return append([]*DeclaredType(nil), t.traits...)
}

// Methods returns the directly declared slots in declaration order.
func (t *DeclaredType) Methods() []*MethodSlot {
	return append([]*MethodSlot(nil), t.methods...)
}

// Method looks up a directly declared slot by case-insensitive name.
func (t *DeclaredType) Method(name string) (*MethodSlot, bool) {
	m, ok := t.byKey[Key(name)]
	return m, ok
}

// Declaration converts the node back into its load-time form.
func (t *DeclaredType) Declaration() Declaration {
	decl := Declaration{
		Name:   t.name,
		Kind:   t.kind,
		Source: t.source,
	}
	if t.parent != nil {
		decl.Extends = []string{t.parent.name}
	}
	for _, iface := range t.interfaces {
		if t.kind == KindInterface {
			decl.Extends = append(decl.Extends, iface.name)
		} else {
			decl.Implements = append(decl.Implements, iface.name)
		}
	}
	for _, tr := range t.traits {
		decl.Uses = append(decl.Uses, tr.name)
	}
	for _, m := range t.methods {
		decl.Methods = append(decl.Methods, m.decl())
	}
	return decl
}
