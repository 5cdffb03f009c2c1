// Package reflection is the query surface over a resolved hierarchy:
// method handles and their prototypes.
package reflection

import (
	"protoscope/internal/engine/hierarchy"
	"protoscope/internal/engine/linearizer"
	"protoscope/internal/engine/resolver"
)

// Reflector hands out method handles for one immutable store.
type Reflector struct {
	res *resolver.Resolver
}

func New(res *resolver.Resolver) *Reflector {
	return &Reflector{res: res}
}

// NewFromStore builds the linearizer and resolver for store.
func NewFromStore(store *hierarchy.Store, opts ...resolver.Option) *Reflector {
	return New(resolver.New(store, opts...))
}

func (r *Reflector) Resolver() *resolver.Resolver { return r.res }
func (r *Reflector) Store() *hierarchy.Store      { return r.res.Store() }

// GetMethod fails with UNKNOWN_TYPE or METHOD_NOT_FOUND.
func (r *Reflector) GetMethod(typeName, method string) (*MethodHandle, error) {
	lin, entry, err := r.res.Declaring(typeName, method)
	if err != nil {
		return nil, err
	}
	return &MethodHandle{r: r, class: lin.Type(), entry: entry}, nil
}

// HasMethod reports whether typeName exists and answers method.
func (r *Reflector) HasMethod(typeName, method string) bool {
	_, _, err := r.res.Declaring(typeName, method)
	return err == nil
}

// Methods lists every method visible on typeName in linearization order.
func (r *Reflector) Methods(typeName string) ([]*MethodHandle, error) {
	lin, ok := r.res.Linearizer().Lookup(typeName)
	if !ok {
		_, _, err := r.res.Declaring(typeName, "")
		return nil, err
	}
	names := lin.Names()
	handles := make([]*MethodHandle, 0, len(names))
	for _, name := range names {
		entry, ok := lin.Declaring(name)
		if !ok {
			continue
		}
		handles = append(handles, &MethodHandle{r: r, class: lin.Type(), entry: entry})
	}
	return handles, nil
}

// MethodHandle is a method as seen from a particular type.
type MethodHandle struct {
	r     *Reflector
	class *hierarchy.DeclaredType
	entry linearizer.Entry
}

func (h *MethodHandle) Name() string { return h.entry.Slot.Name() }

// Class is the type the handle was requested for.
func (h *MethodHandle) Class() string { return h.class.Name() }

// DeclaringType is the type whose slot answers the method. Trait methods
// report the using type.
func (h *MethodHandle) DeclaringType() string { return h.entry.Declaring.Name() }

func (h *MethodHandle) Visibility() hierarchy.Visibility { return h.entry.Slot.Visibility() }
func (h *MethodHandle) IsAbstract() bool                 { return h.entry.Slot.IsAbstract() }
func (h *MethodHandle) IsStatic() bool                   { return h.entry.Slot.IsStatic() }

// FromTrait returns the name of the trait the slot was imported from, or "".
func (h *MethodHandle) FromTrait() string {
	if tr := h.entry.Trait(); tr != nil {
		return tr.Name()
	}
	return ""
}

func (h *MethodHandle) String() string {
	return h.DeclaringType() + "::" + h.Name()
}

// GetPrototype returns the handle of the ancestor declaration this method
// implements or overrides, or a NO_PROTOTYPE error.
func (h *MethodHandle) GetPrototype() (*MethodHandle, error) {
	proto, err := h.r.res.ResolvePrototype(h.class.Name(), h.Name())
	if err != nil {
		return nil, err
	}
	entry := linearizer.Entry{Declaring: proto.Declaring, Slot: proto.Slot, Via: linearizer.ViaOwn}
	if lin := h.r.res.Linearizer().Of(proto.Declaring); lin != nil {
		if found, ok := lin.EntryFor(proto.Slot); ok {
			entry = found
		}
	}
	return &MethodHandle{r: h.r, class: proto.Declaring, entry: entry}, nil
}
