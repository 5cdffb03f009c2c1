// Package resolver answers "which ancestor declaration does this method
// implement or override" over an immutable declaration store.
package resolver

import (
	"fmt"

	"protoscope/internal/core/errors"
	"protoscope/internal/engine/hierarchy"
	"protoscope/internal/engine/linearizer"
)

const DefaultCacheSize = 1024

// Prototype identifies the topmost ancestor slot a method satisfies.
// Declaring is the hierarchy node carrying the slot; for a slot a class
// imported from a trait it is that class, not the trait.
type Prototype struct {
	Declaring *hierarchy.DeclaredType
	Slot      *hierarchy.MethodSlot
}

func (p Prototype) TypeName() string {
	if p.Declaring == nil {
		return ""
	}
	return p.Declaring.Name()
}

func (p Prototype) MethodName() string {
	if p.Slot == nil {
		return ""
	}
	return p.Slot.Name()
}

func (p Prototype) String() string {
	return p.TypeName() + "::" + p.MethodName()
}

type cacheKey struct {
	typ    string
	method string
}

// outcome is what the cache keeps. Errors are rebuilt per call so callers
// may annotate them freely.
type outcome struct {
	proto   Prototype
	code    errors.ErrorCode
	typ     string
	method  string
	message string
}

func (o outcome) result() (Prototype, error) {
	if o.code == "" {
		return o.proto, nil
	}
	return Prototype{}, queryError(o.code, o.typ, o.method, o.message)
}

// Resolver is safe for concurrent use. It never mutates the store it was
// built from.
type Resolver struct {
	lz     *linearizer.Linearizer
	policy Policy
	cache  *lruCache[cacheKey, outcome]
}

type Option func(*options)

type options struct {
	policy    Policy
	cacheSize int
}

func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithCacheSize bounds the result cache; zero or less disables it.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

func New(store *hierarchy.Store, opts ...Option) *Resolver {
	return NewWithLinearizer(linearizer.New(store), opts...)
}

func NewWithLinearizer(lz *linearizer.Linearizer, opts ...Option) *Resolver {
	o := options{policy: PolicyVirtual, cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	return &Resolver{
		lz:     lz,
		policy: o.policy,
		cache:  newLRUCache[cacheKey, outcome](o.cacheSize),
	}
}

func (r *Resolver) Policy() Policy                     { return r.policy }
func (r *Resolver) Linearizer() *linearizer.Linearizer { return r.lz }
func (r *Resolver) Store() *hierarchy.Store            { return r.lz.Store() }
func (r *Resolver) CacheLen() int                      { return r.cache.Len() }

// Declaring returns the slot invoked for method on instances of typeName,
// with the linearization it was found in.
func (r *Resolver) Declaring(typeName, method string) (*linearizer.Linearization, linearizer.Entry, error) {
	lin, ok := r.lz.Lookup(typeName)
	if !ok {
		return nil, linearizer.Entry{}, queryError(errors.CodeUnknownType, typeName, method,
			fmt.Sprintf("Class %q does not exist", typeName))
	}
	d, ok := lin.Declaring(method)
	if !ok {
		return nil, linearizer.Entry{}, queryError(errors.CodeMethodNotFound, lin.Type().Name(), method,
			fmt.Sprintf("Method %s::%s() does not exist", lin.Type().Name(), method))
	}
	return lin, d, nil
}

// ResolvePrototype returns the prototype of typeName::method or a typed
// UNKNOWN_TYPE, METHOD_NOT_FOUND or NO_PROTOTYPE error.
func (r *Resolver) ResolvePrototype(typeName, method string) (Prototype, error) {
	key := cacheKey{typ: hierarchy.Key(typeName), method: hierarchy.Key(method)}
	if o, ok := r.cache.Get(key); ok {
		return o.result()
	}
	o := r.resolve(typeName, method)
	r.cache.Put(key, o)
	return o.result()
}

func (r *Resolver) resolve(typeName, method string) outcome {
	lin, d, err := r.Declaring(typeName, method)
	if err != nil {
		de := err.(*errors.DomainError)
		return outcome{code: de.Code, typ: typeName, method: method, message: de.Message}
	}

	noPrototype := outcome{
		code:    errors.CodeNoPrototype,
		typ:     d.Declaring.Name(),
		method:  d.Slot.Name(),
		message: fmt.Sprintf("Method %s::%s does not have a prototype", d.Declaring.Name(), d.Slot.Name()),
	}

	if d.Slot.IsPrivate() {
		return noPrototype
	}
	root, ok := r.ancestorRoot(lin, d)
	if !ok || root.Slot == d.Slot || !r.accepts(root) {
		return noPrototype
	}
	return outcome{proto: Prototype{Declaring: root.Declaring, Slot: root.Slot}}
}

func (r *Resolver) accepts(root linearizer.Entry) bool {
	if r.policy == PolicyContract {
		return root.Slot.IsAbstract()
	}
	return true
}

// ancestorRoot finds the topmost ancestor slot behind e within lin. The
// parent class chain is climbed first; an interface root reachable from the
// type wins over a class root that is not itself interface-owned. An
// interface slot only has the interfaces its owner extends as ancestors.
func (r *Resolver) ancestorRoot(lin *linearizer.Linearization, e linearizer.Entry) (linearizer.Entry, bool) {
	if e.Declaring.IsInterface() {
		lin = r.lz.Of(e.Declaring)
	}
	classNext, ifaceNext, hasClass, hasIface := nextAncestors(lin, e)

	var classRoot linearizer.Entry
	if hasClass {
		classRoot = r.rootFrom(classNext)
		if classRoot.Declaring.IsInterface() {
			return classRoot, true
		}
	}
	if hasIface {
		return r.rootFrom(ifaceNext), true
	}
	return classRoot, hasClass
}

func (r *Resolver) rootFrom(e linearizer.Entry) linearizer.Entry {
	if root, ok := r.ancestorRoot(r.lz.Of(e.Declaring), e); ok {
		return root
	}
	return e
}

// nextAncestors returns the nearest class-chain slot above e and the first
// interface requirement other than e. Entries declared by lin's own type
// are never ancestors.
func nextAncestors(lin *linearizer.Linearization, e linearizer.Entry) (classNext, ifaceNext linearizer.Entry, hasClass, hasIface bool) {
	idx := lin.IndexOf(e)
	for i, c := range lin.Candidates(e.Slot.Name()) {
		if i == idx {
			continue
		}
		if c.IsClassChain() {
			if !hasClass && i > idx && c.Declaring != lin.Type() {
				classNext, hasClass = c, true
			}
			continue
		}
		if !hasIface {
			ifaceNext, hasIface = c, true
		}
	}
	return classNext, ifaceNext, hasClass, hasIface
}

func queryError(code errors.ErrorCode, typeName, method, message string) error {
	return (&errors.DomainError{Code: code, Message: message}).
		WithContext(errors.CtxType, typeName).
		WithContext(errors.CtxMethod, method)
}
