// Package hierarchytest provides declaration fixtures shared by the engine
// package tests.
package hierarchytest

import "protoscope/internal/engine/hierarchy"

func pub(name string) hierarchy.MethodDecl {
	return hierarchy.MethodDecl{Name: name, Visibility: hierarchy.Public}
}

func abstract(name string) hierarchy.MethodDecl {
	return hierarchy.MethodDecl{Name: name, Visibility: hierarchy.Public, Abstract: true}
}

// ReflectionFixture mirrors the classic getPrototype smoke test: interfaces
// Int1..Int4 (Int3 extends Int2), classes Cls1..Cls8 and trait Method3.
func ReflectionFixture() []hierarchy.Declaration {
	return []hierarchy.Declaration{
		{Name: "Int1", Kind: hierarchy.KindInterface, Methods: []hierarchy.MethodDecl{abstract("method1")}},
		{Name: "Int2", Kind: hierarchy.KindInterface, Methods: []hierarchy.MethodDecl{abstract("method2")}},
		{Name: "Int3", Kind: hierarchy.KindInterface, Extends: []string{"Int2"}, Methods: []hierarchy.MethodDecl{abstract("method3")}},
		{Name: "Int4", Kind: hierarchy.KindInterface, Methods: []hierarchy.MethodDecl{abstract("method4")}},
		{Name: "Cls1", Kind: hierarchy.KindClass, Methods: []hierarchy.MethodDecl{
			pub("method1"),
			{Name: "method2", Visibility: hierarchy.Private},
		}},
		{Name: "Cls2", Kind: hierarchy.KindClass, Methods: []hierarchy.MethodDecl{pub("method1"), pub("method2")}},
		{Name: "Cls3", Kind: hierarchy.KindAbstractClass, Extends: []string{"Cls2"}, Implements: []string{"Int3"}},
		{Name: "Cls4", Kind: hierarchy.KindClass, Extends: []string{"Cls3"}, Methods: []hierarchy.MethodDecl{pub("method3")}},
		{Name: "Cls5", Kind: hierarchy.KindClass, Extends: []string{"Cls4"}, Implements: []string{"Int4"}, Methods: []hierarchy.MethodDecl{pub("method4")}},
		{Name: "Method3", Kind: hierarchy.KindTrait, Methods: []hierarchy.MethodDecl{pub("method3")}},
		{Name: "Cls6", Kind: hierarchy.KindClass, Extends: []string{"Cls4"}, Implements: []string{"Int4"}, Uses: []string{"Method3"}, Methods: []hierarchy.MethodDecl{pub("method4")}},
		{Name: "Cls7", Kind: hierarchy.KindClass, Extends: []string{"Cls6"}, Methods: []hierarchy.MethodDecl{pub("method1"), pub("method7")}},
		{Name: "Cls8", Kind: hierarchy.KindClass, Extends: []string{"Cls7"}, Methods: []hierarchy.MethodDecl{pub("method7")}},
	}
}

// ContractFixture covers the interface/abstract-class chains: I declares m,
// B implements I without a body, C and D override m, J extends I, E
// implements J, F uses trait T under parent G, and K reaches I twice.
func ContractFixture() []hierarchy.Declaration {
	return []hierarchy.Declaration{
		{Name: "I", Kind: hierarchy.KindInterface, Methods: []hierarchy.MethodDecl{abstract("m")}},
		{Name: "B", Kind: hierarchy.KindAbstractClass, Implements: []string{"I"}},
		{Name: "C", Kind: hierarchy.KindClass, Extends: []string{"B"}, Methods: []hierarchy.MethodDecl{pub("m")}},
		{Name: "D", Kind: hierarchy.KindClass, Extends: []string{"C"}, Methods: []hierarchy.MethodDecl{pub("m")}},
		{Name: "J", Kind: hierarchy.KindInterface, Extends: []string{"I"}},
		{Name: "E", Kind: hierarchy.KindClass, Implements: []string{"J"}, Methods: []hierarchy.MethodDecl{pub("m")}},
		{Name: "T", Kind: hierarchy.KindTrait, Methods: []hierarchy.MethodDecl{pub("m")}},
		{Name: "G", Kind: hierarchy.KindClass, Methods: []hierarchy.MethodDecl{pub("other")}},
		{Name: "F", Kind: hierarchy.KindClass, Extends: []string{"G"}, Uses: []string{"T"}},
		{Name: "L", Kind: hierarchy.KindInterface, Extends: []string{"I"}},
		{Name: "K", Kind: hierarchy.KindClass, Implements: []string{"J", "L"}, Methods: []hierarchy.MethodDecl{pub("m")}},
		{Name: "A", Kind: hierarchy.KindClass, Methods: []hierarchy.MethodDecl{pub("m")}},
	}
}

// MustBuild builds a store or panics; fixtures are always valid.
func MustBuild(decls []hierarchy.Declaration) *hierarchy.Store {
	b := hierarchy.NewBuilder()
	b.Add(decls...)
	store, err := b.Build()
	if err != nil {
		panic(err)
	}
	return store
}
