package linearizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"protoscope/internal/engine/hierarchy"
	"protoscope/internal/engine/hierarchy/hierarchytest"
	"protoscope/internal/engine/linearizer"
)

func entries(es []linearizer.Entry) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.String()+"/"+e.Via.String())
	}
	return out
}

func TestLinearize_ReflectionFixture(t *testing.T) {
	lz := linearizer.New(hierarchytest.MustBuild(hierarchytest.ReflectionFixture()))

	lin, ok := lz.Lookup("Cls6")
	require.True(t, ok)

	assert.Equal(t, []string{"method4", "method3", "method1", "method2"}, lin.Names())
	assert.Equal(t, []string{
		"Cls6::method3/trait",
		"Cls4::method3/parent",
		"Int3::method3/interface",
	}, entries(lin.Candidates("method3")))
	assert.Equal(t, []string{
		"Cls2::method2/parent",
		"Int2::method2/interface",
	}, entries(lin.Candidates("METHOD2")))

	d, ok := lin.Declaring("method3")
	require.True(t, ok)
	assert.Equal(t, linearizer.ViaTrait, d.Via)
	require.NotNil(t, d.Trait())
	assert.Equal(t, "Method3", d.Trait().Name())
}

func TestLinearize_OwnShadowsTrait(t *testing.T) {
	store := hierarchytest.MustBuild([]hierarchy.Declaration{
		{Name: "T1", Kind: hierarchy.KindTrait, Methods: []hierarchy.MethodDecl{{Name: "a"}, {Name: "b"}}},
		{Name: "T2", Kind: hierarchy.KindTrait, Methods: []hierarchy.MethodDecl{{Name: "b"}, {Name: "c"}}},
		{Name: "T3", Kind: hierarchy.KindTrait, Uses: []string{"T2"}, Methods: []hierarchy.MethodDecl{{Name: "d"}}},
		{Name: "User", Kind: hierarchy.KindClass, Uses: []string{"T1", "T3"}, Methods: []hierarchy.MethodDecl{{Name: "a"}}},
	})
	lin, ok := linearizer.New(store).Lookup("User")
	require.True(t, ok)

	assert.Equal(t, []string{"a", "b", "d", "c"}, lin.Names())
	assert.Equal(t, []string{"User::a/own"}, entries(lin.Candidates("a")))

	b, ok := lin.Declaring("b")
	require.True(t, ok)
	assert.Equal(t, "T1", b.Slot.Owner().Name())
	assert.Equal(t, "User", b.Declaring.Name())

	c, ok := lin.Declaring("c")
	require.True(t, ok)
	assert.Equal(t, "T2", c.Trait().Name())
}

func TestLinearize_DeclaringPrefersConcrete(t *testing.T) {
	lz := linearizer.New(hierarchytest.MustBuild(hierarchytest.ContractFixture()))

	lin, ok := lz.Lookup("B")
	require.True(t, ok)
	d, ok := lin.Declaring("m")
	require.True(t, ok)
	assert.Equal(t, "I::m", d.String())
	assert.Equal(t, linearizer.ViaInterface, d.Via)

	lin, ok = lz.Lookup("D")
	require.True(t, ok)
	d, ok = lin.Declaring("m")
	require.True(t, ok)
	assert.Equal(t, "D::m", d.String())
	assert.Equal(t, 0, lin.IndexOf(d))

	_, ok = lin.Declaring("missing")
	assert.False(t, ok)

	_, ok = lz.Lookup("Nope")
	assert.False(t, ok)
}

func TestLinearize_InterfaceBelowPrivateSlot(t *testing.T) {
	decls := []hierarchy.Declaration{
		{Name: "I", Kind: hierarchy.KindInterface, Methods: []hierarchy.MethodDecl{
			{Name: "m", Visibility: hierarchy.Public, Abstract: true},
		}},
		{Name: "Hidden", Kind: hierarchy.KindClass, Methods: []hierarchy.MethodDecl{
			{Name: "m", Visibility: hierarchy.Private},
		}},
		{Name: "Child", Kind: hierarchy.KindAbstractClass, Extends: []string{"Hidden"}, Implements: []string{"I"}},
		{Name: "Grand", Kind: hierarchy.KindClass, Extends: []string{"Child"}, Methods: []hierarchy.MethodDecl{
			{Name: "m", Visibility: hierarchy.Public},
		}},
	}
	lz := linearizer.New(hierarchytest.MustBuild(decls))

	tests := []struct {
		typ  string
		want []string
	}{
		{"Child", []string{"I::m/interface"}},
		{"Grand", []string{"Grand::m/own", "I::m/interface"}},
	}
	for _, tt := range tests {
		lin, ok := lz.Lookup(tt.typ)
		if !ok {
			t.Fatalf("%s not found", tt.typ)
		}
		got := entries(lin.Candidates("m"))
		if len(got) != len(tt.want) {
			t.Fatalf("%s candidates = %v, want %v", tt.typ, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%s candidates = %v, want %v", tt.typ, got, tt.want)
				break
			}
		}
	}
}
