package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"protoscope/internal/engine/hierarchy"
	"protoscope/internal/engine/resolver"
)

func parseFixture(t *testing.T) *File {
	t.Helper()
	path := filepath.Join("testdata", "prototypes.hh")
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	file, err := NewParser().ParseFile(path, content)
	require.NoError(t, err)
	return file
}

func declByName(file *File) map[string]hierarchy.Declaration {
	out := make(map[string]hierarchy.Declaration, len(file.Declarations))
	for _, decl := range file.Declarations {
		out[decl.Name] = decl
	}
	return out
}

func TestParseFile_Declarations(t *testing.T) {
	file := parseFixture(t)
	assert.Empty(t, file.Diagnostics)
	require.Len(t, file.Declarations, 14)
	assert.Equal(t, "Int1", file.Declarations[0].Name)

	decls := declByName(file)

	int3 := decls["Int3"]
	assert.Equal(t, hierarchy.KindInterface, int3.Kind)
	assert.Equal(t, []string{"Int2"}, int3.Extends)
	require.Len(t, int3.Methods, 1)
	assert.True(t, int3.Methods[0].Abstract)
	assert.Equal(t, hierarchy.Public, int3.Methods[0].Visibility)

	cls1 := decls["Cls1"]
	require.Len(t, cls1.Methods, 2)
	assert.Equal(t, hierarchy.Private, cls1.Methods[1].Visibility)
	assert.False(t, cls1.Methods[0].Abstract)

	cls3 := decls["Cls3"]
	assert.Equal(t, hierarchy.KindAbstractClass, cls3.Kind)
	assert.Equal(t, []string{"Cls2"}, cls3.Extends)
	assert.Equal(t, []string{"Int3"}, cls3.Implements)
	assert.Empty(t, cls3.Methods)

	assert.Equal(t, []string{"Int4"}, decls["Cls5"].Implements)
	assert.Equal(t, []string{"Method3"}, decls["Cls6"].Uses)
	assert.Equal(t, hierarchy.KindTrait, decls["Method3"].Kind)
	assert.Equal(t, []string{"PDO"}, decls["PDOSubClass"].Extends)

	cls8 := decls["Cls8"]
	require.Len(t, cls8.Methods, 2)
	assert.True(t, cls8.Methods[1].Static)
	assert.Contains(t, cls8.Source, "prototypes.hh:")
}

func TestParseFile_BuildsQueryableHierarchy(t *testing.T) {
	file := parseFixture(t)

	b := hierarchy.NewBuilder()
	b.Add(file.Declarations...)
	store, errs := b.BuildPartial()

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "PDOSubClass")
	assert.Equal(t, 13, store.Len())

	r := resolver.New(store)
	proto, err := r.ResolvePrototype("Cls6", "method3")
	require.NoError(t, err)
	assert.Equal(t, "Int3::method3", proto.String())

	proto, err = r.ResolvePrototype("Cls8", "method7")
	require.NoError(t, err)
	assert.Equal(t, "Cls7::method7", proto.String())
}

func TestParseFile_AbstractMethods(t *testing.T) {
	src := []byte(`<?php
abstract class Shape {
  abstract protected function area(): float;
  public function name() { return "shape"; }
}
`)
	file, err := NewParser().ParseFile("shape.php", src)
	require.NoError(t, err)
	require.Len(t, file.Declarations, 1)

	shape := file.Declarations[0]
	assert.Equal(t, hierarchy.KindAbstractClass, shape.Kind)
	require.Len(t, shape.Methods, 2)
	assert.True(t, shape.Methods[0].Abstract)
	assert.Equal(t, hierarchy.Protected, shape.Methods[0].Visibility)
	assert.False(t, shape.Methods[1].Abstract)
}

func TestNormalizeOpenTag(t *testing.T) {
	assert.Equal(t, "<?php\nclass A {}", string(normalizeOpenTag([]byte("<?hh\nclass A {}"))))
	assert.Equal(t, "\n<?php // strict", string(normalizeOpenTag([]byte("\n<?hh // strict"))))
	assert.Equal(t, "<?php echo 1;", string(normalizeOpenTag([]byte("<?php echo 1;"))))
}

func TestCollectFiles(t *testing.T) {
	root := t.TempDir()
	write := func(rel, body string) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	write("src/A.php", "<?php class A {}")
	write("src/B.hh", "<?hh class B extends A {}")
	write("src/readme.md", "# nope")
	write("vendor/C.php", "<?php class C {}")

	p := NewParser()
	exclude, err := NewExcludeMatcher([]string{"vendor"})
	require.NoError(t, err)

	files, err := p.CollectFiles([]string{root}, exclude)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "A.php", filepath.Base(files[0]))
	assert.Equal(t, "B.hh", filepath.Base(files[1]))

	parsed, err := p.ParseFiles(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, "A", parsed[0].Declarations[0].Name)
	assert.Equal(t, []string{"A"}, parsed[1].Declarations[0].Extends)

	_, err = p.CollectFiles([]string{filepath.Join(root, "missing")}, nil)
	assert.Error(t, err)

	_, err = NewExcludeMatcher([]string{"[unclosed"})
	assert.Error(t, err)
}

func TestParserPool_ParsesPHP(t *testing.T) {
	p := NewParser()

	sp, err := p.pool.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, p.pool.Stats())
	tree := sp.Parse([]byte("<?php interface I { function m(); }"), nil)
	require.NotNil(t, tree)
	defer tree.Close()
	assert.False(t, tree.RootNode().HasError())

	p.pool.Put(sp)
	p.pool.Put(nil)
	assert.Equal(t, 0, p.pool.Stats())

	tree2, err := p.pool.Parse([]byte("<?php trait T {}"))
	require.NoError(t, err)
	tree2.Close()
	assert.Equal(t, 0, p.pool.Stats())
}
