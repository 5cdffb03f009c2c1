package parser

import (
	"strings"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"protoscope/internal/engine/hierarchy"
)

// PHPExtractor turns PHP and Hack class, interface and trait declarations
// into hierarchy declarations. Namespaces are dropped: type names are the
// unqualified identifiers.
type PHPExtractor struct{}

func (e *PHPExtractor) Extract(root *sitter.Node, source []byte, filePath string) (*File, error) {
	file := &File{
		Path:     filePath,
		ParsedAt: time.Now(),
	}

	ctx := &ExtractionContext{Source: source, File: file}
	engine := NewExtractorEngine(map[string]NodeHandler{
		"class_declaration":     e.extractClass,
		"interface_declaration": e.extractInterface,
		"trait_declaration":     e.extractTrait,
		"ERROR":                 e.noteError,
	})
	engine.Walk(ctx, root)

	return file, nil
}

func (e *PHPExtractor) noteError(ctx *ExtractionContext, node *sitter.Node) bool {
	ctx.Diagnose(node, "syntax error")
	return false
}

func (e *PHPExtractor) extractClass(ctx *ExtractionContext, node *sitter.Node) bool {
	decl := e.newDeclaration(ctx, node, hierarchy.KindClass)
	if ctx.HasChild(node, "abstract_modifier") {
		decl.Kind = hierarchy.KindAbstractClass
	}
	decl.Extends = e.typeList(ctx, ctx.FirstChild(node, "base_clause"))
	decl.Implements = e.typeList(ctx, ctx.FirstChild(node, "class_interface_clause"))
	e.extractBody(ctx, node, &decl)
	ctx.File.Declarations = append(ctx.File.Declarations, decl)
	return true
}

func (e *PHPExtractor) extractInterface(ctx *ExtractionContext, node *sitter.Node) bool {
	decl := e.newDeclaration(ctx, node, hierarchy.KindInterface)
	decl.Extends = e.typeList(ctx, ctx.FirstChild(node, "base_clause"))
	e.extractBody(ctx, node, &decl)
	for i := range decl.Methods {
		decl.Methods[i].Abstract = true
	}
	ctx.File.Declarations = append(ctx.File.Declarations, decl)
	return true
}

func (e *PHPExtractor) extractTrait(ctx *ExtractionContext, node *sitter.Node) bool {
	decl := e.newDeclaration(ctx, node, hierarchy.KindTrait)
	e.extractBody(ctx, node, &decl)
	ctx.File.Declarations = append(ctx.File.Declarations, decl)
	return true
}

func (e *PHPExtractor) newDeclaration(ctx *ExtractionContext, node *sitter.Node, kind hierarchy.Kind) hierarchy.Declaration {
	return hierarchy.Declaration{
		Name:   ctx.Text(node.ChildByFieldName("name")),
		Kind:   kind,
		Source: ctx.Location(node).String(),
	}
}

func (e *PHPExtractor) extractBody(ctx *ExtractionContext, node *sitter.Node, decl *hierarchy.Declaration) {
	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := uint(0); i < body.NamedChildCount(); i++ {
		member := body.NamedChild(i)
		if member == nil {
			continue
		}
		switch member.Kind() {
		case "use_declaration":
			decl.Uses = append(decl.Uses, e.typeList(ctx, member)...)
		case "method_declaration":
			decl.Methods = append(decl.Methods, e.method(ctx, member))
		}
	}
}

func (e *PHPExtractor) method(ctx *ExtractionContext, node *sitter.Node) hierarchy.MethodDecl {
	m := hierarchy.MethodDecl{
		Name:     ctx.Text(node.ChildByFieldName("name")),
		Abstract: ctx.HasChild(node, "abstract_modifier") || node.ChildByFieldName("body") == nil,
		Static:   ctx.HasChild(node, "static_modifier"),
	}
	if raw := ctx.ChildText(node, "visibility_modifier"); raw != "" {
		v, err := hierarchy.ParseVisibility(raw)
		if err != nil {
			ctx.Diagnose(node, "%v", err)
		}
		m.Visibility = v
	}
	return m
}

// typeList collects the type names directly under a base, interface or
// trait-use clause, dropping namespace qualifiers.
func (e *PHPExtractor) typeList(ctx *ExtractionContext, clause *sitter.Node) []string {
	if clause == nil {
		return nil
	}
	var names []string
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "name":
			names = append(names, ctx.Text(child))
		case "qualified_name":
			names = append(names, unqualify(ctx.Text(child)))
		}
	}
	return names
}

func unqualify(name string) string {
	if idx := strings.LastIndex(name, `\`); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
