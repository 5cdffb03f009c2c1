package parser

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeHandler is invoked for every node of a registered kind. Returning
// true keeps the walk out of the node's subtree.
type NodeHandler func(ctx *ExtractionContext, node *sitter.Node) bool

// ExtractionContext is shared by the handlers of one file.
type ExtractionContext struct {
	Source []byte
	File   *File
}

// ExtractorEngine dispatches handlers by node kind during a pre-order walk.
type ExtractorEngine struct {
	handlers map[string]NodeHandler
}

func NewExtractorEngine(handlers map[string]NodeHandler) *ExtractorEngine {
	return &ExtractorEngine{handlers: handlers}
}

// Walk visits root and its descendants with a tree cursor, so deeply
// nested sources do not grow the Go stack.
func (e *ExtractorEngine) Walk(ctx *ExtractionContext, root *sitter.Node) {
	if root == nil {
		return
	}
	cursor := root.Walk()
	defer cursor.Close()

	for {
		node := cursor.Node()
		skip := false
		if handler, ok := e.handlers[node.Kind()]; ok {
			skip = handler(ctx, node)
		}
		if !skip && cursor.GotoFirstChild() {
			continue
		}
		for !cursor.GotoNextSibling() {
			if !cursor.GotoParent() {
				return
			}
		}
	}
}

func (c *ExtractionContext) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.Source[node.StartByte():node.EndByte()])
}

func (c *ExtractionContext) Location(node *sitter.Node) Location {
	pos := node.StartPosition()
	return Location{File: c.File.Path, Line: int(pos.Row) + 1, Column: int(pos.Column) + 1}
}

// FirstChild returns the first direct child of the given kind, or nil.
func (c *ExtractionContext) FirstChild(node *sitter.Node, kind string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}

func (c *ExtractionContext) HasChild(node *sitter.Node, kind string) bool {
	return c.FirstChild(node, kind) != nil
}

func (c *ExtractionContext) ChildText(node *sitter.Node, kind string) string {
	return c.Text(c.FirstChild(node, kind))
}

// Diagnose records a non-fatal problem at node.
func (c *ExtractionContext) Diagnose(node *sitter.Node, format string, args ...any) {
	c.File.Diagnostics = append(c.File.Diagnostics, Diagnostic{
		Location: c.Location(node),
		Message:  fmt.Sprintf(format, args...),
	})
}
