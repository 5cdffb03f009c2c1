// Package parser extracts declared-type hierarchies from PHP and Hack
// sources with tree-sitter.
package parser

import (
	"bytes"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"

	"protoscope/internal/core/errors"
)

// Extensions lists the file extensions treated as PHP or Hack sources.
var Extensions = []string{".php", ".hh", ".hack", ".inc"}

type Extractor interface {
	Extract(node *sitter.Node, source []byte, filePath string) (*File, error)
}

// Parser is safe for concurrent use.
type Parser struct {
	pool       *ParserPool
	extractor  Extractor
	extensions map[string]bool
}

func NewParser() *Parser {
	p := &Parser{
		pool:       NewParserPool(sitter.NewLanguage(tree_sitter_php.LanguagePHP())),
		extractor:  &PHPExtractor{},
		extensions: make(map[string]bool, len(Extensions)),
	}
	for _, ext := range Extensions {
		p.extensions[ext] = true
	}
	return p
}

func (p *Parser) IsSupportedPath(path string) bool {
	return p.extensions[strings.ToLower(filepath.Ext(path))]
}

func (p *Parser) ParseFile(path string, content []byte) (*File, error) {
	content = normalizeOpenTag(content)

	tree, err := p.pool.Parse(content)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	defer tree.Close()

	res, err := p.extractor.Extract(tree.RootNode(), content, path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "extraction failed"), errors.CtxPath, path)
	}
	return res, nil
}

// normalizeOpenTag rewrites a leading Hack "<?hh" tag to "<?php" so the PHP
// grammar accepts the file.
func normalizeOpenTag(content []byte) []byte {
	trimmed := bytes.TrimLeft(content, " \t\r\n\ufeff")
	if !bytes.HasPrefix(trimmed, []byte("<?hh")) {
		return content
	}
	offset := len(content) - len(trimmed)
	out := make([]byte, 0, len(content)+1)
	out = append(out, content[:offset]...)
	out = append(out, "<?php"...)
	return append(out, trimmed[len("<?hh"):]...)
}
