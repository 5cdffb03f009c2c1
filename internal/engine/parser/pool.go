package parser

import (
	"sync"
	"sync/atomic"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"protoscope/internal/core/errors"
)

// ParserPool recycles PHP parsers across files. ParseFiles runs one file
// per goroutine, so the pool grows to at most GOMAXPROCS parsers.
type ParserPool struct {
	lang   *sitter.Language
	pool   sync.Pool
	leased atomic.Int64
}

// NewParserPool creates a pool for lang, which must outlive the pool.
func NewParserPool(lang *sitter.Language) *ParserPool {
	p := &ParserPool{lang: lang}
	p.pool.New = func() any { return sitter.NewParser() }
	return p
}

// Get leases a parser bound to the pool's grammar.
func (p *ParserPool) Get() (*sitter.Parser, error) {
	sp := p.pool.Get().(*sitter.Parser)
	if err := sp.SetLanguage(p.lang); err != nil {
		sp.Close()
		return nil, errors.Wrap(err, errors.CodeInternal, "php grammar rejected by tree-sitter runtime")
	}
	p.leased.Add(1)
	return sp, nil
}

// Put resets sp and returns it. sp must not be used afterwards.
func (p *ParserPool) Put(sp *sitter.Parser) {
	if sp == nil {
		return
	}
	p.leased.Add(-1)
	sp.Reset()
	p.pool.Put(sp)
}

// Parse leases a parser for one source buffer. The caller closes the tree.
func (p *ParserPool) Parse(content []byte) (*sitter.Tree, error) {
	sp, err := p.Get()
	if err != nil {
		return nil, err
	}
	defer p.Put(sp)

	tree := sp.Parse(content, nil)
	if tree == nil {
		return nil, errors.New(errors.CodeInternal, "parse failed")
	}
	return tree, nil
}

// Stats returns the number of parsers currently leased out.
func (p *ParserPool) Stats() int {
	return int(p.leased.Load())
}
