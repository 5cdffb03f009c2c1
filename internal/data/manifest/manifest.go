// Package manifest loads declared-type hierarchies from TOML or YAML files.
package manifest

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"protoscope/internal/core/errors"
	"protoscope/internal/engine/hierarchy"
	"protoscope/internal/shared/util"
)

// Document is the on-disk shape shared by both encodings.
type Document struct {
	Types []TypeEntry `toml:"types" yaml:"types"`
}

type TypeEntry struct {
	Name       string        `toml:"name" yaml:"name"`
	Kind       string        `toml:"kind" yaml:"kind"`
	Extends    []string      `toml:"extends,omitempty" yaml:"extends,omitempty"`
	Implements []string      `toml:"implements,omitempty" yaml:"implements,omitempty"`
	Uses       []string      `toml:"uses,omitempty" yaml:"uses,omitempty"`
	Methods    []MethodEntry `toml:"methods,omitempty" yaml:"methods,omitempty"`
}

type MethodEntry struct {
	Name       string `toml:"name" yaml:"name"`
	Visibility string `toml:"visibility,omitempty" yaml:"visibility,omitempty"`
	Abstract   bool   `toml:"abstract,omitempty" yaml:"abstract,omitempty"`
	Static     bool   `toml:"static,omitempty" yaml:"static,omitempty"`
}

type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFor picks the encoding from the file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", errors.AddContext(errors.New(errors.CodeValidationError, "unsupported manifest extension"), errors.CtxPath, path)
	}
}

// LoadFile reads one manifest. Each declaration's Source is the file path.
func LoadFile(path string) ([]hierarchy.Declaration, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read manifest"), errors.CtxPath, path)
	}
	decls, err := Decode(data, format, path)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return decls, nil
}

// LoadFiles concatenates manifests in the given order.
func LoadFiles(paths []string) ([]hierarchy.Declaration, error) {
	var out []hierarchy.Declaration
	for _, path := range paths {
		decls, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, decls...)
	}
	return out, nil
}

func Decode(data []byte, format Format, source string) ([]hierarchy.Declaration, error) {
	var doc Document
	switch format {
	case FormatTOML:
		md, err := toml.Decode(string(data), &doc)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, "decode toml manifest")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Newf(errors.CodeValidationError, "unknown manifest keys: %v", undecoded)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !stderrors.Is(err, io.EOF) {
			return nil, errors.Wrap(err, errors.CodeValidationError, "decode yaml manifest")
		}
	default:
		return nil, errors.Newf(errors.CodeValidationError, "unsupported manifest format %q", format)
	}
	return doc.Declarations(source)
}

// Declarations converts the document, validating kinds and visibilities.
// Structural checks are left to hierarchy.Builder.
func (d Document) Declarations(source string) ([]hierarchy.Declaration, error) {
	out := make([]hierarchy.Declaration, 0, len(d.Types))
	for i, entry := range d.Types {
		kind, err := hierarchy.ParseKind(entry.Kind)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("types[%d]", i)), errors.CtxType, entry.Name)
		}
		decl := hierarchy.Declaration{
			Name:       entry.Name,
			Kind:       kind,
			Extends:    entry.Extends,
			Implements: entry.Implements,
			Uses:       entry.Uses,
			Source:     source,
		}
		for _, m := range entry.Methods {
			vis, err := hierarchy.ParseVisibility(m.Visibility)
			if err != nil {
				return nil, errors.AddContext(
					errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "invalid method"), errors.CtxType, entry.Name),
					errors.CtxMethod, m.Name)
			}
			decl.Methods = append(decl.Methods, hierarchy.MethodDecl{
				Name:       m.Name,
				Visibility: vis,
				Abstract:   m.Abstract,
				Static:     m.Static,
			})
		}
		out = append(out, decl)
	}
	return out, nil
}

// FromDeclarations is the inverse of Declarations, used when exporting a
// store.
func FromDeclarations(decls []hierarchy.Declaration) Document {
	doc := Document{Types: make([]TypeEntry, 0, len(decls))}
	for _, decl := range decls {
		entry := TypeEntry{
			Name:       decl.Name,
			Kind:       decl.Kind.String(),
			Extends:    decl.Extends,
			Implements: decl.Implements,
			Uses:       decl.Uses,
		}
		for _, m := range decl.Methods {
			entry.Methods = append(entry.Methods, MethodEntry{
				Name:       m.Name,
				Visibility: m.Visibility.String(),
				Abstract:   m.Abstract,
				Static:     m.Static,
			})
		}
		doc.Types = append(doc.Types, entry)
	}
	return doc
}

// Encode renders doc in the given format.
func Encode(doc Document, format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatTOML:
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "encode toml manifest")
		}
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "encode yaml manifest")
		}
		if err := enc.Close(); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "encode yaml manifest")
		}
	default:
		return nil, errors.Newf(errors.CodeValidationError, "unsupported manifest format %q", format)
	}
	return buf.Bytes(), nil
}

// WriteFile exports decls to path, choosing the format from its extension.
func WriteFile(path string, decls []hierarchy.Declaration) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	data, err := Encode(FromDeclarations(decls), format)
	if err != nil {
		return errors.AddContext(err, errors.CtxPath, path)
	}
	if err := util.WriteFileWithDirs(path, data, 0o644); err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeInternal, "write manifest"), errors.CtxPath, path)
	}
	return nil
}
