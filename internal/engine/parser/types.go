package parser

import (
	"fmt"
	"time"

	"protoscope/internal/engine/hierarchy"
)

type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Diagnostic is a non-fatal problem found while extracting a file.
type Diagnostic struct {
	Location Location
	Message  string
}

// File is the extraction result for one source file. Declarations keep
// source order.
type File struct {
	Path         string
	ParsedAt     time.Time
	Declarations []hierarchy.Declaration
	Diagnostics  []Diagnostic
}
