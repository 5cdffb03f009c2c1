// Package report renders prototype reports for the terminal and for files.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"protoscope/internal/core/app"

	"github.com/charmbracelet/lipgloss"
)

var (
	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	protoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	noProtoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Italic(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

func RenderTSV(rows []app.ReportRow) ([]byte, error) {
	var buf strings.Builder

	buf.WriteString("Type\tMethod\tDeclaring\tPrototype\tCode\n")
	for _, row := range rows {
		buf.WriteString(fmt.Sprintf("%s\t%s\t%s\t%s\t%s\n",
			row.Type,
			row.Method,
			row.Declaring,
			row.Prototype,
			row.Code,
		))
	}

	return []byte(buf.String()), nil
}

func RenderJSON(rows []app.ReportRow) ([]byte, error) {
	if rows == nil {
		rows = []app.ReportRow{}
	}
	return json.MarshalIndent(rows, "", "  ")
}

// RenderText groups rows by type. Method columns are padded to the widest
// method name of each group.
func RenderText(rows []app.ReportRow) string {
	if len(rows) == 0 {
		return statusStyle.Render("no matching types") + "\n"
	}

	var b strings.Builder
	for start := 0; start < len(rows); {
		end := start
		width := 0
		for end < len(rows) && rows[end].Type == rows[start].Type {
			width = max(width, lipgloss.Width(rows[end].Method))
			end++
		}

		b.WriteString(typeStyle.Render(rows[start].Type))
		b.WriteString("\n")
		for _, row := range rows[start:end] {
			name := row.Method + strings.Repeat(" ", width-lipgloss.Width(row.Method))
			b.WriteString("  ")
			b.WriteString(name)
			b.WriteString("  ")
			if row.Code == "" {
				b.WriteString(protoStyle.Render("-> " + row.Prototype))
			} else {
				b.WriteString(noProtoStyle.Render("no prototype"))
			}
			if row.Declaring != row.Type+"::"+row.Method {
				b.WriteString(statusStyle.Render("  (declared in " + row.Declaring + ")"))
			}
			b.WriteString("\n")
		}
		start = end
	}
	return b.String()
}

// RenderMarkdown writes one table per report.
func RenderMarkdown(rows []app.ReportRow) string {
	var b strings.Builder
	b.WriteString("| Type | Method | Declaring | Prototype |\n")
	b.WriteString("| --- | --- | --- | --- |\n")
	for _, row := range rows {
		proto := row.Prototype
		if row.Code != "" {
			proto = "_none_"
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", row.Type, row.Method, row.Declaring, proto))
	}
	return b.String()
}
