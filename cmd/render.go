package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"raptorfleet/internal/errs"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func renderTable(w io.Writer, headers []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, dimStyle.Render("(none)"))
		return errs.Wrap(err, "write table")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	_, err := fmt.Fprintln(w, t.Render())
	return errs.Wrap(err, "write table")
}

// renderFields prints aligned label/value pairs in the given order.
func renderFields(w io.Writer, fields [][2]string) error {
	width := 0
	for _, f := range fields {
		width = max(width, len(f[0]))
	}

	var b strings.Builder
	for _, f := range fields {
		label := labelStyle.Render(f[0] + ":")
		b.WriteString(label)
		b.WriteString(strings.Repeat(" ", width-len(f[0])+1))
		b.WriteString(f[1])
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return errs.Wrap(err, "write fields")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
