// Package report renders the results of the breastfeeding analysis as
// a Markdown document with tables, plots and narrative text.
package report

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Column defines a table column.
type Column struct {
	Label string

	// "left" or "right"
	Align string
}

// Table is a captioned table of formatted cells.
type Table struct {
	Caption string
	Columns []Column
	Rows    [][]string

	// Note is printed below the table.
	Note string
}

func text(label string) Column {
	return Column{Label: label, Align: "left"}
}

func number(label string) Column {
	return Column{Label: label, Align: "right"}
}

// AddRow appends a row, which must have one cell per column.
func (t *Table) AddRow(cells ...string) {
	if len(cells) != len(t.Columns) {
		msg := fmt.Sprintf("AddRow: %d cells for %d columns in table %q\n", len(cells), len(t.Columns), t.Caption)
		panic(msg)
	}
	t.Rows = append(t.Rows, cells)
}

// Markdown renders the table in GitHub-flavored Markdown.
func (t *Table) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "**%s**\n\n", t.Caption)

	var head, rule []string
	for _, c := range t.Columns {
		head = append(head, c.Label)
		if c.Align == "right" {
			rule = append(rule, "---:")
		} else {
			rule = append(rule, ":---")
		}
	}
	fmt.Fprintf(&b, "| %s |\n", strings.Join(head, " | "))
	fmt.Fprintf(&b, "|%s|\n", strings.Join(rule, "|"))
	for _, r := range t.Rows {
		fmt.Fprintf(&b, "| %s |\n", strings.Join(r, " | "))
	}

	if t.Note != "" {
		fmt.Fprintf(&b, "\n%s\n", t.Note)
	}

	return b.String()
}

// Text renders the table with fixed-width columns.
func (t *Table) Text() string {

	width := make([]int, len(t.Columns))
	for j, c := range t.Columns {
		width[j] = utf8.RuneCountInString(c.Label)
	}
	for _, r := range t.Rows {
		for j, cell := range r {
			if n := utf8.RuneCountInString(cell); n > width[j] {
				width[j] = n
			}
		}
	}

	pad := func(s string, j int) string {
		n := width[j] - utf8.RuneCountInString(s)
		if t.Columns[j].Align == "right" {
			return strings.Repeat(" ", n) + s
		}
		return s + strings.Repeat(" ", n)
	}

	var b strings.Builder
	b.WriteString(t.Caption + "\n")

	var cells []string
	total := 0
	for j, c := range t.Columns {
		cells = append(cells, pad(c.Label, j))
		total += width[j] + 2
	}
	b.WriteString(strings.Join(cells, "  ") + "\n")
	b.WriteString(strings.Repeat("-", total-2) + "\n")

	for _, r := range t.Rows {
		cells = cells[:0]
		for j, cell := range r {
			cells = append(cells, pad(cell, j))
		}
		b.WriteString(strings.Join(cells, "  ") + "\n")
	}

	if t.Note != "" {
		b.WriteString(t.Note + "\n")
	}

	return b.String()
}

// fmtFloat formats x with the given number of decimals, "NA" if x is
// not finite.
func fmtFloat(x float64, prec int) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "NA"
	}
	return fmt.Sprintf("%.*f", prec, x)
}

// fmtP formats a p-value with three decimals.
func fmtP(p float64) string {
	if math.IsNaN(p) {
		return "NA"
	}
	if p < 0.001 {
		return "<0.001"
	}
	return fmt.Sprintf("%.3f", p)
}

func fmtInt(n int) string {
	return fmt.Sprintf("%d", n)
}

func fmtCI(lcb, ucb float64, prec int) string {
	return fmt.Sprintf("(%s, %s)", fmtFloat(lcb, prec), fmtFloat(ucb, prec))
}

func yes(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
