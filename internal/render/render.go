package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format represents an output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTSV   Format = "tsv"
)

// ParseFormat validates a --output value
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatYAML, FormatTSV:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json, yaml or tsv)", s)
}

// Options for rendering
type Options struct {
	Format    Format
	Porcelain bool
	// Color enables lipgloss styling of status cells in tables
	Color bool
	// StatusColumn is the table column styled by status, or -1
	StatusColumn int
}

// Renderer handles output rendering
type Renderer struct {
	writer io.Writer
	opts   Options
}

// NewRenderer creates a new renderer
func NewRenderer(writer io.Writer, opts Options) *Renderer {
	if opts.Format == "" {
		opts.Format = FormatTable
	}
	return &Renderer{
		writer: writer,
		opts:   opts,
	}
}

// Format returns the active output format
func (r *Renderer) Format() Format {
	return r.opts.Format
}

// Structured reports whether output is a machine-readable document
func (r *Renderer) Structured() bool {
	return r.opts.Format == FormatJSON || r.opts.Format == FormatYAML
}

// Render writes data as JSON or YAML, or headers/rows as a table or TSV
func (r *Renderer) Render(data any, headers []string, rows [][]string) error {
	switch r.opts.Format {
	case FormatJSON:
		return r.RenderJSON(data)
	case FormatYAML:
		return r.RenderYAML(data)
	case FormatTSV:
		return r.RenderTSV(headers, rows)
	default:
		return r.RenderTable(headers, rows)
	}
}

// RenderJSON renders data as JSON
func (r *Renderer) RenderJSON(data any) error {
	encoder := json.NewEncoder(r.writer)
	if !r.opts.Porcelain {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// RenderYAML renders data as YAML
func (r *Renderer) RenderYAML(data any) error {
	// Round-trip through JSON so json tags drive the field names
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	encoder := yaml.NewEncoder(r.writer)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(generic)
}

// RenderTSV renders data as tab-separated values
func (r *Renderer) RenderTSV(headers []string, rows [][]string) error {
	if _, err := fmt.Fprintln(r.writer, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(r.writer, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return nil
}

// RenderList renders a simple list of strings
func (r *Renderer) RenderList(items []string) error {
	for _, item := range items {
		if _, err := fmt.Fprintln(r.writer, item); err != nil {
			return err
		}
	}
	return nil
}

// RenderTable renders data as a formatted table
func (r *Renderer) RenderTable(headers []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	// Calculate column widths
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	if r.opts.Porcelain {
		fmt.Fprintln(r.writer, strings.Join(headers, "\t"))
		for _, row := range rows {
			fmt.Fprintln(r.writer, strings.Join(row, "\t"))
		}
		return nil
	}

	r.renderTableRow(headers, widths, false)
	r.renderTableSeparator(widths)
	for _, row := range rows {
		r.renderTableRow(row, widths, true)
	}
	return nil
}

func (r *Renderer) renderTableRow(cells []string, widths []int, styled bool) {
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		padded := fmt.Sprintf("%-*s", widths[i], cell)
		if styled && r.opts.Color && i == r.opts.StatusColumn {
			padded = StatusStyle(cell).Render(padded)
		}
		if i == len(cells)-1 {
			padded = strings.TrimRight(padded, " ")
		}
		fmt.Fprint(r.writer, padded)
		if i < len(cells)-1 {
			fmt.Fprint(r.writer, "  ")
		}
	}
	fmt.Fprintln(r.writer)
}

func (r *Renderer) renderTableSeparator(widths []int) {
	for i, width := range widths {
		fmt.Fprint(r.writer, strings.Repeat("-", width))
		if i < len(widths)-1 {
			fmt.Fprint(r.writer, "  ")
		}
	}
	fmt.Fprintln(r.writer)
}
