package cmd

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/brightdata-go/pkg/result"
	"github.com/JakeFAU/brightdata-go/pkg/sdkerr"
)

const (
	outputText     = "text"
	outputJSON     = "json"
	outputMarkdown = "markdown"
	outputYAML     = "yaml"
)

var (
	colorPrimary = lipgloss.Color("62")
	colorSuccess = lipgloss.Color("42")
	colorError   = lipgloss.Color("196")
	colorMuted   = lipgloss.Color("240")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Width(14)
)

func renderError(msg string) string {
	return errorStyle.Render("error: ") + msg
}

func validateOutput(format string) error {
	switch format {
	case outputText, outputJSON, outputMarkdown, outputYAML:
		return nil
	default:
		return sdkerr.Validationf("output", "unsupported output %q (want text, json, markdown or yaml)", format)
	}
}

// printer renders results and plain values in the selected output format.
type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) *printer {
	return &printer{w: w, format: format}
}

func (p *printer) results(results ...result.Result) error {
	if p.format == outputJSON && len(results) > 1 {
		docs := make([]map[string]any, 0, len(results))
		for _, r := range results {
			m, err := r.ToDict()
			if err != nil {
				return err
			}
			docs = append(docs, m)
		}
		return p.json(docs)
	}
	for i, r := range results {
		if i > 0 && p.format != outputJSON {
			fmt.Fprintln(p.w)
		}
		if err := p.result(r); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) result(r result.Result) error {
	switch p.format {
	case outputJSON:
		s, err := r.ToJSON(2)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(p.w, s)
		return err
	case outputMarkdown:
		_, err := fmt.Fprintln(p.w, r.ToMarkdown())
		return err
	case outputYAML:
		m, err := r.ToDict()
		if err != nil {
			return err
		}
		return p.yaml(m)
	default:
		b := r.Common()
		status := successStyle.Render("ok")
		if !b.Success {
			status = errorStyle.Render("failed")
		}
		fmt.Fprintf(p.w, "%s %s\n", titleStyle.Render(string(b.Kind)), status)
		_, err := fmt.Fprintln(p.w, r.ToText())
		return err
	}
}

// value prints a plain document: JSON or YAML verbatim, otherwise as labeled
// rows.
func (p *printer) value(title string, v map[string]any) error {
	switch p.format {
	case outputJSON:
		return p.json(v)
	case outputYAML:
		return p.yaml(v)
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if p.format == outputMarkdown {
		fmt.Fprintf(p.w, "## %s\n\n| field | value |\n|---|---|\n", title)
		for _, k := range keys {
			fmt.Fprintf(p.w, "| %s | %v |\n", k, v[k])
		}
		return nil
	}
	fmt.Fprintln(p.w, titleStyle.Render(title))
	for _, k := range keys {
		fmt.Fprintf(p.w, "%s %v\n", labelStyle.Render(k), v[k])
	}
	return nil
}

// table prints rows under headers. JSON and YAML receive rows as records.
func (p *printer) table(title string, headers []string, rows [][]string) error {
	if p.format == outputJSON || p.format == outputYAML {
		records := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			rec := make(map[string]string, len(headers))
			for i, h := range headers {
				if i < len(row) {
					rec[h] = row[i]
				}
			}
			records = append(records, rec)
		}
		if p.format == outputJSON {
			return p.json(records)
		}
		return p.yaml(records)
	}
	if p.format == outputMarkdown {
		fmt.Fprintf(p.w, "## %s\n\n| %s |\n|%s\n", title, strings.Join(headers, " | "), strings.Repeat("---|", len(headers)))
		for _, row := range rows {
			fmt.Fprintf(p.w, "| %s |\n", strings.Join(row, " | "))
		}
		return nil
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := range headers {
			if i < len(row) && lipgloss.Width(row[i]) > widths[i] {
				widths[i] = lipgloss.Width(row[i])
			}
		}
	}
	fmt.Fprintln(p.w, titleStyle.Render(title))
	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = labelStyle.Width(widths[i] + 2).Render(h)
	}
	fmt.Fprintln(p.w, strings.TrimRight(strings.Join(cells, ""), " "))
	for _, row := range rows {
		for i := range headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = lipgloss.NewStyle().Width(widths[i] + 2).Render(cell)
		}
		fmt.Fprintln(p.w, strings.TrimRight(strings.Join(cells, ""), " "))
	}
	if len(rows) == 0 {
		fmt.Fprintln(p.w, mutedStyle.Render("(none)"))
	}
	return nil
}

func (p *printer) message(msg string) error {
	if p.format == outputJSON {
		return p.json(map[string]string{"message": msg})
	}
	_, err := fmt.Fprintln(p.w, successStyle.Render(msg))
	return err
}

func (p *printer) json(v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintln(p.w, string(body))
	return err
}

func (p *printer) yaml(v any) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	_, err := p.w.Write(buf.Bytes())
	return err
}

// saveResults writes each result to path. With several results the index is
// inserted before the extension.
func saveResults(path, format string, results ...result.Result) error {
	if path == "" {
		return nil
	}
	if format == outputText {
		format = result.FormatText
	}
	for i, r := range results {
		target := path
		if len(results) > 1 {
			target = indexedPath(path, i)
		}
		if err := r.SaveToFile(target, format); err != nil {
			return err
		}
	}
	return nil
}

func indexedPath(path string, i int) string {
	dot := strings.LastIndex(path, ".")
	slash := strings.LastIndexAny(path, `/\`)
	if dot <= slash+1 {
		return fmt.Sprintf("%s-%d", path, i)
	}
	return fmt.Sprintf("%s-%d%s", path[:dot], i, path[dot:])
}
