package result

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/brightdata-go/pkg/sdkerr"
)

// Export formats accepted by SaveToFile.
const (
	FormatJSON     = "json"
	FormatText     = "txt"
	FormatMarkdown = "markdown"
	FormatMD       = "md"
	FormatYAML     = "yaml"
)

// ToDict implements Result.
func (r *ScrapeResult) ToDict() (map[string]any, error) { return toDict(r) }

// ToJSON implements Result.
func (r *ScrapeResult) ToJSON(indent int) (string, error) { return toJSON(r, indent) }

// ToText implements Result.
func (r *ScrapeResult) ToText() string { return toText(r) }

// ToMarkdown implements Result.
func (r *ScrapeResult) ToMarkdown() string { return toMarkdown(r) }

// SaveToFile implements Result.
func (r *ScrapeResult) SaveToFile(path, format string) error { return save(r, path, format) }

// ToDict implements Result.
func (r *SearchResult) ToDict() (map[string]any, error) { return toDict(r) }

// ToJSON implements Result.
func (r *SearchResult) ToJSON(indent int) (string, error) { return toJSON(r, indent) }

// ToText implements Result.
func (r *SearchResult) ToText() string { return toText(r) }

// ToMarkdown implements Result.
func (r *SearchResult) ToMarkdown() string { return toMarkdown(r) }

// SaveToFile implements Result.
func (r *SearchResult) SaveToFile(path, format string) error { return save(r, path, format) }

// ToDict implements Result.
func (r *CrawlResult) ToDict() (map[string]any, error) { return toDict(r) }

// ToJSON implements Result.
func (r *CrawlResult) ToJSON(indent int) (string, error) { return toJSON(r, indent) }

// ToText implements Result.
func (r *CrawlResult) ToText() string { return toText(r) }

// ToMarkdown implements Result.
func (r *CrawlResult) ToMarkdown() string { return toMarkdown(r) }

// SaveToFile implements Result.
func (r *CrawlResult) SaveToFile(path, format string) error { return save(r, path, format) }

func toDict(r Result) (map[string]any, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}

func toJSON(r Result, indent int) (string, error) {
	var (
		raw []byte
		err error
	)
	if indent > 0 {
		raw, err = json.MarshalIndent(r, "", strings.Repeat(" ", indent))
	} else {
		raw, err = json.Marshal(r)
	}
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(raw), nil
}

// FromDict rebuilds a result from its mapping form. The "kind" key selects the
// variant and the rebuilt result is validated.
func FromDict(m map[string]any) (Result, error) {
	kind, _ := m["kind"].(string)
	var r Result
	switch Kind(kind) {
	case KindScrape:
		r = &ScrapeResult{}
	case KindSearch:
		r = &SearchResult{}
	case KindCrawl:
		r = &CrawlResult{}
	default:
		return nil, sdkerr.Validationf("kind", "unknown result kind %q", kind)
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode mapping: %w", err)
	}
	if err := json.Unmarshal(raw, r); err != nil {
		return nil, sdkerr.Validationf("", "decode %s result: %v", kind, err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// FromJSON decodes a result produced by ToJSON.
func FromJSON(data []byte) (Result, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, sdkerr.Validationf("", "decode result: %v", err)
	}
	return FromDict(m)
}

func save(r Result, path, format string) error {
	var (
		body []byte
		err  error
	)
	switch strings.ToLower(format) {
	case FormatJSON:
		var s string
		s, err = toJSON(r, 2)
		body = []byte(s)
	case FormatText:
		body = []byte(toText(r))
	case FormatMarkdown, FormatMD:
		body = []byte(toMarkdown(r))
	case FormatYAML:
		body, err = toYAML(r)
	default:
		return sdkerr.Validationf("format", "unsupported export format %q", format)
	}
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(filepath.Dir(abs))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("parent directory does not exist: %s", filepath.Dir(abs))
		}
		return fmt.Errorf("stat parent of %s: %w", abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("parent of %s is not a directory", abs)
	}
	if err := os.WriteFile(abs, body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", abs, err)
	}
	return nil
}

// toYAML goes through the mapping form so YAML keys match the JSON ones.
func toYAML(r Result) ([]byte, error) {
	m, err := toDict(r)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func toText(r Result) string {
	b := r.Common()
	var sb strings.Builder
	if b.Success {
		sb.WriteString("Status: ✓ Success\n")
	} else {
		sb.WriteString("Status: ✗ Failed\n")
	}
	if b.Platform != "" {
		fmt.Fprintf(&sb, "Platform: %s\n", b.Platform)
	}
	fmt.Fprintf(&sb, "Cost: $%.4f USD\n", b.Cost)
	if ms := b.ElapsedMS(); ms >= 0 {
		fmt.Fprintf(&sb, "Elapsed: %.2fms\n", ms)
	}
	if b.Error != "" {
		fmt.Fprintf(&sb, "Error: %s\n", b.Error)
	}
	if b.Data != nil {
		raw, err := json.MarshalIndent(b.Data, "", "  ")
		if err != nil {
			fmt.Fprintf(&sb, "\nData:\n%v\n", b.Data)
		} else {
			fmt.Fprintf(&sb, "\nData:\n%s\n", raw)
		}
	}
	return sb.String()
}
