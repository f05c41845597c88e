package result

import (
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

const (
	maxTableRows    = 10
	maxTableColumns = 5
	maxCellChars    = 50
	maxListItems    = 20
	maxFieldItems   = 20
	maxValueChars   = 100
	maxStringChars  = 1000
	maxURLChars     = 60
)

var priorityColumns = []string{"name", "title", "url", "price", "final_price", "rating"}

type metaRow struct {
	field string
	value string
}

func toMarkdown(r Result) string {
	b := r.Common()
	lines := make([]string, 0, 32)
	if b.Success {
		lines = append(lines, "# Result: ✅ Success", "")
	} else {
		lines = append(lines, "# Result: ❌ Failed", "")
	}

	if meta := metadata(r); len(meta) > 0 {
		lines = append(lines, "## Metadata", "", "| Field | Value |", "|-------|-------|")
		for _, m := range meta {
			lines = append(lines, fmt.Sprintf("| %s | %s |", m.field, m.value))
		}
		lines = append(lines, "")
	}

	if b.Data != nil {
		lines = append(lines, "## Data", "", renderData(b.Data), "")
	}

	if b.Error != "" {
		lines = append(lines, "## Error", "", "> ⚠️ "+b.Error, "")
	}
	return strings.Join(lines, "\n")
}

func metadata(r Result) []metaRow {
	b := r.Common()
	var rows []metaRow
	if b.Platform != "" {
		rows = append(rows, metaRow{"Platform", "`" + b.Platform + "`"})
	}
	if b.Method != "" {
		rows = append(rows, metaRow{"Method", "`" + b.Method + "`"})
	}
	rows = append(rows, metaRow{"Cost", fmt.Sprintf("$%.4f USD", b.Cost)})
	if ms := b.ElapsedMS(); ms >= 0 {
		rows = append(rows, metaRow{"Time", fmt.Sprintf("%.2fms", ms)})
	}
	switch v := r.(type) {
	case *ScrapeResult:
		if v.SnapshotID != "" {
			rows = append(rows, metaRow{"Snapshot ID", "`" + v.SnapshotID + "`"})
		}
		if v.URL != "" {
			rows = append(rows, metaRow{"URL", truncate(v.URL, maxURLChars)})
		}
	case *SearchResult:
		if v.SearchEngine != "" {
			rows = append(rows, metaRow{"Engine", "`" + v.SearchEngine + "`"})
		}
		if q, ok := v.Query["q"].(string); ok && q != "" {
			rows = append(rows, metaRow{"Query", truncate(q, maxURLChars)})
		}
	case *CrawlResult:
		if v.Domain != "" {
			rows = append(rows, metaRow{"Domain", v.Domain})
		}
		if v.StartURL != "" {
			rows = append(rows, metaRow{"URL", truncate(v.StartURL, maxURLChars)})
		}
	}
	return rows
}

func renderData(data any) string {
	switch v := data.(type) {
	case []any:
		return listTable(v)
	case []map[string]any:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return listTable(items)
	case map[string]any:
		return mapTable(v)
	case string:
		runes := []rune(v)
		if len(runes) <= maxStringChars {
			return "```\n" + v + "\n```"
		}
		return fmt.Sprintf("```\n%s\n... (%d more characters)\n```", string(runes[:maxStringChars]), len(runes)-maxStringChars)
	default:
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("```\n%v\n```", v)
		}
		return "```json\n" + string(raw) + "\n```"
	}
}

func listTable(items []any) string {
	if len(items) == 0 {
		return "_No data_"
	}
	if _, ok := items[0].(map[string]any); ok {
		return recordTable(items)
	}
	lines := []string{"| Index | Value |", "|-------|-------|"}
	for i, item := range items {
		if i == maxListItems {
			break
		}
		lines = append(lines, fmt.Sprintf("| %d | %s |", i, cut(fmt.Sprint(item), maxValueChars)))
	}
	if len(items) > maxListItems {
		lines = append(lines, "", fmt.Sprintf("_... and %d more items_", len(items)-maxListItems))
	}
	return strings.Join(lines, "\n")
}

func recordTable(items []any) string {
	head := items
	if len(head) > maxTableRows {
		head = head[:maxTableRows]
	}
	columns := selectColumns(head)
	if len(columns) == 0 {
		raw, _ := json.MarshalIndent(head, "", "  ")
		return "```json\n" + string(raw) + "\n```"
	}

	sep := make([]string, len(columns))
	for i := range sep {
		sep[i] = "---"
	}
	lines := []string{
		"| " + strings.Join(columns, " | ") + " |",
		"| " + strings.Join(sep, " | ") + " |",
	}
	for _, item := range head {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		cells := make([]string, len(columns))
		for i, col := range columns {
			if v, ok := rec[col]; ok && v != nil {
				cells[i] = escapePipes(truncate(fmt.Sprint(v), maxCellChars))
			}
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
	}
	if len(items) > maxTableRows {
		lines = append(lines, "", fmt.Sprintf("_... and %d more items_", len(items)-maxTableRows))
	}
	return strings.Join(lines, "\n")
}

// selectColumns picks at most maxTableColumns keys: priority keys first, then
// the remaining keys alphabetically.
func selectColumns(items []any) []string {
	keys := map[string]struct{}{}
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			for k := range rec {
				keys[k] = struct{}{}
			}
		}
	}
	selected := make([]string, 0, maxTableColumns)
	for _, k := range priorityColumns {
		if len(selected) == maxTableColumns {
			return selected
		}
		if _, ok := keys[k]; ok {
			selected = append(selected, k)
			delete(keys, k)
		}
	}
	rest := make([]string, 0, len(keys))
	for k := range keys {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	for _, k := range rest {
		if len(selected) == maxTableColumns {
			break
		}
		selected = append(selected, k)
	}
	return selected
}

func mapTable(m map[string]any) string {
	if len(m) == 0 {
		return "_No data_"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := []string{"| Key | Value |", "|-----|-------|"}
	for i, k := range keys {
		if i == maxFieldItems {
			break
		}
		lines = append(lines, fmt.Sprintf("| `%s` | %s |", k, escapePipes(truncate(fmt.Sprint(m[k]), maxValueChars))))
	}
	if len(keys) > maxFieldItems {
		lines = append(lines, "", fmt.Sprintf("_... and %d more fields_", len(keys)-maxFieldItems))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func cut(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
