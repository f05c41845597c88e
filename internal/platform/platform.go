// Package platform holds the dataset registry used by platform scrapes and the
// crawl service: which dataset serves each platform method, what a record
// costs, and how caller inputs become dataset trigger rows.
package platform

import (
	"fmt"
	"sort"
	"strings"
)

// Cost per record, in USD.
const (
	CostDefault  = 0.001
	CostLinkedIn = 0.002
	CostSocial   = 0.002
	CostChatGPT  = 0.005
)

// DefaultCrawlDataset discovers pages from a start URL.
const DefaultCrawlDataset = "gd_m6gjtfmeh43we6cqc"

// Dataset describes one platform method.
type Dataset struct {
	Platform      string
	Method        string
	ID            string
	CostPerRecord float64
	// InputKey names the per-row field holding each caller value. Empty means url.
	InputKey string
	// Fixed values merged into every input row.
	Fixed map[string]any
	// Extra option keys copied from caller options when present.
	Options []string
}

// SourceTag identifies the call in the remote API's usage reports.
func (d Dataset) SourceTag() string {
	return "scrape." + d.Platform + "." + d.Method
}

var registry = map[string]map[string]Dataset{}

func register(ds Dataset) {
	if registry[ds.Platform] == nil {
		registry[ds.Platform] = map[string]Dataset{}
	}
	registry[ds.Platform][ds.Method] = ds
}

func init() {
	register(Dataset{Platform: "amazon", Method: "products", ID: "gd_l7q7dkf244hwxbl93", CostPerRecord: CostDefault})
	register(Dataset{Platform: "amazon", Method: "reviews", ID: "gd_l1vq6tkpl34p7mq7c", CostPerRecord: CostDefault,
		Options: []string{"pastDays", "keyWord", "numOfReviews"}})
	register(Dataset{Platform: "amazon", Method: "sellers", ID: "gd_lwjkkolem8c4o7j3s", CostPerRecord: CostDefault})

	register(Dataset{Platform: "linkedin", Method: "profiles", ID: "gd_l1viktl72bvl7bjuj0", CostPerRecord: CostLinkedIn})
	register(Dataset{Platform: "linkedin", Method: "companies", ID: "gd_lhkq90okie75oj8mo", CostPerRecord: CostLinkedIn})
	register(Dataset{Platform: "linkedin", Method: "jobs", ID: "gd_lpfll7v5hcqtkxl6l", CostPerRecord: CostLinkedIn})
	register(Dataset{Platform: "linkedin", Method: "posts", ID: "gd_lyy3tktm25m4avu764", CostPerRecord: CostLinkedIn})

	register(Dataset{Platform: "instagram", Method: "profiles", ID: "gd_l1vikfch901nx3by4", CostPerRecord: CostSocial})
	register(Dataset{Platform: "instagram", Method: "posts", ID: "gd_lk5ns7kz21pck8jpis", CostPerRecord: CostSocial})
	register(Dataset{Platform: "instagram", Method: "comments", ID: "gd_ltppn085pokosxh13", CostPerRecord: CostSocial})
	register(Dataset{Platform: "instagram", Method: "reels", ID: "gd_lyclm20il4r5helnj", CostPerRecord: CostSocial})

	register(Dataset{Platform: "facebook", Method: "posts_by_profile", ID: "gd_lkaxegm826bjpoo9m5", CostPerRecord: CostSocial,
		Options: []string{"num_of_posts", "start_date", "end_date"}})
	register(Dataset{Platform: "facebook", Method: "posts_by_group", ID: "gd_lz11l67o2cb3r0lkj3", CostPerRecord: CostSocial,
		Options: []string{"num_of_posts", "start_date", "end_date"}})
	register(Dataset{Platform: "facebook", Method: "posts_by_url", ID: "gd_lyclm1571iy3mv57zw", CostPerRecord: CostSocial})
	register(Dataset{Platform: "facebook", Method: "comments", ID: "gd_lkay758p1eanlolqw8", CostPerRecord: CostSocial,
		Options: []string{"num_of_comments", "start_date", "end_date"}})
	register(Dataset{Platform: "facebook", Method: "reels", ID: "gd_lyclm3ey2q6rww027t", CostPerRecord: CostSocial,
		Options: []string{"num_of_posts", "start_date", "end_date"}})

	register(Dataset{
		Platform:      "chatgpt",
		Method:        "prompt",
		ID:            "gd_m7aof0k82r803d5bjm",
		CostPerRecord: CostChatGPT,
		InputKey:      "prompt",
		Fixed:         map[string]any{"url": "https://chatgpt.com/"},
		Options:       []string{"country", "web_search", "additional_prompt"},
	})

	register(Dataset{Platform: "crawl", Method: "discover", ID: DefaultCrawlDataset, CostPerRecord: CostDefault,
		Options: []string{"depth", "filter", "exclude_filter"}})
}

// Lookup returns the dataset serving platform.method. Names are case-insensitive.
func Lookup(platform, method string) (Dataset, error) {
	methods, ok := registry[strings.ToLower(platform)]
	if !ok {
		return Dataset{}, fmt.Errorf("unknown platform %q (known: %s)", platform, strings.Join(Platforms(), ", "))
	}
	ds, ok := methods[strings.ToLower(method)]
	if !ok {
		return Dataset{}, fmt.Errorf("platform %q has no method %q (known: %s)", platform, method, strings.Join(Methods(platform), ", "))
	}
	return ds, nil
}

// Platforms lists registered platforms in sorted order.
func Platforms() []string {
	out := make([]string, 0, len(registry))
	for p := range registry {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Methods lists a platform's methods in sorted order.
func Methods(platform string) []string {
	methods := registry[strings.ToLower(platform)]
	out := make([]string, 0, len(methods))
	for m := range methods {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Inputs builds one trigger row per value. Recognised options are copied into
// every row; country values are upper-cased.
func (d Dataset) Inputs(values []string, opts map[string]any) []map[string]any {
	key := d.InputKey
	if key == "" {
		key = "url"
	}
	rows := make([]map[string]any, 0, len(values))
	for _, v := range values {
		row := make(map[string]any, len(d.Fixed)+len(d.Options)+1)
		for k, fixed := range d.Fixed {
			row[k] = fixed
		}
		row[key] = v
		for _, name := range d.Options {
			val, ok := opts[name]
			if !ok || val == nil {
				continue
			}
			if s, isStr := val.(string); isStr && name == "country" {
				val = strings.ToUpper(s)
			}
			row[name] = val
		}
		rows = append(rows, row)
	}
	return rows
}
