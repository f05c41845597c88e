package brightdata

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/brightdata-go/internal/platform"
	"github.com/JakeFAU/brightdata-go/internal/validate"
	"github.com/JakeFAU/brightdata-go/pkg/job"
	"github.com/JakeFAU/brightdata-go/pkg/normalize"
	"github.com/JakeFAU/brightdata-go/pkg/result"
	"github.com/JakeFAU/brightdata-go/pkg/sdkerr"
	"github.com/JakeFAU/brightdata-go/pkg/zone"
)

// SourceTagURL tags plain URL scrapes.
const SourceTagURL = "scrape.url"

// Poll overrides the client's poll bounds for one call. Zero keeps the default.
type Poll struct {
	Interval time.Duration
	Timeout  time.Duration
}

func (c *Client) request(role zone.Role, spec job.Spec, shape normalize.Shape, p Poll) job.Request {
	interval, timeout := c.cfg.PollInterval, c.cfg.PollTimeout
	if p.Interval > 0 {
		interval = p.Interval
	}
	if p.Timeout > 0 {
		timeout = p.Timeout
	}
	return job.Request{Zone: role, Spec: spec, Shape: shape, PollInterval: interval, PollTimeout: timeout}
}

// ScrapeOptions tunes a web unlocker request.
type ScrapeOptions struct {
	// Country routes the request through an exit node in that ISO country.
	Country string
	// Format is raw (default) or json.
	Format    string
	Method    string
	SourceTag string
	Poll      Poll
}

// PlatformOptions tunes a dataset collection.
type PlatformOptions struct {
	// Options holds method-specific inputs such as pastDays or num_of_posts.
	Options   map[string]any
	SourceTag string
	Poll      Poll
}

// ScrapeService fetches pages through the web unlocker zone and collects
// structured records from platform datasets.
type ScrapeService struct {
	c *Client
}

// URL fetches one page. Raw responses come back as text; json responses as
// one decoded record.
func (s *ScrapeService) URL(ctx context.Context, rawURL string, opts ScrapeOptions) (*result.ScrapeResult, error) {
	req, err := s.urlRequest(rawURL, opts)
	if err != nil {
		return nil, err
	}
	res, err := s.c.unlocker.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.(*result.ScrapeResult), nil
}

// URLs fetches every page concurrently and returns results in input order.
func (s *ScrapeService) URLs(ctx context.Context, rawURLs []string, opts ScrapeOptions) ([]*result.ScrapeResult, error) {
	if err := validate.URLs("urls", rawURLs); err != nil {
		return nil, err
	}
	reqs := make([]job.Request, 0, len(rawURLs))
	for _, u := range rawURLs {
		req, err := s.urlRequest(u, opts)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	results, err := s.c.unlocker.RunBatch(ctx, reqs)
	if err != nil {
		return nil, err
	}
	return scrapeResults(results), nil
}

func (s *ScrapeService) urlRequest(rawURL string, opts ScrapeOptions) (job.Request, error) {
	if err := validate.URL("url", rawURL); err != nil {
		return job.Request{}, err
	}
	format := strings.ToLower(opts.Format)
	if format == "" {
		format = "raw"
	}
	if err := validate.ResponseFormat(format); err != nil {
		return job.Request{}, err
	}
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}
	if err := validate.Method(method); err != nil {
		return job.Request{}, err
	}
	if err := validate.Country(opts.Country); err != nil {
		return job.Request{}, err
	}
	tag := opts.SourceTag
	if tag == "" {
		tag = SourceTagURL
	}

	input := map[string]any{"url": rawURL, "format": format, "method": method}
	if opts.Country != "" {
		input["country"] = opts.Country
	}
	shape := normalize.RawText
	if format == "json" {
		shape = normalize.OpaqueRecord
	}
	spec := job.Spec{
		Kind:      result.KindScrape,
		Inputs:    []map[string]any{input},
		URL:       rawURL,
		SourceTag: tag,
	}
	return s.c.request(zone.RoleWebUnlocker, spec, shape, opts.Poll), nil
}

// Platform collects records for values from platform.method. Values are URLs
// for most methods and prompts for chatgpt.
func (s *ScrapeService) Platform(ctx context.Context, name, method string, values []string, opts PlatformOptions) (*result.ScrapeResult, error) {
	req, err := s.platformRequest(name, method, values, opts)
	if err != nil {
		return nil, err
	}
	res, err := s.c.datasets.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.(*result.ScrapeResult), nil
}

// PlatformAsync starts a collection and returns immediately.
func (s *ScrapeService) PlatformAsync(ctx context.Context, name, method string, values []string, opts PlatformOptions) (*job.Handle, error) {
	req, err := s.platformRequest(name, method, values, opts)
	if err != nil {
		return nil, err
	}
	return s.c.datasets.Start(ctx, req), nil
}

// Trigger submits a collection and returns its snapshot ID without waiting.
func (s *ScrapeService) Trigger(ctx context.Context, name, method string, values []string, opts PlatformOptions) (string, error) {
	req, err := s.platformRequest(name, method, values, opts)
	if err != nil {
		return "", err
	}
	return s.c.datasets.Trigger(ctx, req)
}

// Status performs one progress check on a snapshot.
func (s *ScrapeService) Status(ctx context.Context, snapshotID string) (job.State, error) {
	if strings.TrimSpace(snapshotID) == "" {
		return "", sdkerr.Validationf("snapshot_id", "snapshot ID is required")
	}
	return s.c.datasets.Status(ctx, snapshotID)
}

// Fetch downloads a ready snapshot normalized to shape. An empty shape means
// opaque-list.
func (s *ScrapeService) Fetch(ctx context.Context, snapshotID string, shape normalize.Shape) (any, error) {
	if strings.TrimSpace(snapshotID) == "" {
		return nil, sdkerr.Validationf("snapshot_id", "snapshot ID is required")
	}
	if shape == "" {
		shape = normalize.OpaqueList
	}
	return s.c.datasets.Fetch(ctx, snapshotID, shape)
}

func (s *ScrapeService) platformRequest(name, method string, values []string, opts PlatformOptions) (job.Request, error) {
	ds, err := platform.Lookup(name, method)
	if err != nil {
		return job.Request{}, sdkerr.Validationf("platform", "%v", err)
	}
	if ds.InputKey == "" {
		if err := validate.URLs("urls", values); err != nil {
			return job.Request{}, err
		}
	} else {
		if len(values) == 0 {
			return job.Request{}, sdkerr.Validationf(ds.InputKey, "at least one %s is required", ds.InputKey)
		}
		for i, v := range values {
			if strings.TrimSpace(v) == "" {
				return job.Request{}, sdkerr.Validationf(fmt.Sprintf("%s[%d]", ds.InputKey, i), "must not be empty")
			}
		}
	}
	tag := opts.SourceTag
	if tag == "" {
		tag = ds.SourceTag()
	}
	spec := job.Spec{
		Kind:          result.KindScrape,
		DatasetID:     ds.ID,
		Inputs:        ds.Inputs(values, opts.Options),
		IncludeErrors: true,
		Platform:      ds.Platform,
		Method:        ds.Method,
		CostPerRecord: ds.CostPerRecord,
		SourceTag:     tag,
	}
	if ds.InputKey == "" {
		spec.URL = values[0]
	}
	return s.c.request("", spec, normalize.OpaqueList, opts.Poll), nil
}

func scrapeResults(results []result.Result) []*result.ScrapeResult {
	out := make([]*result.ScrapeResult, len(results))
	for i, r := range results {
		out[i] = r.(*result.ScrapeResult)
	}
	return out
}
