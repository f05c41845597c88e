package brightdata

import (
	"context"

	"github.com/JakeFAU/brightdata-go/internal/platform"
	"github.com/JakeFAU/brightdata-go/internal/validate"
	"github.com/JakeFAU/brightdata-go/pkg/job"
	"github.com/JakeFAU/brightdata-go/pkg/normalize"
	"github.com/JakeFAU/brightdata-go/pkg/result"
)

// SourceTagCrawl tags site discovery runs.
const SourceTagCrawl = "crawl.discover"

// CrawlOptions tunes a site discovery run.
type CrawlOptions struct {
	Depth int `validate:"gte=0"`
	// FilterPattern keeps only URLs matching it; ExcludePattern drops matches.
	FilterPattern  string
	ExcludePattern string
	// DatasetID overrides the client's crawl dataset.
	DatasetID string
	SourceTag string
	Poll      Poll
}

// CrawlService discovers pages reachable from a start URL.
type CrawlService struct {
	c *Client
}

// Discover crawls from startURL and returns the pages found.
func (s *CrawlService) Discover(ctx context.Context, startURL string, opts CrawlOptions) (*result.CrawlResult, error) {
	req, err := s.discoverRequest(startURL, opts)
	if err != nil {
		return nil, err
	}
	res, err := s.c.datasets.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.(*result.CrawlResult), nil
}

func (s *CrawlService) discoverRequest(startURL string, opts CrawlOptions) (job.Request, error) {
	if err := validate.URL("start_url", startURL); err != nil {
		return job.Request{}, err
	}
	if err := validate.Struct(opts); err != nil {
		return job.Request{}, err
	}
	ds, err := platform.Lookup("crawl", "discover")
	if err != nil {
		return job.Request{}, err
	}
	datasetID := opts.DatasetID
	if datasetID == "" {
		datasetID = s.c.cfg.CrawlDatasetID
	}
	tag := opts.SourceTag
	if tag == "" {
		tag = SourceTagCrawl
	}

	extra := map[string]any{}
	if opts.Depth > 0 {
		extra["depth"] = opts.Depth
	}
	if opts.FilterPattern != "" {
		extra["filter"] = opts.FilterPattern
	}
	if opts.ExcludePattern != "" {
		extra["exclude_filter"] = opts.ExcludePattern
	}
	spec := job.Spec{
		Kind:           result.KindCrawl,
		DatasetID:      datasetID,
		Inputs:         ds.Inputs([]string{startURL}, extra),
		IncludeErrors:  true,
		Platform:       ds.Platform,
		Method:         ds.Method,
		CostPerRecord:  ds.CostPerRecord,
		SourceTag:      tag,
		StartURL:       startURL,
		Depth:          opts.Depth,
		FilterPattern:  opts.FilterPattern,
		ExcludePattern: opts.ExcludePattern,
	}
	return s.c.request("", spec, normalize.OpaqueList, opts.Poll), nil
}
