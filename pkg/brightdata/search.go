package brightdata

import (
	"context"
	"net/http"
	"strings"

	"github.com/JakeFAU/brightdata-go/internal/platform"
	"github.com/JakeFAU/brightdata-go/internal/validate"
	"github.com/JakeFAU/brightdata-go/pkg/job"
	"github.com/JakeFAU/brightdata-go/pkg/normalize"
	"github.com/JakeFAU/brightdata-go/pkg/result"
	"github.com/JakeFAU/brightdata-go/pkg/sdkerr"
	"github.com/JakeFAU/brightdata-go/pkg/zone"
)

// SearchOptions tunes a search engine query.
type SearchOptions struct {
	// Country is a country name or ISO code; it localizes results and picks
	// the exit node.
	Country    string
	Language   string
	NumResults int `validate:"gte=0,lte=100"`
	Page       int `validate:"gte=0"`
	Mobile     bool
	SourceTag  string
	Poll       Poll
}

// SearchService runs search engine queries through the SERP zone.
type SearchService struct {
	c *Client
}

// Query runs query on engine (google, bing or yandex).
func (s *SearchService) Query(ctx context.Context, engine, query string, opts SearchOptions) (*result.SearchResult, error) {
	req, err := s.searchRequest(engine, query, opts)
	if err != nil {
		return nil, err
	}
	res, err := s.c.unlocker.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.(*result.SearchResult), nil
}

// Queries runs every query concurrently and returns results in input order.
func (s *SearchService) Queries(ctx context.Context, engine string, queries []string, opts SearchOptions) ([]*result.SearchResult, error) {
	if len(queries) == 0 {
		return nil, sdkerr.Validationf("queries", "at least one query is required")
	}
	reqs := make([]job.Request, 0, len(queries))
	for _, q := range queries {
		req, err := s.searchRequest(engine, q, opts)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	results, err := s.c.unlocker.RunBatch(ctx, reqs)
	if err != nil {
		return nil, err
	}
	out := make([]*result.SearchResult, len(results))
	for i, r := range results {
		out[i] = r.(*result.SearchResult)
	}
	return out, nil
}

// Google runs a Google query.
func (s *SearchService) Google(ctx context.Context, query string, opts SearchOptions) (*result.SearchResult, error) {
	return s.Query(ctx, platform.EngineGoogle, query, opts)
}

// Bing runs a Bing query.
func (s *SearchService) Bing(ctx context.Context, query string, opts SearchOptions) (*result.SearchResult, error) {
	return s.Query(ctx, platform.EngineBing, query, opts)
}

// Yandex runs a Yandex query.
func (s *SearchService) Yandex(ctx context.Context, query string, opts SearchOptions) (*result.SearchResult, error) {
	return s.Query(ctx, platform.EngineYandex, query, opts)
}

func (s *SearchService) searchRequest(engine, query string, opts SearchOptions) (job.Request, error) {
	engine = strings.ToLower(strings.TrimSpace(engine))
	if !platform.SupportedEngine(engine) {
		return job.Request{}, sdkerr.Validationf("engine", "unsupported search engine %q (supported: %s)",
			engine, strings.Join(platform.Engines(), ", "))
	}
	if strings.TrimSpace(query) == "" {
		return job.Request{}, sdkerr.Validationf("query", "search query must not be empty")
	}
	if err := validate.Struct(opts); err != nil {
		return job.Request{}, err
	}
	perPage := opts.NumResults
	if perPage == 0 {
		perPage = 10
	}

	searchURL, err := platform.SearchURL(engine, platform.SearchParams{
		Query:      query,
		Country:    opts.Country,
		Language:   opts.Language,
		NumResults: perPage,
		Page:       opts.Page,
		Mobile:     opts.Mobile,
	})
	if err != nil {
		return job.Request{}, sdkerr.Validationf("query", "%v", err)
	}
	format := "raw"
	if platform.ParsedResults(searchURL) {
		format = "json"
	}
	input := map[string]any{"url": searchURL, "format": format, "method": http.MethodGet}
	country := ""
	if opts.Country != "" {
		country = platform.CountryCode(opts.Country)
		input["country"] = country
	}
	tag := opts.SourceTag
	if tag == "" {
		tag = "search." + engine
	}

	q := map[string]any{"q": query}
	if opts.Country != "" {
		q["location"] = opts.Country
	}
	if opts.Language != "" {
		q["language"] = opts.Language
	}
	spec := job.Spec{
		Kind:           result.KindSearch,
		Inputs:         []map[string]any{input},
		URL:            searchURL,
		SourceTag:      tag,
		Query:          q,
		SearchEngine:   engine,
		Country:        strings.ToUpper(country),
		Page:           opts.Page,
		ResultsPerPage: perPage,
	}
	return s.c.request(zone.RoleSERP, spec, normalize.OrganicList, opts.Poll), nil
}
