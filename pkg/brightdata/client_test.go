package brightdata

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/brightdata-go/pkg/job"
	"github.com/JakeFAU/brightdata-go/pkg/normalize"
	"github.com/JakeFAU/brightdata-go/pkg/result"
	"github.com/JakeFAU/brightdata-go/pkg/sdkerr"
	"github.com/JakeFAU/brightdata-go/pkg/zone"
)

const testToken = "test-token-1234567890"

// fakeAPI mimics the remote endpoints the client touches.
type fakeAPI struct {
	mu        sync.Mutex
	zones     []zone.Zone
	requests  []map[string]any
	triggers  []*http.Request
	inputs    [][]map[string]any
	polls     atomic.Int32
	readyOn   int32
	snapshot  string
	reqBody   string
	zoneCalls atomic.Int32
	authFails atomic.Bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+testToken || f.authFails.Load() {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid token"}`))
		return
	}
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/zone/get_active_zones":
		f.zoneCalls.Add(1)
		_ = json.NewEncoder(w).Encode(f.zones)
	case r.URL.Path == "/zone" && r.Method == http.MethodPost:
		var req struct {
			Zone zone.Zone `json:"zone"`
		}
		_ = json.Unmarshal(body, &req)
		for _, z := range f.zones {
			if z.Name == req.Zone.Name {
				w.WriteHeader(http.StatusConflict)
				return
			}
		}
		f.zones = append(f.zones, req.Zone)
		w.WriteHeader(http.StatusCreated)
	case r.URL.Path == "/zone" && r.Method == http.MethodDelete:
		var req map[string]string
		_ = json.Unmarshal(body, &req)
		for i, z := range f.zones {
			if z.Name == req["zone"] {
				f.zones = append(f.zones[:i], f.zones[i+1:]...)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	case r.URL.Path == "/request":
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		f.requests = append(f.requests, req)
		_, _ = w.Write([]byte(f.reqBody))
	case r.URL.Path == "/datasets/v3/trigger":
		var in []map[string]any
		_ = json.Unmarshal(body, &in)
		f.inputs = append(f.inputs, in)
		f.triggers = append(f.triggers, r)
		_, _ = w.Write([]byte(`{"snapshot_id":"s_abc"}`))
	case strings.HasPrefix(r.URL.Path, "/datasets/v3/progress/"):
		if f.polls.Add(1) >= f.readyOn {
			_, _ = w.Write([]byte(`{"status":"ready"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"running"}`))
	case strings.HasPrefix(r.URL.Path, "/datasets/v3/snapshot/"):
		_, _ = w.Write([]byte(f.snapshot))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type collectSink struct {
	mu  sync.Mutex
	got []result.Result
}

func (s *collectSink) Deliver(_ context.Context, r result.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, r)
	return nil
}

func newTestClient(t *testing.T, api *fakeAPI, mutate func(*Config), opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	cfg := Config{
		Token:          testToken,
		BaseURL:        srv.URL,
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
		PollInterval:   5 * time.Millisecond,
		PollTimeout:    time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(context.Background(), cfg, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNewRejectsShortToken(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), Config{Token: "short"}, nil)
	require.Error(t, err)
	assert.True(t, sdkerr.IsValidation(err))
}

func TestNewReadsTokenFromEnvironment(t *testing.T) {
	t.Setenv("BRIGHTDATA_API_TOKEN", "")
	t.Setenv("BRIGHTDATA_API_KEY", testToken)
	t.Setenv("BRIGHTDATA_TOKEN", "")
	t.Setenv("BD_API_TOKEN", "")

	cfg, err := Config{}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, testToken, cfg.Token)
	assert.Equal(t, "sdk_unlocker", cfg.WebUnlockerZone)
	assert.Equal(t, job.DefaultPollInterval, cfg.PollInterval)
}

func TestNewRejectsBadZoneName(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), Config{Token: testToken, SERPZone: "bad zone!"}, nil)
	require.Error(t, err)
	assert.True(t, sdkerr.IsValidation(err))
}

func TestNewVerifyTokenFails(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	api.authFails.Store(true)
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	_, err := New(context.Background(), Config{Token: testToken, BaseURL: srv.URL, VerifyToken: true, MaxRetries: 1}, nil)
	require.Error(t, err)
	assert.True(t, sdkerr.IsAuthentication(err))
}

func TestNewAutoCreatesZones(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{zones: []zone.Zone{{Name: "sdk_serp", Type: "serp"}}}
	c := newTestClient(t, api, func(cfg *Config) { cfg.AutoCreateZones = true })

	zones, err := c.ListZones(context.Background(), false)
	require.NoError(t, err)
	names := make([]string, 0, len(zones))
	for _, z := range zones {
		names = append(names, z.Name)
	}
	assert.ElementsMatch(t, []string{"sdk_serp", "sdk_unlocker", "sdk_browser"}, names)

	// A second ensure is answered from the cache.
	before := api.zoneCalls.Load()
	require.NoError(t, c.Zones().EnsureConfigured(context.Background()))
	assert.Equal(t, before, api.zoneCalls.Load())
}

func TestListZonesSeesOtherClients(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	c := newTestClient(t, api, nil)

	zones, err := c.ListZones(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, zones)

	api.mu.Lock()
	api.zones = append(api.zones, zone.Zone{Name: "made_elsewhere"})
	api.mu.Unlock()

	zones, err = c.ListZones(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, "made_elsewhere", zones[0].Name)
}

func TestScrapeURLRaw(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{reqBody: "<html><body>hello</body></html>"}
	sink := &collectSink{}
	c := newTestClient(t, api, nil, WithSinks(sink))

	res, err := c.Scrape().URL(context.Background(), "https://www.example.com/page", ScrapeOptions{Country: "de"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, result.StatusReady, res.Status)
	assert.Equal(t, "<html><body>hello</body></html>", res.Data)
	assert.Equal(t, "example.com", res.RootDomain)
	assert.Equal(t, SourceTagURL, res.SourceTag)
	require.NotNil(t, res.HTMLCharSize)
	assert.Equal(t, 31, *res.HTMLCharSize)

	require.Len(t, api.requests, 1)
	sent := api.requests[0]
	assert.Equal(t, "sdk_unlocker", sent["zone"])
	assert.Equal(t, "DE", sent["country"])
	assert.Equal(t, "raw", sent["format"])
	assert.Equal(t, "GET", sent["method"])

	require.Len(t, sink.got, 1)
	assert.Equal(t, res.RunID, sink.got[0].Common().RunID)
}

func TestScrapeURLCountsCharactersNotBytes(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{reqBody: "<p>héllo 世界</p>"}
	c := newTestClient(t, api, nil)

	res, err := c.Scrape().URL(context.Background(), "https://example.com", ScrapeOptions{})
	require.NoError(t, err)
	require.NotNil(t, res.HTMLCharSize)
	assert.Equal(t, 15, *res.HTMLCharSize)
}

func TestScrapeURLJSONFormat(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{reqBody: `{"status_code":200,"body":"{\"title\":\"x\"}"}`}
	c := newTestClient(t, api, nil)

	res, err := c.Scrape().URL(context.Background(), "https://example.com", ScrapeOptions{Format: "JSON"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "x"}, res.Data)
}

func TestScrapeURLValidation(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	c := newTestClient(t, api, nil)

	cases := []struct {
		name string
		url  string
		opts ScrapeOptions
	}{
		{"no scheme", "example.com", ScrapeOptions{}},
		{"bad format", "https://example.com", ScrapeOptions{Format: "xml"}},
		{"bad method", "https://example.com", ScrapeOptions{Method: "FETCH"}},
		{"bad country", "https://example.com", ScrapeOptions{Country: "zz"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Scrape().URL(context.Background(), tc.url, tc.opts)
			require.Error(t, err)
			assert.True(t, sdkerr.IsValidation(err))
		})
	}
	assert.Empty(t, api.requests)
}

func TestScrapeURLsKeepsOrder(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{reqBody: "ok"}
	c := newTestClient(t, api, nil)

	urls := []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"}
	results, err := c.Scrape().URLs(context.Background(), urls, ScrapeOptions{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, urls[i], r.URL)
		assert.True(t, r.Success)
	}
}

func TestScrapePlatformPollsUntilReady(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{readyOn: 3, snapshot: `[{"title":"a"},{"title":"b"}]`}
	c := newTestClient(t, api, nil)

	res, err := c.Scrape().Platform(context.Background(), "amazon", "reviews",
		[]string{"https://www.amazon.com/dp/B0"}, PlatformOptions{Options: map[string]any{"pastDays": 7}})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "s_abc", res.SnapshotID)
	require.NotNil(t, res.RowCount)
	assert.Equal(t, 2, *res.RowCount)
	assert.InDelta(t, 0.002, res.Cost, 1e-9)
	assert.Len(t, res.SnapshotPolledAt, 3)

	require.Len(t, api.triggers, 1)
	q := api.triggers[0].URL.Query()
	assert.Equal(t, "gd_l1vq6tkpl34p7mq7c", q.Get("dataset_id"))
	assert.Equal(t, "true", q.Get("include_errors"))
	assert.Equal(t, "scrape.amazon.reviews", q.Get("sdk_function"))
	assert.Equal(t, float64(7), api.inputs[0][0]["pastDays"])
}

func TestScrapePlatformUnknown(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, &fakeAPI{}, nil)
	_, err := c.Scrape().Platform(context.Background(), "myspace", "posts", []string{"https://x.com"}, PlatformOptions{})
	require.Error(t, err)
	assert.True(t, sdkerr.IsValidation(err))
}

func TestScrapeManualTriple(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{readyOn: 1, snapshot: `[{"id":1}]`}
	c := newTestClient(t, api, nil)
	ctx := context.Background()

	id, err := c.Scrape().Trigger(ctx, "linkedin", "profiles", []string{"https://linkedin.com/in/x"},
		PlatformOptions{SourceTag: "nightly"})
	require.NoError(t, err)
	assert.Equal(t, "s_abc", id)
	assert.Equal(t, "nightly", api.triggers[0].URL.Query().Get("sdk_function"))

	state, err := c.Scrape().Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, job.StateReady, state)

	data, err := c.Scrape().Fetch(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": float64(1)}}, data)

	_, err = c.Scrape().Status(ctx, " ")
	assert.True(t, sdkerr.IsValidation(err))
}

func TestScrapePlatformAsync(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{readyOn: 2, snapshot: `[]`}
	c := newTestClient(t, api, nil)

	h, err := c.Scrape().PlatformAsync(context.Background(), "chatgpt", "prompt", []string{"what is go?"}, PlatformOptions{})
	require.NoError(t, err)
	res, err := h.Wait()
	require.NoError(t, err)
	assert.True(t, res.Common().Success)
	assert.Equal(t, "what is go?", api.inputs[0][0]["prompt"])
	assert.Equal(t, "https://chatgpt.com/", api.inputs[0][0]["url"])
}

func TestSearchGoogle(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{reqBody: `{"organic":[{"title":"one","rank":1},{"title":"two","rank":2}]}`}
	c := newTestClient(t, api, nil)

	res, err := c.Search().Google(context.Background(), "golang", SearchOptions{Country: "United States", Page: 2})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "google", res.SearchEngine)
	assert.Equal(t, "US", res.Country)
	assert.Equal(t, map[string]any{"q": "golang", "location": "United States"}, res.Query)
	require.NotNil(t, res.TotalFound)
	assert.Equal(t, 2, *res.TotalFound)
	assert.Equal(t, "search.google", res.SourceTag)

	sent := api.requests[0]
	assert.Equal(t, "sdk_serp", sent["zone"])
	assert.Equal(t, "json", sent["format"])
	assert.Contains(t, sent["url"], "brd_json=1")
}

func TestSearchBingUsesRawFormat(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{reqBody: "<html>results</html>"}
	c := newTestClient(t, api, nil)

	res, err := c.Search().Bing(context.Background(), "pizza", SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "raw", api.requests[0]["format"])
	assert.Equal(t, normalize.Empty(normalize.OrganicList), res.Data)
}

func TestSearchValidationBeforeNetwork(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	c := newTestClient(t, api, nil)

	_, err := c.Search().Query(context.Background(), "altavista", "x", SearchOptions{})
	assert.True(t, sdkerr.IsValidation(err))
	_, err = c.Search().Query(context.Background(), "google", "   ", SearchOptions{})
	assert.True(t, sdkerr.IsValidation(err))
	_, err = c.Search().Queries(context.Background(), "google", nil, SearchOptions{})
	assert.True(t, sdkerr.IsValidation(err))
	_, err = c.Search().Google(context.Background(), "x", SearchOptions{NumResults: 500})
	assert.True(t, sdkerr.IsValidation(err))
	assert.Empty(t, api.requests)
}

func TestCrawlDiscover(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{readyOn: 1, snapshot: `[{"url":"https://example.com/a"},{"url":"https://example.com/b"}]`}
	c := newTestClient(t, api, nil)

	res, err := c.Crawl().Discover(context.Background(), "https://www.example.com", CrawlOptions{
		Depth:          2,
		FilterPattern:  "/blog/",
		ExcludePattern: "/tag/",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "example.com", res.Domain)
	assert.Len(t, res.Pages, 2)
	require.NotNil(t, res.TotalPages)
	assert.Equal(t, 2, *res.TotalPages)
	require.NotNil(t, res.Depth)
	assert.Equal(t, 2, *res.Depth)

	in := api.inputs[0][0]
	assert.Equal(t, "https://www.example.com", in["url"])
	assert.Equal(t, float64(2), in["depth"])
	assert.Equal(t, "/blog/", in["filter"])
	assert.Equal(t, "/tag/", in["exclude_filter"])
	assert.Equal(t, "gd_m6gjtfmeh43we6cqc", api.triggers[0].URL.Query().Get("dataset_id"))
	assert.Equal(t, SourceTagCrawl, api.triggers[0].URL.Query().Get("sdk_function"))
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestAccountInfoCached(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{zones: []zone.Zone{{Name: "z1"}, {Name: "z2"}}}
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	c := newTestClient(t, api, func(cfg *Config) { cfg.CustomerID = "hl_123" }, WithClock(fixedClock{t: now}))
	ctx := context.Background()

	info, err := c.AccountInfo(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "hl_123", info.CustomerID)
	assert.Equal(t, 2, info.ZoneCount)
	assert.True(t, info.TokenValid)
	assert.Equal(t, now, info.RetrievedAt)

	calls := api.zoneCalls.Load()
	_, err = c.AccountInfo(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, calls, api.zoneCalls.Load())

	require.NoError(t, c.DeleteZone(ctx, "z1"))
	info, err = c.AccountInfo(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, info.ZoneCount)
}

func TestTestConnection(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, &fakeAPI{}, nil)
	assert.True(t, c.TestConnection(context.Background()))

	bad := &fakeAPI{}
	bc := newTestClient(t, bad, nil)
	bad.authFails.Store(true)
	assert.False(t, bc.TestConnection(context.Background()))
}

func TestWithClosesClient(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(&fakeAPI{})
	t.Cleanup(srv.Close)

	var seen *Client
	err := With(context.Background(), Config{Token: testToken, BaseURL: srv.URL}, nil, func(c *Client) error {
		seen = c
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, seen)
	seen.Close()
}
