package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/brightdata-go/pkg/normalize"
	"github.com/JakeFAU/brightdata-go/pkg/result"
	"github.com/JakeFAU/brightdata-go/pkg/sdkerr"
	"github.com/JakeFAU/brightdata-go/pkg/zone"
)

// fakeAPI reports pendingPolls pending states before the final state.
type fakeAPI struct {
	mu           sync.Mutex
	pendingPolls int
	final        Status
	payload      Payload
	receipt      Receipt
	triggerErr   error
	fetchErr     error
	statusCalls  map[string]int
	triggers     []string
	seq          int
}

func newFakeAPI(pending int, payload any) *fakeAPI {
	return &fakeAPI{
		pendingPolls: pending,
		final:        Status{State: StateReady},
		payload:      Payload{Raw: payload},
		statusCalls:  map[string]int{},
	}
}

func (f *fakeAPI) Trigger(_ context.Context, zone string, _ Spec) (Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.triggerErr != nil {
		return Receipt{}, f.triggerErr
	}
	f.triggers = append(f.triggers, zone)
	f.seq++
	r := f.receipt
	if r.JobID == "" {
		r.JobID = fmt.Sprintf("s_%d", f.seq)
	}
	return r, nil
}

func (f *fakeAPI) Status(_ context.Context, jobID string) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls[jobID]++
	if f.statusCalls[jobID] <= f.pendingPolls {
		return Status{State: StatePending}, nil
	}
	return f.final, nil
}

func (f *fakeAPI) Fetch(_ context.Context, _ string) (Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return Payload{}, f.fetchErr
	}
	return f.payload, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("run-%d", s.n), nil
}

type staticZones map[zone.Role]string

func (z staticZones) Resolve(_ context.Context, role zone.Role) (string, error) {
	name, ok := z[role]
	if !ok {
		return "", &sdkerr.ZoneError{Message: "unknown role"}
	}
	return name, nil
}

type recordingSink struct {
	mu      sync.Mutex
	results []result.Result
	err     error
}

func (s *recordingSink) Deliver(_ context.Context, r result.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return s.err
}

func scrapeRequest() Request {
	return Request{
		Spec: Spec{
			Kind:          result.KindScrape,
			DatasetID:     "gd_l7q7dkf244hwxbl93",
			Inputs:        []map[string]any{{"url": "https://www.amazon.com/dp/B01"}},
			Platform:      "amazon",
			Method:        "web_scraper",
			CostPerRecord: 0.001,
			URL:           "https://www.amazon.com/dp/B01",
		},
		Shape:        normalize.OpaqueList,
		PollInterval: 5 * time.Millisecond,
		PollTimeout:  time.Second,
	}
}

func TestRunPendingThenReady(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(3, []any{map[string]any{"title": "a"}, map[string]any{"title": "b"}})
	sink := &recordingSink{}
	e := NewEngine(api, nil, nil, WithSinks(sink))

	res, err := e.Run(context.Background(), scrapeRequest())
	require.NoError(t, err)
	require.NoError(t, res.Validate())

	sr, ok := res.(*result.ScrapeResult)
	require.True(t, ok)
	require.True(t, sr.Success)
	require.Empty(t, sr.Error)
	require.Equal(t, result.StatusReady, sr.Status)
	require.Equal(t, "s_1", sr.SnapshotID)
	require.Equal(t, "amazon.com", sr.RootDomain)
	require.Len(t, sr.SnapshotPolledAt, 4)
	require.Equal(t, 2, *sr.RowCount)
	require.InDelta(t, 0.002, sr.Cost, 1e-9)

	elapsed, ok := sr.Elapsed()
	require.True(t, ok)
	require.GreaterOrEqual(t, elapsed, time.Duration(0))
	require.False(t, sr.SnapshotIDReceivedAt.Before(*sr.RequestSentAt))
	for i := 1; i < len(sr.SnapshotPolledAt); i++ {
		require.False(t, sr.SnapshotPolledAt[i].Before(sr.SnapshotPolledAt[i-1]))
	}

	require.Len(t, sink.results, 1)
	require.Same(t, res, sink.results[0])
}

func TestRunPollTimeoutBound(t *testing.T) {
	t.Parallel()

	const unit = 20 * time.Millisecond
	api := newFakeAPI(1<<30, nil)
	api.receipt = Receipt{JobID: "s_slow"}
	e := NewEngine(api, nil, nil)

	req := scrapeRequest()
	req.PollInterval = 2 * unit
	req.PollTimeout = 5 * unit

	start := time.Now()
	res, err := e.Run(context.Background(), req)
	took := time.Since(start)
	require.NoError(t, err)
	require.Less(t, took, 7*unit+50*time.Millisecond)

	sr := res.(*result.ScrapeResult)
	require.False(t, sr.Success)
	require.Equal(t, result.TimeoutError, sr.Error)
	require.Equal(t, result.StatusTimeout, sr.Status)
	require.Zero(t, sr.Cost)
	require.Nil(t, sr.DataReceivedAt)
	require.True(t, IsTimeout(res))

	// The remote job may still finish; the manual surface can collect it later.
	api.mu.Lock()
	api.pendingPolls = 0
	api.payload = Payload{Raw: []any{map[string]any{"title": "late"}}}
	api.mu.Unlock()
	data, err := e.Fetch(context.Background(), "s_slow", normalize.OpaqueList)
	require.NoError(t, err)
	require.Len(t, data, 1)
}

func TestRunTimeoutKeepsTriggerCost(t *testing.T) {
	t.Parallel()

	cost := 0.5
	api := newFakeAPI(1<<30, nil)
	api.receipt = Receipt{BilledCost: &cost}
	e := NewEngine(api, nil, nil)

	req := scrapeRequest()
	req.PollInterval = time.Millisecond
	req.PollTimeout = 5 * time.Millisecond
	res, err := e.Run(context.Background(), req)
	require.NoError(t, err)
	require.InDelta(t, 0.5, res.Common().Cost, 1e-9)
}

func TestRunRemoteErrorBecomesFailedResult(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(1, nil)
	api.final = Status{State: StateError, Message: "snapshot failed: dataset unavailable"}
	e := NewEngine(api, nil, nil)

	res, err := e.Run(context.Background(), scrapeRequest())
	require.NoError(t, err)
	require.False(t, res.Common().Success)
	require.Equal(t, "snapshot failed: dataset unavailable", res.Common().Error)
	require.Equal(t, result.StatusError, res.(*result.ScrapeResult).Status)
	require.Equal(t, []any{}, res.Common().Data)
	require.NoError(t, res.Validate())
}

func TestRunTransportFailuresBecomeFailedResults(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(0, nil)
	api.triggerErr = errors.New("connection reset by peer")
	res, err := NewEngine(api, nil, nil).Run(context.Background(), scrapeRequest())
	require.NoError(t, err)
	require.False(t, res.Common().Success)
	require.Contains(t, res.Common().Error, "connection reset")
	require.NotNil(t, res.Common().RequestSentAt)
	require.Nil(t, res.Common().DataReceivedAt)

	api = newFakeAPI(0, nil)
	api.fetchErr = errors.New("unexpected EOF")
	res, err = NewEngine(api, nil, nil).Run(context.Background(), scrapeRequest())
	require.NoError(t, err)
	require.Contains(t, res.Common().Error, "fetch failed")
}

func TestRunDegradedNormalization(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(0, map[string]any{"body": "<html><body>blocked</body></html>"})
	e := NewEngine(api, staticZones{zone.RoleSERP: "sdk_serp"}, nil)

	req := Request{
		Zone: zone.RoleSERP,
		Spec: Spec{
			Kind:         result.KindSearch,
			Inputs:       []map[string]any{{"url": "https://www.google.com/search?q=go"}},
			Query:        map[string]any{"q": "go"},
			SearchEngine: "google",
			Page:         1,
		},
		Shape:        normalize.OrganicList,
		PollInterval: time.Millisecond,
		PollTimeout:  time.Second,
	}
	res, err := e.Run(context.Background(), req)
	require.NoError(t, err)
	require.True(t, res.Common().Success)
	require.Equal(t, []any{}, res.Common().Data)

	sr := res.(*result.SearchResult)
	require.Equal(t, 0, *sr.TotalFound)
	require.Equal(t, 1, *sr.Page)
	require.Equal(t, []string{"sdk_serp"}, api.triggers)
}

func TestRunReportedCostWins(t *testing.T) {
	t.Parallel()

	cost := 0.25
	api := newFakeAPI(0, []any{map[string]any{"a": 1}})
	api.payload.BilledCost = &cost
	res, err := NewEngine(api, nil, nil).Run(context.Background(), scrapeRequest())
	require.NoError(t, err)
	require.InDelta(t, 0.25, res.Common().Cost, 1e-9)
}

func TestRunCrawlPopulatesPages(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(0, []any{
		map[string]any{"url": "https://example.com/a", "markdown": "# A"},
		map[string]any{"url": "https://example.com/b", "markdown": "# B"},
	})
	req := Request{
		Spec: Spec{
			Kind:          result.KindCrawl,
			DatasetID:     "gd_m6gjtfmeh43we6cqc",
			Inputs:        []map[string]any{{"url": "https://www.example.com:443/"}},
			StartURL:      "https://www.example.com:443/",
			FilterPattern: "/a|/b",
			CostPerRecord: 0.001,
		},
		Shape:        normalize.OpaqueList,
		PollInterval: time.Millisecond,
		PollTimeout:  time.Second,
	}
	res, err := NewEngine(api, nil, nil).Run(context.Background(), req)
	require.NoError(t, err)

	cr := res.(*result.CrawlResult)
	require.Equal(t, "example.com", cr.Domain)
	require.Len(t, cr.Pages, 2)
	require.Equal(t, 2, *cr.TotalPages)
	require.NotNil(t, cr.CrawlCompletedAt)
	require.Contains(t, cr.TimingBreakdown(), "crawl_duration_ms")
}

func TestRunValidationFailsFast(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(0, nil)
	e := NewEngine(api, nil, nil)

	cases := map[string]func(*Request){
		"zero interval":      func(r *Request) { r.PollInterval = 0 },
		"timeout < interval": func(r *Request) { r.PollTimeout = r.PollInterval / 2 },
		"no work":            func(r *Request) { r.Spec.DatasetID = ""; r.Spec.Inputs = nil },
		"bad shape":          func(r *Request) { r.Shape = "xml" },
		"bad kind":           func(r *Request) { r.Spec.Kind = "video" },
	}
	for name, mutate := range cases {
		req := scrapeRequest()
		mutate(&req)
		_, err := e.Run(context.Background(), req)
		require.True(t, sdkerr.IsValidation(err), name)
	}
	require.Empty(t, api.triggers)
}

func TestRunZoneFailureIsReturned(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(0, nil)
	e := NewEngine(api, staticZones{}, nil)
	req := scrapeRequest()
	req.Zone = zone.RoleWebUnlocker

	_, err := e.Run(context.Background(), req)
	require.True(t, sdkerr.IsZone(err))
	require.Empty(t, api.triggers)
}

func TestRunCancelledWhilePolling(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(1<<30, nil)
	e := NewEngine(api, nil, nil)
	req := scrapeRequest()
	req.PollInterval = time.Hour
	req.PollTimeout = 2 * time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	h := e.Start(ctx, req)
	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.statusCalls["s_1"] > 0
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("run did not stop after cancellation")
	}
	res, err := h.Wait()
	require.NoError(t, err)
	require.False(t, res.Common().Success)
	require.Contains(t, res.Common().Error, context.Canceled.Error())
}

func TestSyncAndAsyncPathsProduceIdenticalResults(t *testing.T) {
	t.Parallel()

	clock := fixedClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	newEngine := func() *Engine {
		api := newFakeAPI(2, []any{map[string]any{"name": "x", "price": 3.5}})
		return NewEngine(api, nil, nil, WithClock(clock), WithIDGenerator(&seqIDs{}))
	}

	syncRes, err := newEngine().Run(context.Background(), scrapeRequest())
	require.NoError(t, err)
	asyncRes, err := newEngine().Start(context.Background(), scrapeRequest()).Wait()
	require.NoError(t, err)

	syncJSON, err := syncRes.ToJSON(0)
	require.NoError(t, err)
	asyncJSON, err := asyncRes.ToJSON(0)
	require.NoError(t, err)
	require.Equal(t, syncJSON, asyncJSON)
}

func TestRunBatch(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(1, []any{map[string]any{"title": "a"}})
	e := NewEngine(api, nil, nil)

	reqs := []Request{scrapeRequest(), scrapeRequest(), scrapeRequest()}
	results, err := e.RunBatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, 3)
	ids := map[string]bool{}
	for _, r := range results {
		require.True(t, r.Common().Success)
		ids[r.(*result.ScrapeResult).SnapshotID] = true
	}
	require.Len(t, ids, 3)

	bad := scrapeRequest()
	bad.PollInterval = 0
	_, err = e.RunBatch(context.Background(), []Request{scrapeRequest(), bad})
	require.True(t, sdkerr.IsValidation(err))
	require.Len(t, api.triggers, 3, "invalid batch must not trigger anything")
}

func TestManualSurface(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(2, map[string]any{"organic": []any{map[string]any{"rank": 1}}})
	e := NewEngine(api, staticZones{zone.RoleSERP: "sdk_serp"}, nil)
	req := scrapeRequest()
	req.Zone = zone.RoleSERP

	id, err := e.Trigger(context.Background(), req)
	require.NoError(t, err)

	state, err := e.Status(context.Background(), id)
	require.NoError(t, err)
	require.Contains(t, []State{StatePending, StateReady}, state)

	for state != StateReady {
		state, err = e.Status(context.Background(), id)
		require.NoError(t, err)
	}
	data, err := e.Fetch(context.Background(), id, normalize.OrganicList)
	require.NoError(t, err)
	require.Equal(t, []any{map[string]any{"rank": 1}}, data)

	api.fetchErr = errors.New("boom")
	_, err = e.Fetch(context.Background(), id, normalize.OrganicList)
	require.ErrorIs(t, err, api.fetchErr)
}

func TestSinkErrorsDoNotFailRun(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{err: errors.New("disk full")}
	e := NewEngine(newFakeAPI(0, []any{}), nil, nil, WithSinks(sink))
	res, err := e.Run(context.Background(), scrapeRequest())
	require.NoError(t, err)
	require.True(t, res.Common().Success)
	require.Len(t, sink.results, 1)
}

func TestRootDomain(t *testing.T) {
	t.Parallel()

	require.Equal(t, "example.com", RootDomain("https://www.Example.com:8443/path"))
	require.Equal(t, "linkedin.com", RootDomain("https://linkedin.com/in/x"))
	require.Empty(t, RootDomain("not a url"))
	require.Empty(t, RootDomain(""))
}
