package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/brightdata-go/pkg/job"
	"github.com/JakeFAU/brightdata-go/pkg/sdkerr"
	"github.com/JakeFAU/brightdata-go/pkg/zone"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{
		BaseURL:        srv.URL,
		Token:          "test-token-123",
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() (string, error) {
	return "req-" + strconv.FormatInt(s.n.Add(1), 10), nil
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	_, err := New(Config{Token: "  "}, nil)
	require.Error(t, err)
	assert.True(t, sdkerr.IsValidation(err))
}

func TestClientSendsHeaders(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token-123", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, pathActiveZones, r.URL.Path)
		_, _ = w.Write([]byte(`[]`))
	})
	require.NoError(t, c.Ping(context.Background()))
}

func TestClientRetriesServerErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"name":"web_unlocker1","type":"unblocker"}]`))
	})
	zones, err := c.Zones().List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, zones, 1)
	assert.Equal(t, "web_unlocker1", zones[0].Name)
}

func TestClientGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.Zones().List(context.Background())
	require.Error(t, err)
	assert.True(t, sdkerr.IsAPI(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad token"))
	})
	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, sdkerr.IsAuthentication(err))
	assert.Equal(t, int32(1), calls.Load())

	var authErr *sdkerr.AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, sdkerr.APIKeysURL, authErr.Remediation)
}

func TestDatasetFlow(t *testing.T) {
	t.Parallel()
	var polls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == pathTrigger:
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "gd_test", r.URL.Query().Get("dataset_id"))
			assert.Equal(t, "true", r.URL.Query().Get("include_errors"))
			assert.Equal(t, "scrape.amazon.products", r.URL.Query().Get("sdk_function"))
			body, _ := io.ReadAll(r.Body)
			var inputs []map[string]any
			assert.NoError(t, json.Unmarshal(body, &inputs))
			assert.Len(t, inputs, 2)
			_, _ = w.Write([]byte(`{"snapshot_id":"s_1"}`))
		case r.URL.Path == pathProgress+"s_1":
			if polls.Add(1) == 1 {
				_, _ = w.Write([]byte(`{"status":"running"}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":"ready"}`))
		case r.URL.Path == pathSnapshot+"s_1":
			assert.Equal(t, "json", r.URL.Query().Get("format"))
			_, _ = w.Write([]byte(`[{"title":"a"},{"title":"b"}]`))
		default:
			http.NotFound(w, r)
		}
	})
	ds := c.Datasets()
	ctx := context.Background()

	receipt, err := ds.Trigger(ctx, "", job.Spec{
		DatasetID:     "gd_test",
		IncludeErrors: true,
		SourceTag:     "scrape.amazon.products",
		Inputs:        []map[string]any{{"url": "https://a"}, {"url": "https://b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "s_1", receipt.JobID)

	st, err := ds.Status(ctx, "s_1")
	require.NoError(t, err)
	assert.Equal(t, job.StatePending, st.State)

	st, err = ds.Status(ctx, "s_1")
	require.NoError(t, err)
	assert.Equal(t, job.StateReady, st.State)

	payload, err := ds.Fetch(ctx, "s_1")
	require.NoError(t, err)
	rows, ok := payload.Raw.([]any)
	require.True(t, ok)
	assert.Len(t, rows, 2)
}

func TestDatasetProgressFailureIsErrorState(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no such snapshot"))
	})
	st, err := c.Datasets().Status(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, job.StateError, st.State)
	assert.Contains(t, st.Message, "HTTP 404")
}

func TestDatasetTriggerWithoutSnapshotID(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := c.Datasets().Trigger(context.Background(), "", job.Spec{DatasetID: "gd_x"})
	require.Error(t, err)
	assert.True(t, sdkerr.IsAPI(err))
}

func TestMapState(t *testing.T) {
	t.Parallel()
	assert.Equal(t, job.StateReady, mapState("ready"))
	assert.Equal(t, job.StateError, mapState("failed"))
	assert.Equal(t, job.StateError, mapState("Error"))
	assert.Equal(t, job.StatePending, mapState("collecting"))
	assert.Equal(t, job.StatePending, mapState(""))
}

func TestRequestJobsRaw(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathRequest, r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "unlocker_z", body["zone"])
		assert.Equal(t, "US", body["country"])
		assert.Equal(t, "raw", body["format"])
		assert.Equal(t, http.MethodGet, body["method"])
		_, _ = w.Write([]byte("<html>ok</html>"))
	})
	rj := c.Requests(&seqIDs{})
	ctx := context.Background()

	receipt, err := rj.Trigger(ctx, "unlocker_z", job.Spec{
		Inputs: []map[string]any{{"url": "https://example.com", "country": "us"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rj.Pending())

	st, err := rj.Status(ctx, receipt.JobID)
	require.NoError(t, err)
	assert.Equal(t, job.StateReady, st.State)

	payload, err := rj.Fetch(ctx, receipt.JobID)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", payload.Raw)
	assert.Zero(t, rj.Pending())

	_, err = rj.Fetch(ctx, receipt.JobID)
	assert.ErrorIs(t, err, errUnknownJob)
	st, err = rj.Status(ctx, receipt.JobID)
	require.NoError(t, err)
	assert.Equal(t, job.StateError, st.State)
}

func TestRequestJobsJSONEnvelope(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status_code":200,"headers":{},"body":"{\"organic\":[{\"title\":\"x\"}]}"}`))
	})
	rj := c.Requests(&seqIDs{})
	receipt, err := rj.Trigger(context.Background(), "serp_z", job.Spec{
		Inputs: []map[string]any{{"url": "https://www.google.com/search?q=go", "format": "json"}},
	})
	require.NoError(t, err)
	payload, err := rj.Fetch(context.Background(), receipt.JobID)
	require.NoError(t, err)
	m, ok := payload.Raw.(map[string]any)
	require.True(t, ok)
	assert.Len(t, m["organic"], 1)
}

func TestUnwrapLeavesPlainValues(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []any{1.0}, unwrap([]any{1.0}))
	plain := map[string]any{"body": "x"}
	assert.Equal(t, plain, unwrap(plain))
	assert.Equal(t, "not json", unwrap(map[string]any{"status_code": 200.0, "body": "not json"}))
}

func TestRequestJobsNeedZoneAndInput(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	})
	rj := c.Requests(&seqIDs{})
	_, err := rj.Trigger(context.Background(), "z", job.Spec{})
	assert.True(t, sdkerr.IsValidation(err))
	_, err = rj.Trigger(context.Background(), "", job.Spec{Inputs: []map[string]any{{"url": "https://a"}}})
	assert.True(t, sdkerr.IsValidation(err))
}

func TestZoneCreateOutcomes(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		status  int
		body    string
		want    zone.CreateOutcome
		wantErr func(error) bool
	}{
		{name: "created", status: http.StatusCreated, want: zone.Created},
		{name: "conflict", status: http.StatusConflict, want: zone.Exists},
		{name: "duplicate text", status: http.StatusBadRequest, body: "Duplicate zone name", want: zone.Exists},
		{name: "denied", status: http.StatusForbidden, body: "token lacks the required permission", want: zone.Denied},
		{name: "bad token", status: http.StatusUnauthorized, body: "invalid", wantErr: sdkerr.IsAuthentication},
		{name: "bad request", status: http.StatusBadRequest, body: "plan invalid", wantErr: sdkerr.IsZone},
		{name: "server", status: http.StatusInternalServerError, wantErr: sdkerr.IsAPI},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			got, err := c.Zones().Create(context.Background(), "my_zone", zone.TypeUnblocker)
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tc.wantErr(err), "unexpected error type: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestZoneCreateSERPPlan(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Plan map[string]any    `json:"plan"`
			Zone map[string]string `json:"zone"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "unblocker", body.Plan["type"])
		assert.Equal(t, true, body.Plan["serp"])
		assert.Equal(t, "serp_z", body.Zone["name"])
		assert.Equal(t, "serp", body.Zone["type"])
		w.WriteHeader(http.StatusOK)
	})
	got, err := c.Zones().Create(context.Background(), "serp_z", zone.TypeSERP)
	require.NoError(t, err)
	assert.Equal(t, zone.Created, got)
}

func TestZoneDeleteOutcomes(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		status int
		body   string
		want   zone.DeleteOutcome
		isZone bool
	}{
		{name: "deleted", status: http.StatusOK, want: zone.Deleted},
		{name: "not found", status: http.StatusBadRequest, body: "Zone not found", want: zone.NotFound},
		{name: "missing", status: http.StatusBadRequest, body: "zone does not exist", want: zone.NotFound},
		{name: "denied", status: http.StatusForbidden, want: zone.DeleteDenied},
		{name: "other bad request", status: http.StatusBadRequest, body: "weird", isZone: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			got, err := c.Zones().Delete(context.Background(), "my_zone")
			if tc.isZone {
				assert.True(t, sdkerr.IsZone(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLimiterSpacesRequests(t *testing.T) {
	t.Parallel()
	l := NewLimiter(20, 1)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx, "https://api.example.com/x"))
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestLimiterHonoursContext(t *testing.T) {
	t.Parallel()
	l := NewLimiter(0.1, 1)
	require.NoError(t, l.Wait(context.Background(), "https://a.example"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "https://a.example"))
}

func TestRetryPolicy(t *testing.T) {
	t.Parallel()
	p := NewRetryPolicy(3, 10*time.Millisecond)
	assert.True(t, p.ShouldRetry(&sdkerr.APIError{Status: 502}, 1))
	assert.False(t, p.ShouldRetry(&sdkerr.APIError{Status: 502}, 3))
	assert.False(t, p.ShouldRetry(&sdkerr.APIError{Status: 400}, 1))
	assert.False(t, p.ShouldRetry(&sdkerr.AuthenticationError{Status: 401}, 1))
	assert.False(t, p.ShouldRetry(context.Canceled, 1))
	assert.True(t, p.ShouldRetry(errors.New("connection reset"), 1))

	for attempt := 1; attempt <= 5; attempt++ {
		d := p.Backoff(attempt)
		assert.Positive(t, d)
		assert.LessOrEqual(t, d, 30*time.Second)
	}
}
