package job

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/brightdata-go/internal/clock/system"
	"github.com/JakeFAU/brightdata-go/internal/id/uuid"
	"github.com/JakeFAU/brightdata-go/internal/metrics"
	"github.com/JakeFAU/brightdata-go/pkg/normalize"
	"github.com/JakeFAU/brightdata-go/pkg/result"
	"github.com/JakeFAU/brightdata-go/pkg/sdkerr"
)

const tracerName = "github.com/JakeFAU/brightdata-go/pkg/job"

// Engine drives jobs against one remote API.
type Engine struct {
	api    API
	zones  ZoneResolver
	clock  Clock
	ids    IDGenerator
	sinks  []Sink
	tracer trace.Tracer
	logger *zap.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithSinks registers result sinks.
func WithSinks(sinks ...Sink) Option {
	return func(e *Engine) { e.sinks = append(e.sinks, sinks...) }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// NewEngine constructs an Engine. zones may be nil when no request names a zone role.
func NewEngine(api API, zones ZoneResolver, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		api:    api,
		zones:  zones,
		clock:  system.New(),
		ids:    uuid.New(),
		tracer: otel.Tracer(tracerName),
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run collects everything observed during one lifecycle.
type run struct {
	id         string
	zone       string
	snapshotID string
	sentAt     *time.Time
	snapshotAt *time.Time
	receivedAt *time.Time
	polledAt   []time.Time
	status     string
	errText    string
	data       any
	cost       float64
	started    time.Time
}

// Run executes req to completion and returns its result. The error return is
// reserved for invalid requests and zone provisioning failures; every remote
// failure is reported on the result instead.
func (e *Engine) Run(ctx context.Context, req Request) (result.Result, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "job.run", trace.WithAttributes(
		attribute.String("job.kind", string(req.Spec.Kind)),
		attribute.String("job.platform", req.Spec.Platform),
		attribute.String("job.dataset_id", req.Spec.DatasetID),
	))
	defer span.End()

	zoneName, err := e.resolveZone(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "zone provisioning failed")
		return nil, err
	}

	r := &run{zone: zoneName, started: e.clock.Now(), data: normalize.Empty(req.Shape)}
	r.id, err = e.ids.NewID()
	if err != nil {
		e.logger.Warn("run id generation failed", zap.Error(err))
	}
	logger := e.logger.With(
		zap.String("run_id", r.id),
		zap.String("kind", string(req.Spec.Kind)),
		zap.String("platform", req.Spec.Platform),
	)

	e.execute(ctx, req, r, logger)

	res := build(req, r)
	if verr := res.Validate(); verr != nil {
		// Only reachable through an inconsistent remote payload.
		logger.Error("result failed validation", zap.Error(verr))
		b := res.Common()
		b.Success = false
		if b.Error == "" {
			b.Error = verr.Error()
		}
	}

	outcome := r.status
	if res.Common().Success {
		span.SetAttributes(attribute.String("job.snapshot_id", r.snapshotID))
	} else {
		span.SetStatus(codes.Error, res.Common().Error)
	}
	metrics.ObserveJob(string(req.Spec.Kind), outcome, e.clock.Now().Sub(r.started))
	logger.Info("job finished",
		zap.String("snapshot_id", r.snapshotID),
		zap.String("status", outcome),
		zap.Bool("success", res.Common().Success),
		zap.Int("polls", len(r.polledAt)),
		zap.Float64("cost", res.Common().Cost),
	)

	e.deliver(ctx, res, logger)
	return res, nil
}

func (e *Engine) resolveZone(ctx context.Context, req Request) (string, error) {
	if req.Zone == "" {
		return "", nil
	}
	if e.zones == nil {
		return "", &sdkerr.ZoneError{Message: fmt.Sprintf("no zone resolver for role %q", req.Zone)}
	}
	name, err := e.zones.Resolve(ctx, req.Zone)
	if err != nil {
		return "", fmt.Errorf("resolve zone %s: %w", req.Zone, err)
	}
	return name, nil
}

// execute performs trigger, poll and fetch, recording into r.
func (e *Engine) execute(ctx context.Context, req Request, r *run, logger *zap.Logger) {
	sent := e.clock.Now()
	r.sentAt = &sent
	receipt, err := e.api.Trigger(ctx, r.zone, req.Spec)
	if err != nil {
		logger.Warn("trigger failed", zap.Error(err))
		r.fail(result.StatusError, fmt.Sprintf("trigger failed: %v", err))
		return
	}
	if receipt.JobID == "" {
		r.fail(result.StatusError, errNoJobID.Error())
		r.cost = billed(receipt.BilledCost)
		return
	}
	snap := e.clock.Now()
	r.snapshotAt = &snap
	r.snapshotID = receipt.JobID
	triggerCost := billed(receipt.BilledCost)
	logger = logger.With(zap.String("snapshot_id", receipt.JobID))
	logger.Debug("job triggered")

	for {
		now := e.clock.Now()
		if now.Sub(snap) > req.PollTimeout {
			logger.Warn("poll timeout", zap.Duration("timeout", req.PollTimeout))
			r.fail(result.StatusTimeout, result.TimeoutError)
			r.cost = triggerCost
			return
		}
		r.polledAt = append(r.polledAt, now)
		metrics.ObservePoll()
		st, err := e.api.Status(ctx, receipt.JobID)
		if err != nil {
			logger.Warn("status check failed", zap.Error(err))
			r.fail(result.StatusError, fmt.Sprintf("status check failed: %v", err))
			r.cost = triggerCost
			return
		}
		switch st.State {
		case StateReady:
			e.fetch(ctx, req, r, receipt, logger)
			return
		case StateError:
			msg := st.Message
			if msg == "" {
				msg = "job failed"
			}
			r.fail(result.StatusError, msg)
			r.cost = triggerCost
			return
		}
		if err := sleep(ctx, req.PollInterval); err != nil {
			r.fail(result.StatusError, err.Error())
			r.cost = triggerCost
			return
		}
	}
}

func (e *Engine) fetch(ctx context.Context, req Request, r *run, receipt Receipt, logger *zap.Logger) {
	payload, err := e.api.Fetch(ctx, receipt.JobID)
	if err != nil {
		logger.Warn("fetch failed", zap.Error(err))
		r.fail(result.StatusError, fmt.Sprintf("fetch failed: %v", err))
		r.cost = billed(receipt.BilledCost)
		return
	}
	received := e.clock.Now()
	r.receivedAt = &received
	r.status = result.StatusReady
	r.data = normalize.Normalize(payload.Raw, req.Shape)

	switch {
	case payload.BilledCost != nil:
		r.cost = billed(payload.BilledCost)
	case receipt.BilledCost != nil:
		r.cost = billed(receipt.BilledCost)
	default:
		if rows, ok := normalize.Rows(r.data); ok {
			r.cost = float64(rows) * req.Spec.CostPerRecord
		}
	}
}

func (r *run) fail(status, msg string) {
	r.status = status
	r.errText = msg
}

func (e *Engine) deliver(ctx context.Context, res result.Result, logger *zap.Logger) {
	if len(e.sinks) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, s := range e.sinks {
		if err := s.Deliver(ctx, res); err != nil {
			logger.Warn("result sink failed", zap.Error(err))
		}
	}
}

// Validate checks a request before any network call.
func Validate(req Request) error {
	switch req.Spec.Kind {
	case result.KindScrape, result.KindSearch, result.KindCrawl:
	default:
		return sdkerr.Validationf("kind", "unknown job kind %q", req.Spec.Kind)
	}
	if req.PollInterval <= 0 {
		return sdkerr.Validationf("poll_interval", "must be positive, got %s", req.PollInterval)
	}
	if req.PollTimeout < req.PollInterval {
		return sdkerr.Validationf("poll_timeout", "must be at least the poll interval (%s), got %s",
			req.PollInterval, req.PollTimeout)
	}
	if req.Spec.DatasetID == "" && len(req.Spec.Inputs) == 0 {
		return sdkerr.Validationf("spec", "job needs a dataset id or inputs")
	}
	if _, err := normalize.ParseShape(string(req.Shape)); err != nil {
		return sdkerr.Validationf("shape", "%v", err)
	}
	if req.Spec.CostPerRecord < 0 {
		return sdkerr.Validationf("cost_per_record", "must be non-negative")
	}
	return nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("poll interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func billed(c *float64) float64 {
	if c == nil || *c < 0 {
		return 0
	}
	return *c
}

func build(req Request, r *run) result.Result {
	base := result.Base{
		Kind:           req.Spec.Kind,
		RunID:          r.id,
		Success:        r.errText == "",
		Error:          r.errText,
		Cost:           r.cost,
		RequestSentAt:  r.sentAt,
		DataReceivedAt: r.receivedAt,
		Data:           r.data,
		Platform:       req.Spec.Platform,
		Method:         req.Spec.Method,
		SourceTag:      req.Spec.SourceTag,
	}
	rows, hasRows := normalize.Rows(r.data)

	switch req.Spec.Kind {
	case result.KindSearch:
		sr := &result.SearchResult{
			Base:         base,
			Query:        req.Spec.Query,
			SearchEngine: req.Spec.SearchEngine,
			Country:      req.Spec.Country,
		}
		if hasRows {
			sr.TotalFound = result.Int(rows)
		}
		if req.Spec.Page > 0 {
			sr.Page = result.Int(req.Spec.Page)
		}
		if req.Spec.ResultsPerPage > 0 {
			sr.ResultsPerPage = result.Int(req.Spec.ResultsPerPage)
		}
		return sr
	case result.KindCrawl:
		cr := &result.CrawlResult{
			Base:             base,
			Domain:           req.Spec.Domain,
			StartURL:         req.Spec.StartURL,
			Pages:            pages(r.data),
			FilterPattern:    req.Spec.FilterPattern,
			ExcludePattern:   req.Spec.ExcludePattern,
			CrawlStartedAt:   r.sentAt,
			CrawlCompletedAt: r.receivedAt,
		}
		if cr.Domain == "" {
			cr.Domain = RootDomain(req.Spec.StartURL)
		}
		if req.Spec.Depth > 0 {
			cr.Depth = result.Int(req.Spec.Depth)
		}
		if hasRows {
			cr.TotalPages = result.Int(len(cr.Pages))
		}
		return cr
	default:
		sc := &result.ScrapeResult{
			Base:                 base,
			URL:                  req.Spec.URL,
			Status:               r.status,
			SnapshotID:           r.snapshotID,
			RootDomain:           RootDomain(req.Spec.URL),
			SnapshotIDReceivedAt: r.snapshotAt,
			SnapshotPolledAt:     r.polledAt,
		}
		if sc.Status == "" {
			sc.Status = result.StatusError
		}
		if hasRows {
			sc.RowCount = result.Int(rows)
		}
		if s, ok := r.data.(string); ok && r.errText == "" {
			sc.HTMLCharSize = result.Int(utf8.RuneCountInString(s))
		}
		return sc
	}
}

func pages(data any) []map[string]any {
	entries, ok := data.([]any)
	if !ok {
		return []map[string]any{}
	}
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// RootDomain returns the host of rawURL without port or a leading "www.".
func RootDomain(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := u.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// IsTimeout reports whether res failed by exhausting its poll deadline.
func IsTimeout(res result.Result) bool {
	return res != nil && res.Common().Error == result.TimeoutError
}

var errNoJobID = errors.New("trigger returned no job id")
