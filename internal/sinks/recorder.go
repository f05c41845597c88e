// Package sinks delivers finished results to the archive, the run ledger and
// the completion event publisher.
package sinks

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/brightdata-go/internal/clock/system"
	"github.com/JakeFAU/brightdata-go/internal/hash/sha256"
	"github.com/JakeFAU/brightdata-go/internal/storage"
	"github.com/JakeFAU/brightdata-go/pkg/result"
)

// Publisher emits completion events.
type Publisher interface {
	Publish(ctx context.Context, kind string, payload any) (string, error)
}

// Hasher digests archived documents.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock stamps ledger rows.
type Clock interface {
	Now() time.Time
}

// Event is the completion message published for every run.
type Event struct {
	RunID      string  `json:"run_id"`
	Kind       string  `json:"kind"`
	Success    bool    `json:"success"`
	Error      string  `json:"error,omitempty"`
	Cost       float64 `json:"cost"`
	Platform   string  `json:"platform,omitempty"`
	Method     string  `json:"method,omitempty"`
	Target     string  `json:"target,omitempty"`
	SnapshotID string  `json:"snapshot_id,omitempty"`
	ArchiveURI string  `json:"archive_uri,omitempty"`
	Digest     string  `json:"digest,omitempty"`
	RecordedAt string  `json:"recorded_at"`
}

// Recorder implements job.Sink. Each configured stage runs in order: archive,
// ledger, publish. A failing stage does not stop later ones; all failures are
// joined into the returned error.
type Recorder struct {
	archive   storage.Archive
	prefix    string
	ledger    storage.Ledger
	publisher Publisher
	hasher    Hasher
	clock     Clock
	logger    *zap.Logger
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithArchive stores every result document under prefix.
func WithArchive(a storage.Archive, prefix string) Option {
	return func(r *Recorder) {
		r.archive = a
		r.prefix = strings.Trim(prefix, "/")
	}
}

// WithLedger records a ledger row per result.
func WithLedger(l storage.Ledger) Option {
	return func(r *Recorder) { r.ledger = l }
}

// WithPublisher publishes a completion Event per result.
func WithPublisher(p Publisher) Option {
	return func(r *Recorder) { r.publisher = p }
}

// WithHasher overrides the document digest.
func WithHasher(h Hasher) Option {
	return func(r *Recorder) { r.hasher = h }
}

// WithClock overrides the ledger clock.
func WithClock(c Clock) Option {
	return func(r *Recorder) { r.clock = c }
}

// New builds a Recorder. With no options Deliver does nothing.
func New(logger *zap.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		hasher: sha256.New(),
		clock:  system.New(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enabled reports whether any stage is configured.
func (r *Recorder) Enabled() bool {
	return r.archive != nil || r.ledger != nil || r.publisher != nil
}

// Deliver archives, records and announces res.
func (r *Recorder) Deliver(ctx context.Context, res result.Result) error {
	if !r.Enabled() {
		return nil
	}
	run := storage.RunFromResult(res, r.clock.Now())
	var errs []error

	if r.archive != nil {
		uri, digest, err := r.store(ctx, res, run)
		if err != nil {
			errs = append(errs, err)
		}
		run.ArchiveURI, run.Digest = uri, digest
	}
	if r.ledger != nil {
		if err := r.ledger.RecordRun(ctx, run); err != nil {
			errs = append(errs, fmt.Errorf("record run: %w", err))
		}
	}
	if r.publisher != nil {
		id, err := r.publisher.Publish(ctx, run.Kind, eventFor(run))
		if err != nil {
			errs = append(errs, fmt.Errorf("publish run: %w", err))
		} else {
			r.logger.Debug("published run event", zap.String("run_id", run.RunID), zap.String("message_id", id))
		}
	}
	return errors.Join(errs...)
}

func (r *Recorder) store(ctx context.Context, res result.Result, run storage.Run) (string, string, error) {
	doc, err := res.ToJSON(2)
	if err != nil {
		return "", "", fmt.Errorf("encode result: %w", err)
	}
	data := []byte(doc)
	digest, err := r.hasher.Hash(data)
	if err != nil {
		return "", "", fmt.Errorf("hash result: %w", err)
	}
	key := ObjectKey(r.prefix, run)
	uri, err := r.archive.PutObject(ctx, key, "application/json", strings.NewReader(doc))
	if err != nil {
		return "", digest, fmt.Errorf("archive result: %w", err)
	}
	r.logger.Debug("archived result",
		zap.String("run_id", run.RunID),
		zap.String("uri", uri),
		zap.Int("bytes", len(data)),
	)
	return uri, digest, nil
}

// ObjectKey is the archive path for run: prefix/kind/yyyy/mm/dd/run_id.json.
func ObjectKey(prefix string, run storage.Run) string {
	return path.Join(prefix, run.Kind, run.RecordedAt.Format("2006/01/02"), run.RunID+".json")
}

func eventFor(run storage.Run) Event {
	return Event{
		RunID:      run.RunID,
		Kind:       run.Kind,
		Success:    run.Success,
		Error:      run.Error,
		Cost:       run.Cost,
		Platform:   run.Platform,
		Method:     run.Method,
		Target:     run.Target,
		SnapshotID: run.SnapshotID,
		ArchiveURI: run.ArchiveURI,
		Digest:     run.Digest,
		RecordedAt: run.RecordedAt.Format(time.RFC3339Nano),
	}
}
