package job

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/brightdata-go/pkg/normalize"
	"github.com/JakeFAU/brightdata-go/pkg/result"
)

// Handle tracks a job started with Start.
type Handle struct {
	done chan struct{}
	res  result.Result
	err  error
}

// Done is closed once the job has finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the job finishes and returns what Run would have returned.
func (h *Handle) Wait() (result.Result, error) {
	<-h.done
	return h.res, h.err
}

// Start runs req on its own goroutine. Polling sleeps never block other jobs
// sharing the engine.
func (e *Engine) Start(ctx context.Context, req Request) *Handle {
	h := &Handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.res, h.err = e.Run(ctx, req)
	}()
	return h
}

// RunBatch runs every request concurrently and returns results in request
// order. All requests are validated before any is triggered; a zone
// provisioning failure cancels the remaining jobs.
func (e *Engine) RunBatch(ctx context.Context, reqs []Request) ([]result.Result, error) {
	for i, req := range reqs {
		if err := Validate(req); err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}
	}
	out := make([]result.Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := e.Run(gctx, req)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Trigger submits req and returns the remote job ID without waiting.
func (e *Engine) Trigger(ctx context.Context, req Request) (string, error) {
	if err := Validate(req); err != nil {
		return "", err
	}
	zoneName, err := e.resolveZone(ctx, req)
	if err != nil {
		return "", err
	}
	receipt, err := e.api.Trigger(ctx, zoneName, req.Spec)
	if err != nil {
		return "", fmt.Errorf("trigger: %w", err)
	}
	if receipt.JobID == "" {
		return "", errNoJobID
	}
	return receipt.JobID, nil
}

// Status performs one status check.
func (e *Engine) Status(ctx context.Context, jobID string) (State, error) {
	st, err := e.api.Status(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("status %s: %w", jobID, err)
	}
	return st.State, nil
}

// Fetch retrieves and normalizes the payload of a finished job. It also works
// for jobs whose local wait timed out.
func (e *Engine) Fetch(ctx context.Context, jobID string, shape normalize.Shape) (any, error) {
	payload, err := e.api.Fetch(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", jobID, err)
	}
	return normalize.Normalize(payload.Raw, shape), nil
}
