package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/JakeFAU/brightdata-go/pkg/job"
	"github.com/JakeFAU/brightdata-go/pkg/sdkerr"
)

const (
	pathTrigger  = "/datasets/v3/trigger"
	pathProgress = "/datasets/v3/progress/"
	pathSnapshot = "/datasets/v3/snapshot/"
)

// DatasetJobs runs asynchronous dataset collections. It implements job.API.
type DatasetJobs struct {
	c *Client
}

// Datasets returns the dataset job API.
func (c *Client) Datasets() *DatasetJobs {
	return &DatasetJobs{c: c}
}

type triggerResponse struct {
	SnapshotID string   `json:"snapshot_id"`
	Cost       *float64 `json:"cost,omitempty"`
}

type progressResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Trigger submits spec.Inputs to the spec's dataset. The zone is unused for
// dataset collections.
func (d *DatasetJobs) Trigger(ctx context.Context, _ string, spec job.Spec) (job.Receipt, error) {
	if spec.DatasetID == "" {
		return job.Receipt{}, sdkerr.Validationf("dataset_id", "dataset jobs need a dataset id")
	}
	q := url.Values{}
	q.Set("dataset_id", spec.DatasetID)
	q.Set("include_errors", strconv.FormatBool(spec.IncludeErrors))
	if spec.SourceTag != "" {
		q.Set("sdk_function", spec.SourceTag)
	}
	inputs := spec.Inputs
	if inputs == nil {
		inputs = []map[string]any{}
	}

	resp, err := d.c.do(ctx, call{
		endpoint: pathTrigger,
		method:   http.MethodPost,
		path:     pathTrigger,
		query:    q,
		body:     inputs,
	})
	if err != nil {
		return job.Receipt{}, err
	}
	if err := check(resp, "trigger"); err != nil {
		return job.Receipt{}, err
	}
	var out triggerResponse
	if err := decodeJSON(resp, &out, "trigger"); err != nil {
		return job.Receipt{}, err
	}
	if out.SnapshotID == "" {
		return job.Receipt{}, &sdkerr.APIError{Status: resp.status, Message: "trigger returned no snapshot_id", Body: resp.text()}
	}
	return job.Receipt{JobID: out.SnapshotID, BilledCost: out.Cost}, nil
}

// Status reports a snapshot's progress. A non-2xx progress response is
// reported as an error state rather than a Go error.
func (d *DatasetJobs) Status(ctx context.Context, snapshotID string) (job.Status, error) {
	resp, err := d.c.do(ctx, call{
		endpoint: pathProgress + "{id}",
		method:   http.MethodGet,
		path:     pathProgress + url.PathEscape(snapshotID),
	})
	if err != nil {
		return job.Status{}, err
	}
	if !resp.ok() {
		return job.Status{
			State:   job.StateError,
			Message: fmt.Sprintf("progress check returned HTTP %d: %s", resp.status, resp.text()),
		}, nil
	}
	var out progressResponse
	if err := decodeJSON(resp, &out, "progress"); err != nil {
		return job.Status{}, err
	}
	return job.Status{State: mapState(out.Status), Message: firstNonEmpty(out.Error, out.Message, out.Status)}, nil
}

// Fetch downloads the snapshot as JSON.
func (d *DatasetJobs) Fetch(ctx context.Context, snapshotID string) (job.Payload, error) {
	q := url.Values{}
	q.Set("format", "json")
	resp, err := d.c.do(ctx, call{
		endpoint: pathSnapshot + "{id}",
		method:   http.MethodGet,
		path:     pathSnapshot + url.PathEscape(snapshotID),
		query:    q,
	})
	if err != nil {
		return job.Payload{}, err
	}
	if err := check(resp, "snapshot fetch"); err != nil {
		return job.Payload{}, err
	}
	var raw any
	if err := decodeJSON(resp, &raw, "snapshot"); err != nil {
		return job.Payload{}, err
	}
	return job.Payload{Raw: raw}, nil
}

func mapState(remote string) job.State {
	switch strings.ToLower(remote) {
	case "ready":
		return job.StateReady
	case "failed", "error":
		return job.StateError
	default:
		return job.StatePending
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
