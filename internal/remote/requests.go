package remote

import (
	"context"
	"net/http"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/JakeFAU/brightdata-go/pkg/job"
	"github.com/JakeFAU/brightdata-go/pkg/sdkerr"
)

const pathRequest = "/request"

// IDGenerator produces IDs for parked request results.
type IDGenerator interface {
	NewID() (string, error)
}

// RequestJobs adapts the synchronous /request endpoint to job.API. Trigger
// performs the request and parks the payload under a fresh ID; Status reports
// ready while the payload is parked; Fetch releases it.
type RequestJobs struct {
	c   *Client
	ids IDGenerator

	mu     sync.Mutex
	parked map[string]job.Payload
}

// Requests returns the request job API.
func (c *Client) Requests(ids IDGenerator) *RequestJobs {
	return &RequestJobs{c: c, ids: ids, parked: make(map[string]job.Payload)}
}

// Trigger sends spec.Inputs[0] through zone. The input carries url, format,
// method and optionally country.
func (r *RequestJobs) Trigger(ctx context.Context, zone string, spec job.Spec) (job.Receipt, error) {
	if len(spec.Inputs) == 0 {
		return job.Receipt{}, sdkerr.Validationf("inputs", "request jobs need one input")
	}
	if zone == "" {
		return job.Receipt{}, sdkerr.Validationf("zone", "request jobs need a zone")
	}
	body := make(map[string]any, len(spec.Inputs[0])+1)
	for k, v := range spec.Inputs[0] {
		body[k] = v
	}
	body["zone"] = zone
	if _, ok := body["method"]; !ok {
		body["method"] = http.MethodGet
	}
	if _, ok := body["format"]; !ok {
		body["format"] = "raw"
	}
	if country, ok := body["country"].(string); ok {
		if country == "" {
			delete(body, "country")
		} else {
			body["country"] = strings.ToUpper(country)
		}
	}

	resp, err := r.c.do(ctx, call{endpoint: pathRequest, method: http.MethodPost, path: pathRequest, body: body})
	if err != nil {
		return job.Receipt{}, err
	}
	if err := check(resp, "request"); err != nil {
		return job.Receipt{}, err
	}

	var raw any = string(resp.body)
	if format, _ := body["format"].(string); format == "json" {
		var decoded any
		if err := json.Unmarshal(resp.body, &decoded); err != nil {
			return job.Receipt{}, &sdkerr.APIError{Status: resp.status, Message: "decode request response: " + err.Error()}
		}
		raw = unwrap(decoded)
	}

	id, err := r.ids.NewID()
	if err != nil {
		return job.Receipt{}, err
	}
	r.mu.Lock()
	r.parked[id] = job.Payload{Raw: raw}
	r.mu.Unlock()
	return job.Receipt{JobID: id}, nil
}

// Status reports ready for parked payloads.
func (r *RequestJobs) Status(_ context.Context, id string) (job.Status, error) {
	r.mu.Lock()
	_, ok := r.parked[id]
	r.mu.Unlock()
	if !ok {
		return job.Status{State: job.StateError, Message: errUnknownJob.Error()}, nil
	}
	return job.Status{State: job.StateReady}, nil
}

// Fetch releases a parked payload.
func (r *RequestJobs) Fetch(_ context.Context, id string) (job.Payload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.parked[id]
	if !ok {
		return job.Payload{}, errUnknownJob
	}
	delete(r.parked, id)
	return p, nil
}

// Pending returns how many payloads are parked.
func (r *RequestJobs) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.parked)
}

// unwrap lifts the body out of a {status_code, headers, body} envelope,
// decoding it when it is itself JSON.
func unwrap(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	body, hasBody := m["body"]
	if _, hasStatus := m["status_code"]; !hasStatus || !hasBody {
		return v
	}
	s, ok := body.(string)
	if !ok {
		return body
	}
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}
	return s
}
