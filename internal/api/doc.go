// Package api hosts the operations HTTP server. Notable routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/zones for the account's live zone list.
//   - POST /v1/jobs plus /v1/jobs/{job_id}/status and /result for manual
//     dataset collections.
//   - GET /v1/runs and /v1/runs/{run_id} for the run ledger.
package api
