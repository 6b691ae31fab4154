// Package api hosts the HTTP server, middleware, and REST handlers. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/resolve to resolve a batch of candidates synchronously.
//   - GET /v1/batches and /v1/batches/{batch_id} for live batch progress.
package api
