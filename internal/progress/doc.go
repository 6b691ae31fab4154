// Package progress carries batch progress out of the executor. The executor
// only knows a (completed, total) callback; a Reporter turns those calls into
// Events, and a Hub batches Events on a background goroutine and fans them
// out to sinks such as structured logs or Prometheus collectors.
package progress
