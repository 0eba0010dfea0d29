// Package observability builds the service logger and its Prometheus metrics.
//
// Metrics live on a private registry so tests can construct as many as they
// like. The registry also carries the Go runtime, process and database pool
// collectors.
package observability
