// Package api exposes the HTTP surface of the config client: the
// /client/config endpoint, a health check and optionally Prometheus metrics.
// Routes are registered explicitly and share one middleware chain.
package api
