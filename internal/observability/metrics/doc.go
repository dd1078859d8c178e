// Package metrics exposes Prometheus collectors for the HTTP surface and the
// resolved property, and an optional standalone exposition listener.
package metrics
