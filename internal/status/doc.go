// Package status serves a read-only HTTP view of running GRAIL clients:
// connection states, confirmed rules, recent samples, announced aliases,
// active transient requests and Prometheus metrics.
package status
