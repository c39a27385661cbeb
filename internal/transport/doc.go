// Package transport provides the byte stream GRAIL clients run over.
//
// Ownership boundary:
// - TCP dial with connect timeout and bounded initial-connect retries
// - optional per-read and per-write deadlines
//
// A connection that fails after it is established is never redialed here.
package transport
