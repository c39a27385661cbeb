// Package protocol owns the GRAIL wire primitives shared by both roles.
//
// Ownership boundary:
// - error taxonomy surfaced by every protocol layer
// - 128-bit identifiers
// - bounds-checked body reader and append-style body builder
// - sized UTF-16 strings
//
// Role-specific message layouts live in the aggregator and worldmodel
// subpackages; framing and the version handshake live in frame and handshake.
package protocol
