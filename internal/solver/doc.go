// Package solver owns the client side of the two GRAIL solver connections.
//
// Ownership boundary:
// - connection state machine (NotConnected -> Connected -> Closed)
// - aggregator subscriptions, rule set and sample ready queue
// - world model type announcement, alias table and object updates
//
// Clients are synchronous: every call blocks on the transport and callbacks
// run inline on the calling goroutine. A client must be driven by one
// goroutine at a time; distinct clients share no state.
package solver
