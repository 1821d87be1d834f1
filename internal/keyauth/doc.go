// Package keyauth implements the license validation and session management
// client for the KeyAuth-compatible license authority.
//
// The package is layered the way a request flows: Client (facade) delegates
// to the SessionManager (session lifecycle state machine), which issues
// logical API calls through the orchestrator. The orchestrator composes the
// Transport, the endpoint Selector and the ResponseCache, handling cache
// hits, endpoint failover and bounded retries transparently. Only the
// Transport touches the network.
//
// Endpoint failover and numeric retry are independent axes: a single
// logical call may switch to the alternate endpoint once and still spend
// its whole numeric retry budget against the new endpoint. Backoff is a
// fixed interval, matching the behavior of the service this client talks
// to.
package keyauth
