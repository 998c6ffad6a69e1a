// Package session is the client-side session layer of the smartdesk helpdesk.
//
// It keeps an authenticated session alive against the helpdesk REST backend
// and a realtime STOMP broker:
//
//   - CredentialStore persists the access/refresh token pair and the cached
//     user profile. It is the single source of truth; nothing else keeps a
//     long-lived copy of a token.
//   - TokenManager evaluates expiry, refreshes tokens at most once at a time
//     and funnels every terminal auth failure into ForceLogout.
//   - Authenticator is an http.RoundTripper that attaches bearer tokens,
//     refreshes proactively and retries a request exactly once after a 401.
//   - ConnectionManager owns the realtime connection: state machine, linear
//     reconnect backoff, subscription registry replay and baseline topics.
//   - Dispatcher fans inbound events out to listeners by event type.
//
// Session wires all of these together for the common case.
package session
