// Package server implements the ovpnadmin HTTP API.
//
// Owns:
//   - routing, handlers, and request/response contracts
//   - the bearer-token gate (RequireAuth) in front of client, server and audit routes
//   - the audit/user store and its embedded migrations
//
// Does not own:
//   - client records (the PKI and the installer script are the source of truth)
//   - token signing (internal/auth)
//
// Invariants:
//   - a client name is validated before it reaches the script, the PKI or the management socket
//   - JSON responses go through writeJSON, except the .ovpn download and raw script status
//   - audit failures are logged and never fail a request
package server
