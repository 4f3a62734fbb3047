// Package auth authenticates HTTP requests with interchangeable strategies.
//
// Strategies (local form login, HTTP Basic, API key, signed bearer tokens,
// OAuth2 authorization code, TOTP second factor) are registered by name in a
// Registry and bound to handlers through an Engine. A Guard runs its
// strategies in order: the first success wins and the first failure is what
// the client sees. Guards built with ProtectMFA require a second factor that
// runs against the identity produced by the first.
//
// In session mode the Engine persists the serialized identity through a
// session.Manager so later requests skip the strategies entirely. In
// stateless mode every request authenticates from scratch.
package auth
