// Package middleware is the auth gate: HTTP middleware that verifies the
// session token carried by a request and attaches the resulting
// [carauth.Identity] to its context.
//
// # Modes
//
//   - [Gate.Required] rejects requests without a valid token.
//   - [Gate.Optional] lets anonymous requests through but still rejects a
//     token that is present and invalid.
//   - [Gate.RequireRoles] is Required plus a role check.
//
// The token is read from the session cookie first and from
// "Authorization: Bearer" second. Verification is delegated to a
// [TokenVerifier], normally *carauth.Engine. This package never parses
// JWTs itself and never touches the credential store.
package middleware
