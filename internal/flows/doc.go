// Package flows contains pure-function orchestrators for every Engine
// operation.
//
// Each flow function (RunRegister, RunLogin, RunVerifyEmail, ...) accepts a
// typed dependency struct of closures and returns results without side
// effects beyond those dependencies. Flow tests drive them with in-memory
// fakes; the Engine stays thin.
//
// # Architecture boundaries
//
// Flow functions coordinate the credential store, password hashing, the
// lockout policy, token issuance, the login throttle, email dispatch, audit
// and metrics. They do NOT own any of these resources; ownership stays with
// the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import carauth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency closures.
package flows
