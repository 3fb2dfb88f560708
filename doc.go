// Package carauth is the account authentication and credential-lifecycle core
// of the car-rental backend: registration, login with brute-force lockout,
// JWT session tokens, email verification and password reset.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// carauth is the public surface. It exposes [Engine], [Builder], [Config],
// the [CredentialStore] and [EmailSender] contracts and value types
// ([AccountView], [Identity], [MetricsSnapshot]). Flow orchestration, lockout
// rules, token generation and async dispatch live under internal/ and are
// never exported.
//
// # What this package must NOT do
//
//   - Return credential hashes or token digests to callers.
//   - Start goroutines other than the audit and email dispatchers.
//   - Import transport or storage sub-packages (they import carauth).
//
// # Performance contract
//
// ValidateToken is the hot path. It never touches the credential store.
// Login is one store read plus one write, or a short compare-and-swap loop on
// failure.
package carauth
