// Package jwt issues and verifies HMAC-signed session tokens with a single
// accepted algorithm, fixed issuer and audience, and optional kid-based
// secret rotation.
package jwt
