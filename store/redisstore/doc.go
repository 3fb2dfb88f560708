// Package redisstore implements carauth.CredentialStore on Redis.
//
// Each account is one hash at <prefix>:account:<id>. Two kinds of index
// keys point back at the id: <prefix>:email:<lowercased email> and
// <prefix>:token:<kind>:<sha256 digest>. Every write that touches an index
// runs as a Lua script that names all of its keys, so the hash and its
// indexes change together.
//
// Token expiry is compared against the caller's clock, never the server's.
// Token index keys have no TTL; an account holds at most one per kind and
// Save removes it when the digest changes.
//
// On Redis Cluster all keys share one hash tag (see New).
//
// Timestamps are stored as Unix microseconds, with "0" for unset.
package redisstore
