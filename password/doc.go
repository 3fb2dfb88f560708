// Package password hashes and verifies account credentials.
//
// New credentials are hashed with the configured algorithm: Argon2id in PHC
// form by default,
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// or bcrypt. Stored hashes carry their own cost parameters, and [Service]
// verifies either format, so a hash keeps the cost it was created with.
//
// Password policy beyond a minimum length belongs to the caller. This
// package never stores or logs plaintext.
package password
