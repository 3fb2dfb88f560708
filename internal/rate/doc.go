// Package rate implements the Redis-backed per-IP login throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional PEXPIRE on first hit, under the
// key prefix "carauth:login:ip:". Only failed logins increment the counter;
// Check compares without writing.
//
// # What this package must NOT do
//
//   - Decide lockout for an account (that is internal/lockout).
//   - Be imported outside the carauth module.
package rate
