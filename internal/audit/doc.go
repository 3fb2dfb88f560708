// Package audit defines the audit event record and the sinks that consume it.
//
// Buffering lives in internal/dispatch; this package decides nothing about
// which events exist. The engine chooses event types and metadata.
package audit
