// Package store implements the durable Store (prompts, sessions, events,
// compactions) on a single sqlite database via modernc.org/sqlite, the
// pure-Go driver with no cgo dependency. Every write is a transaction;
// compaction's delete-and-insert is one transaction so it is never
// partially applied.
//
// Schema is in schema.go; id generation for sessions is the caller's
// responsibility (internal/adapter uses oklog/ulid/v2) so session_id stays
// stable and caller-chosen per spec.
package store
