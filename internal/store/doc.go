// Package store persists engine state in SQLite and is the only package that
// speaks SQL.
//
// Store owns connection setup, schema initialization, busy retries, and the
// transaction helper every mutating component runs through. Mutable entities
// (tasks, approval chains, parallel groups) carry a version column; updates are
// conditional on the version the caller read, and a lost race surfaces as
// errs.ErrConflictRetry so the caller can re-read and try again. The audit_log
// table is append-only and guarded by triggers.
//
// Query methods live on the shared queries type so the same calls work on the
// Store (autocommit reads) and inside a Tx. Lookups by id return (nil, nil) when
// the row does not exist; callers decide whether that is an error.
//
// Schema changes bump schemaVersion in schema.go; operators delete the database
// to adopt a new schema.
package store
