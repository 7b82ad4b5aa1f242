// Package audit is the append-only event log every engine component writes
// through.
//
// Recorder stamps entries with an id and timestamp and appends them either
// directly or inside the caller's store transaction, so an audit entry commits
// or rolls back together with the mutation it describes. Queries return entries
// newest first and clamp the page size.
package audit
