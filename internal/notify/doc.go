// Package notify derives user-facing events from engine state transitions.
//
// Events are written to the user's inbox inside the same transaction as the
// transition that produced them. After the transaction commits, the batch is
// mirrored to ntfy when a topic is configured; push failures are logged and
// never reach the caller. Inbox records are only ever mutated by mark-read.
package notify
