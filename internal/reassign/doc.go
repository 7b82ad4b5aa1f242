// Package reassign moves task ownership between users.
//
// Every task has exactly one owner at a time. Each reassignment is its own
// transaction guarded by the task version, so batch operations can finish
// partially and report per-task outcomes instead of failing as a whole.
package reassign
