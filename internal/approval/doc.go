// Package approval runs the sequential approval chain attached to a task.
//
// A chain moves pending -> approved after every step approves in order, or
// pending -> rejected the moment any step rejects. Only the approver at the
// current step may act, and terminal chains refuse further decisions. Every
// transition is audited and notifies either the next approver or the task
// owner.
package approval
