// Package httpapi exposes the workflow engine as a JSON API under
// /workflow/engine.
//
// Routes are grouped by capability (tasks, dependencies, sla, approvals,
// time, notifications, audit, parallel, reassign, analytics). Each request
// runs under the configured timeout, carries a request id, and resolves the
// acting user from the X-Actor header. Writes that lose an optimistic
// concurrency race are retried a bounded number of times before a 409 with
// retryable=true is returned.
package httpapi
