// Package analytics derives workflow metrics, completion velocity and
// bottleneck reports from persisted task, dependency, SLA and time-entry
// state.
//
// Results are read-only summaries. They may be served from a short TTL cache
// keyed by query and scope, and concurrent identical queries share a single
// computation.
package analytics
