// Package parallel groups tasks whose joint completion is judged under an
// all, any, or percentage rule.
//
// Status is computed from member task state on every call and never writes.
// Membership may shrink after creation; the percentage rule is always
// evaluated against the current members.
package parallel
