// Package sla maps task priority and scope to deadline thresholds and
// classifies how late a task is running.
//
// Status is computed on read from the task's effective start (started, else
// created) and never stored. Rule lookup tries the task's case scope, then the
// global rule for the priority, then the configured fallback table when the
// caller allows it. CheckBreaches is a pull-style sweep; whatever scheduler a
// deployment runs decides how often to call it.
package sla
