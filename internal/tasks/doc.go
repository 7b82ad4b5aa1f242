// Package tasks keeps the engine's copy of case tasks and owns their status
// lifecycle.
//
// Collaborating case systems push task identity and attributes through Upsert.
// Status changes run here so that starting a task can be gated on its blocking
// prerequisites, completion timestamps stay consistent, and finishing the last
// open task of a stage notifies everyone who worked on it. Tasks are archived,
// never deleted.
package tasks
