// Command caseflow runs the workflow engine API and offers administrative
// commands that work directly against the engine database.
package main
