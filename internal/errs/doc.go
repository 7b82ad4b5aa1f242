// Package errs defines the failure taxonomy shared by every engine component.
//
// Components tag errors with one of the exported sentinel markers through Wrap so
// callers (the HTTP layer, the CLI, retry helpers) can distinguish a conflicting
// write from malformed input or a missing entity using errors.Is. Kind returns a
// stable string for wire payloads.
package errs
