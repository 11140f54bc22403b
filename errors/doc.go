// Package errors provides structured error types for the callback bridge.
//
// Errors carry a Phase (where in the dispatch pipeline the failure
// happened) and a Kind (what went wrong), so callers can match on both
// with errors.Is without parsing messages.
package errors
