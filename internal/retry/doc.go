// Package retry runs an operation again with exponential backoff when it
// fails with a transient error. Page loads and spreadsheet calls both go
// through it.
package retry
