// Package pipeline drives one browser tab through the arrest search for a
// single date and schedules many dates.
//
// A Pipeline runs Steps in order against a Job: open the entry page, move
// into the search frame, fill the date filter, submit, read every result
// page, then fall back to captured JSON or raw row text when the page
// layout was not recognised. Runner wraps a pipeline with retries and a
// fresh tab per attempt, and BatchProcessor spreads dates over a bounded
// number of concurrent runners.
package pipeline
