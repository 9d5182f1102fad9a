// Package database keeps the scrape history in SQLite.
//
// Every run is stored with its per-date results, and every record is kept
// once under its fingerprint together with the run that first and last
// saw it. This lets later runs upload only records that were never seen
// before.
//
// modernc.org/sqlite is used so the binary stays CGO-free.
package database
