// Package main provides the entry point for the arrestscan CLI.
//
// arrestscan drives a headless Chrome through the Sarasota County Sheriff's
// arrest-report search, reads every result page for one date or a date
// range, and uploads the records to a Google Sheet or writes them to a
// local file. It is meant to be run from cron or a CI schedule.
//
// Usage:
//
//	arrestscan scrape                       # yesterday
//	arrestscan scrape --date 2026-10-18
//	arrestscan scrape --start 10/01/2026 --end 10/07/2026 --no-upload -o week.xlsx
//
// See --help for all available options.
package main

func main() {
	Execute()
}
