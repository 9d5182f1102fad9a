// Package model defines the data structures shared across arrestscan.
//
// This package contains the following main types:
//   - ArrestRecord: one entry scraped from the arrest listing
//   - DateResult: the outcome of scraping a single date
//   - RunReport: the summary of one scraper invocation
//
// It also owns date parsing (NormalizeDate, DateRange) because every other
// package agrees on the YYYY-MM-DD form defined here.
package model
