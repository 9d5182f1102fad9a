// Package report renders the outcome of a scrape run.
//
// Record writers (JSON, CSV, XLSX) emit every scraped record and are used
// for --output files. Summary writers (Markdown, plain text) describe the
// run: dates, record counts, failures and the agency breakdown.
package report
