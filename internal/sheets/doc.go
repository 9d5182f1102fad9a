// Package sheets uploads arrest records to a Google Sheets worksheet.
//
// The worksheet is addressed by spreadsheet ID and tab name and is created
// when missing. Two write modes exist: replace clears the tab and writes
// the header and every row, append adds rows below existing data. Calls
// are retried on rate limiting, server errors and timeouts.
package sheets
