// Package extract turns arrest-report HTML and JSON into ArrestRecords.
//
// Four strategies are tried by the scraper, in order:
//   - Table: a result table whose header cells name the columns
//   - Cards: list or card layouts with "Label: value" text
//   - JSON: payloads captured from the site's search API
//   - RawRows: any row-like element, kept as unparsed text
//
// Header and label matching is case-insensitive and tolerant of the
// spelling variations seen across sheriff sites ("Booking #", "Booking No.",
// "Booking Number").
package extract
