package model

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Column names shared by every output: JSON keys, CSV and sheet headers.
const (
	ColArrestDate    = "arrest_date"
	ColName          = "name"
	ColDOB           = "dob"
	ColAge           = "age"
	ColBookingNumber = "booking_number"
	ColAgency        = "agency"
	ColBond          = "bond"
	ColArrestTime    = "arrest_time"
	ColCharges       = "charges"
	ColSourceURL     = "source_url"
	ColRawText       = "raw_text"
)

// ArrestRecord is one entry scraped from the arrest-report listing.
// Fields the site does not expose are left empty.
type ArrestRecord struct {
	ArrestDate    string `json:"arrest_date"`
	Name          string `json:"name"`
	DOB           string `json:"dob"`
	Age           string `json:"age"`
	Charges       string `json:"charges"`
	Agency        string `json:"agency"`
	BookingNumber string `json:"booking_number"`
	Bond          string `json:"bond"`
	ArrestTime    string `json:"arrest_time"`
	SourceURL     string `json:"source_url"`

	// RawText holds the unparsed row text when only the raw-text fallback
	// found anything on the page.
	RawText string `json:"raw_text,omitempty"`
}

// baseColumns is the spreadsheet column order.
var baseColumns = []string{
	ColArrestDate, ColName, ColDOB, ColAge, ColBookingNumber,
	ColAgency, ColBond, ColArrestTime, ColCharges, ColSourceURL,
}

// allColumns is baseColumns plus raw_text.
var allColumns = append(append([]string(nil), baseColumns...), ColRawText)

// Columns returns the header row for records. The raw_text column is only
// added when at least one record carries raw text.
func Columns(records []ArrestRecord) []string {
	cols := append([]string(nil), baseColumns...)
	for _, r := range records {
		if r.RawText != "" {
			return append(cols, ColRawText)
		}
	}
	return cols
}

// Field returns the value stored under a column name.
func (r ArrestRecord) Field(col string) string {
	switch col {
	case ColArrestDate:
		return r.ArrestDate
	case ColName:
		return r.Name
	case ColDOB:
		return r.DOB
	case ColAge:
		return r.Age
	case ColBookingNumber:
		return r.BookingNumber
	case ColAgency:
		return r.Agency
	case ColBond:
		return r.Bond
	case ColArrestTime:
		return r.ArrestTime
	case ColCharges:
		return r.Charges
	case ColSourceURL:
		return r.SourceURL
	case ColRawText:
		return r.RawText
	default:
		return ""
	}
}

// Set stores value under a column name. Unknown columns are ignored and
// reported by the return value.
func (r *ArrestRecord) Set(col, value string) bool {
	switch col {
	case ColArrestDate:
		r.ArrestDate = value
	case ColName:
		r.Name = value
	case ColDOB:
		r.DOB = value
	case ColAge:
		r.Age = value
	case ColBookingNumber:
		r.BookingNumber = value
	case ColAgency:
		r.Agency = value
	case ColBond:
		r.Bond = value
	case ColArrestTime:
		r.ArrestTime = value
	case ColCharges:
		r.Charges = value
	case ColSourceURL:
		r.SourceURL = value
	case ColRawText:
		r.RawText = value
	default:
		return false
	}
	return true
}

// Values returns the record's fields in cols order.
func (r ArrestRecord) Values(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = r.Field(c)
	}
	return out
}

// Normalize trims every field and collapses internal whitespace runs
// (including newlines from multi-line cells) to a single space.
func (r ArrestRecord) Normalize() ArrestRecord {
	for _, c := range allColumns {
		r.Set(c, collapseSpace(r.Field(c)))
	}
	return r
}

// IsEmpty reports whether the record carries no scraped data. SourceURL is
// always filled by the scraper and does not count.
func (r ArrestRecord) IsEmpty() bool {
	for _, c := range allColumns {
		if c == ColSourceURL {
			continue
		}
		if r.Field(c) != "" {
			return false
		}
	}
	return true
}

// Key identifies a record for de-duplication.
type Key struct {
	Name          string
	ArrestDate    string
	BookingNumber string
	Charges       string
}

// Key returns the de-duplication key. Raw-text records use their text as
// the name so distinct rows stay distinct. Name and charges are compared
// case-insensitively.
func (r ArrestRecord) Key() Key {
	name := r.Name
	if name == "" && r.RawText != "" {
		name = r.RawText
	}
	return Key{
		Name:          strings.ToLower(name),
		ArrestDate:    r.ArrestDate,
		BookingNumber: r.BookingNumber,
		Charges:       strings.ToLower(r.Charges),
	}
}

// Fingerprint returns a stable hex SHA3-256 digest of the record key. The
// history database uses it to recognise records seen in earlier runs.
func (r ArrestRecord) Fingerprint() string {
	k := r.Key()
	sum := sha3.Sum256([]byte(strings.Join([]string{
		k.Name, k.ArrestDate, k.BookingNumber, k.Charges,
	}, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// Dedupe drops records whose key was already seen, keeping the first
// occurrence and the original order.
func Dedupe(records []ArrestRecord) []ArrestRecord {
	seen := make(map[Key]struct{}, len(records))
	out := make([]ArrestRecord, 0, len(records))
	for _, r := range records {
		k := r.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
