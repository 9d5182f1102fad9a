package model

import (
	"sort"
	"time"
)

// Method names the extraction strategy that produced a date's records.
type Method string

// Extraction methods, in the order they are tried.
const (
	MethodNone    Method = "none"
	MethodTable   Method = "table"
	MethodCards   Method = "cards"
	MethodJSON    Method = "json"
	MethodRawText Method = "raw_text"
)

// DateResult is the outcome of scraping one date.
type DateResult struct {
	// Date is the searched date in YYYY-MM-DD form.
	Date string `json:"date"`

	// Records are the de-duplicated records found for the date.
	Records []ArrestRecord `json:"records"`

	// Pages is the number of result pages read.
	Pages int `json:"pages"`

	// Attempts is the number of browser sessions used, including retries.
	Attempts int `json:"attempts"`

	// Method is the extraction strategy that produced Records.
	Method Method `json:"method"`

	// Duration is the wall time spent on the date.
	Duration time.Duration `json:"duration"`

	// Error is the final error message when the date failed.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the date ended in an error.
func (r DateResult) Failed() bool {
	return r.Error != ""
}

// RunReport summarises one invocation of the scraper.
type RunReport struct {
	// ID is assigned by the history database; zero when history is off.
	ID int64 `json:"id,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Dates are the requested dates in order.
	Dates []string `json:"dates"`

	// Results holds one entry per date, in Dates order.
	Results []DateResult `json:"results"`

	// Uploaded is true when the spreadsheet upload succeeded.
	Uploaded bool `json:"uploaded"`

	// UploadError is the upload failure message, if any.
	UploadError string `json:"upload_error,omitempty"`

	// OutputFile is the local file written, if any.
	OutputFile string `json:"output_file,omitempty"`
}

// NewRunReport creates a report for the given dates.
func NewRunReport(dates []string) *RunReport {
	return &RunReport{
		StartedAt: time.Now(),
		Dates:     dates,
	}
}

// Records returns every record of every successful date, de-duplicated
// across dates.
func (r *RunReport) Records() []ArrestRecord {
	var all []ArrestRecord
	for _, res := range r.Results {
		all = append(all, res.Records...)
	}
	return Dedupe(all)
}

// TotalRecords returns the number of records returned by Records.
func (r *RunReport) TotalRecords() int {
	return len(r.Records())
}

// FailedDates lists the dates whose scrape ended in an error.
func (r *RunReport) FailedDates() []string {
	var out []string
	for _, res := range r.Results {
		if res.Failed() {
			out = append(out, res.Date)
		}
	}
	return out
}

// AllFailed reports whether at least one date was attempted and none succeeded.
func (r *RunReport) AllFailed() bool {
	if len(r.Results) == 0 {
		return false
	}
	return len(r.FailedDates()) == len(r.Results)
}

// Duration returns the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// AgencyCount is the number of records attributed to an arresting agency.
type AgencyCount struct {
	Agency string
	Count  int
}

// CountByAgency returns per-agency record counts, largest first. Records
// without an agency are grouped under "Unknown".
func (r *RunReport) CountByAgency() []AgencyCount {
	counts := make(map[string]int)
	for _, rec := range r.Records() {
		agency := rec.Agency
		if agency == "" {
			agency = "Unknown"
		}
		counts[agency]++
	}

	out := make([]AgencyCount, 0, len(counts))
	for a, c := range counts {
		out = append(out, AgencyCount{Agency: a, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Agency < out[j].Agency
	})
	return out
}
