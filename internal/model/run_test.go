package model

import (
	"slices"
	"testing"
	"time"
)

func TestRunReport(t *testing.T) {
	t.Parallel()

	newReport := func() *RunReport {
		r := NewRunReport([]string{"2025-08-01", "2025-08-02", "2025-08-03"})
		r.Results = []DateResult{
			{Date: "2025-08-01", Records: []ArrestRecord{
				{Name: "A", ArrestDate: "2025-08-01", Agency: "SCSO"},
				{Name: "B", ArrestDate: "2025-08-01", Agency: "NPPD"},
			}},
			{Date: "2025-08-02", Error: "timeout"},
			{Date: "2025-08-03", Records: []ArrestRecord{
				{Name: "A", ArrestDate: "2025-08-01", Agency: "SCSO"},
				{Name: "C", ArrestDate: "2025-08-03", Agency: "SCSO"},
				{Name: "D", ArrestDate: "2025-08-03"},
			}},
		}
		return r
	}

	t.Run("records are de-duplicated across dates", func(t *testing.T) {
		t.Parallel()
		if got := newReport().TotalRecords(); got != 4 {
			t.Errorf("TotalRecords() = %d, want 4", got)
		}
	})

	t.Run("failed dates", func(t *testing.T) {
		t.Parallel()
		r := newReport()
		if !slices.Equal(r.FailedDates(), []string{"2025-08-02"}) {
			t.Errorf("FailedDates() = %v", r.FailedDates())
		}
		if r.AllFailed() {
			t.Error("AllFailed() should be false with a successful date")
		}
	})

	t.Run("all failed", func(t *testing.T) {
		t.Parallel()
		r := NewRunReport([]string{"2025-08-01"})
		r.Results = []DateResult{{Date: "2025-08-01", Error: "boom"}}
		if !r.AllFailed() {
			t.Error("AllFailed() should be true")
		}
	})

	t.Run("no results is not all failed", func(t *testing.T) {
		t.Parallel()
		if NewRunReport(nil).AllFailed() {
			t.Error("AllFailed() should be false without results")
		}
	})

	t.Run("count by agency is sorted", func(t *testing.T) {
		t.Parallel()
		got := newReport().CountByAgency()
		want := []AgencyCount{
			{Agency: "SCSO", Count: 2},
			{Agency: "NPPD", Count: 1},
			{Agency: "Unknown", Count: 1},
		}
		if !slices.Equal(got, want) {
			t.Errorf("CountByAgency() = %v, want %v", got, want)
		}
	})

	t.Run("duration", func(t *testing.T) {
		t.Parallel()
		r := newReport()
		if r.Duration() != 0 {
			t.Error("unfinished run should report zero duration")
		}
		r.FinishedAt = r.StartedAt.Add(3 * time.Second)
		if r.Duration() != 3*time.Second {
			t.Errorf("Duration() = %v", r.Duration())
		}
	})
}
