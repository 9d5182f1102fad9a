package model

import (
	"slices"
	"testing"
)

func TestArrestRecordNormalize(t *testing.T) {
	t.Parallel()

	r := ArrestRecord{
		Name:    "  DOE,\n  JOHN  ",
		Charges: "BATTERY\n\tRESISTING OFFICER",
		Age:     " 34 ",
	}.Normalize()

	if r.Name != "DOE, JOHN" {
		t.Errorf("Name = %q", r.Name)
	}
	if r.Charges != "BATTERY RESISTING OFFICER" {
		t.Errorf("Charges = %q", r.Charges)
	}
	if r.Age != "34" {
		t.Errorf("Age = %q", r.Age)
	}
}

func TestArrestRecordIsEmpty(t *testing.T) {
	t.Parallel()

	t.Run("only source url is empty", func(t *testing.T) {
		t.Parallel()
		r := ArrestRecord{SourceURL: "https://example.com"}
		if !r.IsEmpty() {
			t.Error("expected record with only SourceURL to be empty")
		}
	})

	t.Run("raw text is not empty", func(t *testing.T) {
		t.Parallel()
		r := ArrestRecord{RawText: "DOE JOHN 08/01/2025 BATTERY"}
		if r.IsEmpty() {
			t.Error("expected record with raw text to be non-empty")
		}
	})

	t.Run("any field is not empty", func(t *testing.T) {
		t.Parallel()
		r := ArrestRecord{Bond: "$500"}
		if r.IsEmpty() {
			t.Error("expected record with bond to be non-empty")
		}
	})
}

func TestColumns(t *testing.T) {
	t.Parallel()

	want := []string{
		"arrest_date", "name", "dob", "age", "booking_number",
		"agency", "bond", "arrest_time", "charges", "source_url",
	}

	t.Run("fixed order without raw text", func(t *testing.T) {
		t.Parallel()
		got := Columns([]ArrestRecord{{Name: "A"}})
		if !slices.Equal(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("raw text appended when present", func(t *testing.T) {
		t.Parallel()
		got := Columns([]ArrestRecord{{Name: "A"}, {RawText: "row"}})
		if !slices.Equal(got, append(slices.Clone(want), "raw_text")) {
			t.Errorf("got %v", got)
		}
	})

	t.Run("values follow columns", func(t *testing.T) {
		t.Parallel()
		r := ArrestRecord{Name: "DOE, JOHN", ArrestDate: "2025-08-01", Charges: "DUI"}
		got := r.Values([]string{ColCharges, ColName, ColArrestDate, "unknown"})
		if !slices.Equal(got, []string{"DUI", "DOE, JOHN", "2025-08-01", ""}) {
			t.Errorf("got %v", got)
		}
	})
}

func TestArrestRecordSet(t *testing.T) {
	t.Parallel()

	var r ArrestRecord
	if !r.Set(ColBookingNumber, "2025-001234") {
		t.Fatal("expected booking_number to be a known column")
	}
	if r.BookingNumber != "2025-001234" {
		t.Errorf("BookingNumber = %q", r.BookingNumber)
	}
	if r.Set("mugshot", "x") {
		t.Error("expected unknown column to be rejected")
	}
}

func TestDedupe(t *testing.T) {
	t.Parallel()

	records := []ArrestRecord{
		{Name: "DOE, JOHN", ArrestDate: "2025-08-01", BookingNumber: "1", Charges: "DUI"},
		{Name: "ROE, JANE", ArrestDate: "2025-08-01", BookingNumber: "2", Charges: "THEFT"},
		{Name: "DOE, JOHN", ArrestDate: "2025-08-01", BookingNumber: "1", Charges: "DUI", Agency: "SCSO"},
		{Name: "DOE, JOHN", ArrestDate: "2025-08-01", BookingNumber: "1", Charges: "BATTERY"},
	}

	got := Dedupe(records)
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d: %+v", len(got), got)
	}
	if got[0].Agency != "" {
		t.Error("expected the first occurrence to be kept")
	}
	if got[1].Name != "ROE, JANE" || got[2].Charges != "BATTERY" {
		t.Errorf("order not preserved: %+v", got)
	}
}

func TestDedupeRawText(t *testing.T) {
	t.Parallel()

	records := []ArrestRecord{
		{ArrestDate: "2025-08-01", RawText: "DOE JOHN BATTERY"},
		{ArrestDate: "2025-08-01", RawText: "ROE JANE THEFT"},
		{ArrestDate: "2025-08-01", RawText: "DOE JOHN BATTERY"},
	}
	if got := Dedupe(records); len(got) != 2 {
		t.Errorf("expected 2 raw records, got %d", len(got))
	}
}

func TestDedupeIgnoresCase(t *testing.T) {
	t.Parallel()

	records := []ArrestRecord{
		{Name: "Doe, John", ArrestDate: "2025-08-01", BookingNumber: "1", Charges: "Dui"},
		{Name: "DOE, JOHN", ArrestDate: "2025-08-01", BookingNumber: "1", Charges: "DUI"},
	}
	got := Dedupe(records)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d: %+v", len(got), got)
	}
	if got[0].Name != "Doe, John" {
		t.Errorf("expected the first spelling to be kept, got %q", got[0].Name)
	}
	if records[0].Key() != records[1].Key() {
		t.Error("expected keys to match when only case differs")
	}
	if records[0].Fingerprint() != records[1].Fingerprint() {
		t.Error("expected fingerprints to agree with the key")
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := ArrestRecord{Name: "Doe, John", ArrestDate: "2025-08-01", BookingNumber: "1", Charges: "DUI"}
	b := ArrestRecord{Name: "DOE, JOHN", ArrestDate: "2025-08-01", BookingNumber: "1", Charges: "dui", Agency: "SCSO"}
	c := ArrestRecord{Name: "DOE, JOHN", ArrestDate: "2025-08-02", BookingNumber: "1", Charges: "DUI"}

	if len(a.Fingerprint()) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(a.Fingerprint()))
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("expected fingerprint to ignore case and non-key fields")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("expected different arrest dates to produce different fingerprints")
	}
}
