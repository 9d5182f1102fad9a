package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the canonical date format used throughout arrestscan.
const DateLayout = "2006-01-02"

// USDateLayout is the month/day/year form typed into US date inputs.
const USDateLayout = "01/02/2006"

var (
	// ErrDateFormat is returned for a date in neither accepted format.
	ErrDateFormat = errors.New("unrecognized date format")

	// ErrRangeOrder is returned when a range starts after it ends.
	ErrRangeOrder = errors.New("start date is after end date")
)

var (
	isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	usDate  = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
)

// NormalizeDate converts YYYY-MM-DD or M/D/YYYY into YYYY-MM-DD.
func NormalizeDate(s string) (string, error) {
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

// ParseDate parses YYYY-MM-DD or M/D/YYYY into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var (
		t   time.Time
		err error
	)
	switch {
	case isoDate.MatchString(s):
		t, err = time.Parse(DateLayout, s)
	case usDate.MatchString(s):
		t, err = time.Parse("1/2/2006", s)
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrDateFormat, s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrDateFormat, s, err)
	}
	return t, nil
}

// DateRange returns every date from start to end inclusive as YYYY-MM-DD.
func DateRange(start, end string) ([]string, error) {
	s, err := ParseDate(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return nil, err
	}
	if s.After(e) {
		return nil, fmt.Errorf("%w: %s > %s", ErrRangeOrder, s.Format(DateLayout), e.Format(DateLayout))
	}

	var out []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(DateLayout))
	}
	return out, nil
}

// ToUSDate converts a YYYY-MM-DD date into MM/DD/YYYY.
func ToUSDate(iso string) (string, error) {
	t, err := ParseDate(iso)
	if err != nil {
		return "", err
	}
	return t.Format(USDateLayout), nil
}
