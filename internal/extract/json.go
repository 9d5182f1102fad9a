package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nao1215/arrestscan/internal/model"
)

// listKeys are object keys that may hold the record list of a search API
// response, tried in order.
var listKeys = []string{"results", "data", "items", "records", "arrests", "inmates"}

// jsonAliases maps a record column to the payload keys that may carry it.
var jsonAliases = map[string][]string{
	model.ColArrestDate:    {"arrest_date", "arrestDate", "date", "booking_date", "bookingDate"},
	model.ColName:          {"name", "full_name", "fullName", "inmate_name"},
	model.ColDOB:           {"dob", "date_of_birth", "dateOfBirth", "birth_date"},
	model.ColAge:           {"age"},
	model.ColCharges:       {"charges", "charge_summary", "charge", "offense"},
	model.ColAgency:        {"agency", "arresting_agency", "arrestingAgency"},
	model.ColBookingNumber: {"booking_number", "bookingNo", "bookingNumber", "booking"},
	model.ColBond:          {"bond", "bond_amount", "bondAmount"},
	model.ColArrestTime:    {"arrest_time", "arrestTime", "time"},
}

// FromJSON reads records from captured search API responses. Only the last
// payload is used since it belongs to the most recent search. A payload is
// either an array of objects or an object whose results key holds one.
func FromJSON(payloads []json.RawMessage, sourceURL string) ([]model.ArrestRecord, error) {
	if len(payloads) == 0 {
		return nil, nil
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(payloads[len(payloads)-1]))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode JSON payload: %w", err)
	}

	var out []model.ArrestRecord
	for _, item := range recordList(v) {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rec := fromObject(obj)
		rec.SourceURL = sourceURL
		rec = rec.Normalize()
		if !rec.IsEmpty() {
			out = append(out, rec)
		}
	}
	return out, nil
}

func recordList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		for _, k := range listKeys {
			if list, ok := t[k].([]any); ok {
				return list
			}
		}
	}
	return nil
}

func fromObject(obj map[string]any) model.ArrestRecord {
	var rec model.ArrestRecord
	for col, keys := range jsonAliases {
		for _, k := range keys {
			if s := scalar(obj[k]); s != "" {
				rec.Set(col, s)
				break
			}
		}
	}
	if rec.Name == "" {
		last, first := scalar(obj["last_name"]), scalar(obj["first_name"])
		if last == "" {
			last = scalar(obj["lastName"])
		}
		if first == "" {
			first = scalar(obj["firstName"])
		}
		rec.Name = strings.TrimSpace(last + " " + first)
	}
	return rec
}

// scalar renders a JSON value as cell text. Lists are joined with "; " so
// a charge list fits one cell.
func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := scalar(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		for _, k := range []string{"description", "name", "value"} {
			if s := scalar(t[k]); s != "" {
				return s
			}
		}
	}
	return ""
}
