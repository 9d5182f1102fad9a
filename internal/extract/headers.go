package extract

import (
	"strings"
	"unicode"

	"github.com/nao1215/arrestscan/internal/model"
	"golang.org/x/text/cases"
)

// Pseudo-columns combined into the name field.
const (
	colFirstName = "first_name"
	colLastName  = "last_name"
)

// columnAliases lists the folded header texts for each column, most
// specific first. When a table carries two headers for the same column the
// earlier alias wins, so "Arrest Date" beats a bare "Date".
var columnAliases = []struct {
	col     string
	aliases []string
}{
	{model.ColArrestDate, []string{"arrest date", "arrest date/time", "date arrested", "booking date", "date"}},
	{model.ColName, []string{"inmate name", "full name", "name", "defendant", "inmate"}},
	{colFirstName, []string{"first name"}},
	{colLastName, []string{"last name"}},
	{model.ColDOB, []string{"date of birth", "dob", "d.o.b.", "birth date"}},
	{model.ColAge, []string{"age"}},
	{model.ColCharges, []string{"charges", "charge description", "charge", "offenses", "offense"}},
	{model.ColAgency, []string{"arresting agency", "arrest agency", "agency"}},
	{model.ColBookingNumber, []string{"booking #", "booking number", "booking no.", "booking no", "booking id", "booking"}},
	{model.ColBond, []string{"total bond", "bond amount", "bond"}},
	{model.ColArrestTime, []string{"arrest time", "booking time", "time"}},
}

type headerAlias struct {
	col  string
	rank int
}

// headerAliases maps folded header text to a record column and its rank
// among that column's aliases.
var headerAliases = func() map[string]headerAlias {
	m := make(map[string]headerAlias)
	for _, c := range columnAliases {
		for rank, a := range c.aliases {
			m[a] = headerAlias{col: c.col, rank: rank}
		}
	}
	return m
}()

// foldHeader lowercases with Unicode case folding (a Caser is stateful, so
// one is built per call), collapses whitespace and
// drops a trailing colon, so "Booking  No.:" becomes "booking no.".
func foldHeader(h string) string {
	h = cases.Fold().String(h)
	h = strings.Join(strings.FieldsFunc(h, unicode.IsSpace), " ")
	return strings.TrimSuffix(h, ":")
}

// resolveHeaders maps each header cell to a column. A column claimed by
// several headers goes to the most specific alias; the others map to "".
func resolveHeaders(headers []string) []string {
	cols := make([]string, len(headers))
	best := make(map[string]int)
	for i, h := range headers {
		a, ok := headerAliases[foldHeader(h)]
		if !ok {
			continue
		}
		j, seen := best[a.col]
		if seen && headerAliases[foldHeader(headers[j])].rank <= a.rank {
			continue
		}
		if seen {
			cols[j] = ""
		}
		best[a.col] = i
		cols[i] = a.col
	}
	return cols
}
