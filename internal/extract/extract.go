package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/arrestscan/internal/config"
	"github.com/nao1215/arrestscan/internal/model"
)

// cardItems selects the individual entries of a card or list container.
const cardItems = ".card, .result, .list-item, li, .row"

// rawRowItems selects row-like elements for the raw-text fallback.
const rawRowItems = "table tr, .result-row, .inmate-row"

// minRawRowLen skips header fragments and empty spacer rows.
const minRawRowLen = 10

// Result holds the records found on one page and how they were found.
type Result struct {
	Records []model.ArrestRecord
	Method  model.Method
}

// Extract reads records from an HTML document. The result container hints
// of sel are tried in order: the first table with body rows that yields
// records wins, other containers are read as card lists. When no container
// yields anything, the first table of the page is parsed as a last resort.
func Extract(html string, sel config.Selectors, sourceURL string) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{Method: model.MethodNone}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	for _, h := range sel.ResultContainers {
		var found Result
		matches(doc.Selection, h).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if goquery.NodeName(el) == "table" {
				if el.Find("tbody tr").Length() == 0 {
					return true
				}
				if recs := Table(el, sourceURL); len(recs) > 0 {
					found = Result{Records: recs, Method: model.MethodTable}
					return false
				}
				return true
			}
			if recs := Cards(el, sourceURL); len(recs) > 0 {
				found = Result{Records: recs, Method: model.MethodCards}
				return false
			}
			return true
		})
		if len(found.Records) > 0 {
			return found, nil
		}
	}

	if table := doc.Find("table").First(); table.Length() > 0 {
		if recs := Table(table, sourceURL); len(recs) > 0 {
			return Result{Records: recs, Method: model.MethodTable}, nil
		}
	}
	return Result{Method: model.MethodNone}, nil
}

// matches returns the elements under root matching h, applying the text
// filter the same way the browser does.
func matches(root *goquery.Selection, h config.Hint) *goquery.Selection {
	sel := root.Find(h.CSS)
	if h.Text == "" {
		return sel
	}
	needle := strings.ToLower(h.Text)
	return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(strings.ToLower(innerText(s)), needle)
	})
}

// Table reads a result table. Header cells come from thead, or from the
// first row made only of th cells. Rows are zipped with the headers; extra
// cells on either side are ignored and unrecognised headers are skipped.
func Table(table *goquery.Selection, sourceURL string) []model.ArrestRecord {
	headers, headerRow := tableHeaders(table)
	cols := resolveHeaders(headers)

	var out []model.ArrestRecord
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		if headerRow != nil && tr.IsSelection(headerRow) {
			return
		}
		if tr.ChildrenFiltered("td").Length() == 0 {
			return
		}

		var rec model.ArrestRecord
		var first, last string
		tr.ChildrenFiltered("td, th").Each(func(i int, cell *goquery.Selection) {
			if i >= len(cols) {
				return
			}
			value := cellText(cell)
			switch col := cols[i]; col {
			case "":
			case colFirstName:
				first = value
			case colLastName:
				last = value
			default:
				rec.Set(col, value)
			}
		})
		if rec.Name == "" {
			rec.Name = strings.TrimSpace(last + " " + first)
		}
		rec.SourceURL = sourceURL
		rec = rec.Normalize()
		if !rec.IsEmpty() {
			out = append(out, rec)
		}
	})
	return out
}

func tableHeaders(table *goquery.Selection) ([]string, *goquery.Selection) {
	var headers []string
	table.Find("thead tr").First().ChildrenFiltered("th, td").Each(func(_ int, c *goquery.Selection) {
		headers = append(headers, cellText(c))
	})
	if len(headers) > 0 {
		return headers, nil
	}

	first := table.Find("tbody tr").First()
	cells := first.ChildrenFiltered("th, td")
	if cells.Length() == 0 || cells.Length() != first.ChildrenFiltered("th").Length() {
		return nil, nil
	}
	cells.Each(func(_ int, c *goquery.Selection) {
		headers = append(headers, cellText(c))
	})
	return headers, first
}

// cardPatterns extract "Label: value" pairs from card text. The value
// group is the last capture group of each pattern.
var cardPatterns = []struct {
	col string
	re  *regexp.Regexp
}{
	{model.ColName, regexp.MustCompile(`(?im)^\s*(?:inmate\s+)?name:\s*(.+)$`)},
	{model.ColArrestDate, regexp.MustCompile(`(?i)arrest\s*date:\s*([0-9/\-: ]*[0-9])`)},
	{model.ColDOB, regexp.MustCompile(`(?i)(?:DOB|Date of Birth):\s*([0-9/\-]+)`)},
	{model.ColAge, regexp.MustCompile(`(?i)\bAge:\s*(\d{1,3})`)},
	{model.ColBookingNumber, regexp.MustCompile(`(?i)Booking\s*(?:No\.?|#|Number):\s*([A-Za-z0-9\-]+)`)},
	{model.ColAgency, regexp.MustCompile(`(?i)(?:Arresting\s+)?Agency:\s*(.+)`)},
	{model.ColBond, regexp.MustCompile(`(?i)Bond(?:\s+Amount)?:\s*([^\n]+)`)},
	{model.ColArrestTime, regexp.MustCompile(`(?i)Arrest\s*Time:\s*([0-9:]+\s*(?:[AP]M)?)`)},
	{model.ColCharges, regexp.MustCompile(`(?i)Charges?:\s*(.+)`)},
}

// Cards reads entries of a card or list layout. Items nested in another
// item are skipped so a card's inner list does not produce partial
// records, and items without any recognised label are dropped.
func Cards(container *goquery.Selection, sourceURL string) []model.ArrestRecord {
	var out []model.ArrestRecord
	items := container.Find(cardItems)
	items.Each(func(_ int, item *goquery.Selection) {
		if item.ParentsUntilSelection(container).Filter(cardItems).Length() > 0 {
			return
		}
		if rec, ok := parseCard(innerText(item)); ok {
			rec.SourceURL = sourceURL
			out = append(out, rec.Normalize())
		}
	})
	return out
}

func parseCard(text string) (model.ArrestRecord, bool) {
	var rec model.ArrestRecord
	found := false
	for _, p := range cardPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v := strings.TrimSpace(m[len(m)-1]); v != "" {
			rec.Set(p.col, v)
			found = true
		}
	}
	return rec, found
}

// RawRows keeps the text of every row-like element longer than ten
// characters. Rows made only of header cells are skipped. Each record is
// stamped with the searched date since the text is not parsed.
func RawRows(html, date, sourceURL string) ([]model.ArrestRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var out []model.ArrestRecord
	doc.Find(rawRowItems).Each(func(_ int, row *goquery.Selection) {
		if goquery.NodeName(row) == "tr" && row.ChildrenFiltered("td").Length() == 0 {
			return
		}
		text := cellText(row)
		if len(text) <= minRawRowLen {
			return
		}
		out = append(out, model.ArrestRecord{
			ArrestDate: date,
			RawText:    text,
			SourceURL:  sourceURL,
		}.Normalize())
	})
	return model.Dedupe(out), nil
}
