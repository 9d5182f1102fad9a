package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Hint locates an element on the page. CSS selects candidates; when Text is
// set only candidates whose visible text or value contains it
// (case-insensitive) match.
type Hint struct {
	CSS  string `yaml:"css"`
	Text string `yaml:"text,omitempty"`
}

// UnmarshalYAML accepts either a bare selector string or a mapping with
// css and text keys.
func (h *Hint) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		h.CSS = node.Value
		h.Text = ""
		return nil
	}
	type plain Hint
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	if p.CSS == "" {
		return fmt.Errorf("selector hint at line %d: css is required", node.Line)
	}
	*h = Hint(p)
	return nil
}

// String renders the hint the way it appears in log lines.
func (h Hint) String() string {
	if h.Text == "" {
		return h.CSS
	}
	return fmt.Sprintf("%s[text~%q]", h.CSS, h.Text)
}

// Selectors is the dictionary of hints tried, in order, for each concern.
type Selectors struct {
	// DateInputs locate the date filter fields.
	DateInputs []Hint `yaml:"date_inputs,omitempty"`
	// SearchButtons submit the search form.
	SearchButtons []Hint `yaml:"search_buttons,omitempty"`
	// ResultContainers hold the result table or card list.
	ResultContainers []Hint `yaml:"result_containers,omitempty"`
	// NextButtons advance to the next result page.
	NextButtons []Hint `yaml:"next_buttons,omitempty"`
}

// DefaultSelectors returns hints matching the common CMS layouts used by
// sheriff arrest-report pages.
func DefaultSelectors() Selectors {
	return Selectors{
		DateInputs: []Hint{
			{CSS: `input[type="date"]`},
			{CSS: `input[name*="date" i]`},
			{CSS: `input[id*="date" i]`},
			{CSS: `input[aria-label*="date" i]`},
			{CSS: `input[placeholder*="date" i]`},
		},
		SearchButtons: []Hint{
			{CSS: "button", Text: "search"},
			{CSS: "button", Text: "submit"},
			{CSS: "button", Text: "go"},
			{CSS: `input[type="submit"]`},
			{CSS: "a", Text: "search"},
		},
		ResultContainers: []Hint{
			{CSS: "table"},
			{CSS: ".results"},
			{CSS: ".list"},
			{CSS: ".cards"},
			{CSS: ".card-list"},
			{CSS: `[role="table"]`},
			{CSS: `[data-component*="arrest" i]`},
		},
		NextButtons: []Hint{
			{CSS: "a", Text: "next"},
			{CSS: "button", Text: "next"},
			{CSS: `a[rel="next"]`},
			{CSS: "button", Text: "load more"},
			{CSS: "a", Text: "load more"},
		},
	}
}

// Merge returns s with every non-empty list in o replacing the matching list.
func (s Selectors) Merge(o Selectors) Selectors {
	if len(o.DateInputs) > 0 {
		s.DateInputs = o.DateInputs
	}
	if len(o.SearchButtons) > 0 {
		s.SearchButtons = o.SearchButtons
	}
	if len(o.ResultContainers) > 0 {
		s.ResultContainers = o.ResultContainers
	}
	if len(o.NextButtons) > 0 {
		s.NextButtons = o.NextButtons
	}
	return s
}

// SiteConfig describes the target website.
type SiteConfig struct {
	// EntryURL overrides DefaultEntryURL.
	EntryURL string `yaml:"entry_url,omitempty"`

	// QuickLinks are link texts clicked to reach the search form.
	QuickLinks []string `yaml:"quick_links,omitempty"`

	// JSONURLPattern overrides DefaultJSONURLPattern.
	JSONURLPattern string `yaml:"json_url_pattern,omitempty"`

	// Selectors replace the default hint lists key by key.
	Selectors Selectors `yaml:"selectors,omitempty"`
}

// UploadConfig describes the spreadsheet destination.
type UploadConfig struct {
	SheetID     string `yaml:"sheet_id,omitempty"`
	Worksheet   string `yaml:"worksheet,omitempty"`
	Credentials string `yaml:"credentials,omitempty"`
	Mode        string `yaml:"mode,omitempty"`
}

// BrowserConfig tunes the Chrome instance.
type BrowserConfig struct {
	ChromePath string        `yaml:"chrome_path,omitempty"`
	UserAgent  string        `yaml:"user_agent,omitempty"`
	NoSandbox  bool          `yaml:"no_sandbox,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	MaxPages   int           `yaml:"max_pages,omitempty"`

	WindowWidth  int `yaml:"window_width,omitempty"`
	WindowHeight int `yaml:"window_height,omitempty"`
}

// File represents the structure of the .arrestscan configuration file.
type File struct {
	Site    SiteConfig    `yaml:"site,omitempty"`
	Upload  UploadConfig  `yaml:"upload,omitempty"`
	Browser BrowserConfig `yaml:"browser,omitempty"`
}
