package browser

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nao1215/arrestscan/internal/config"
)

// Response is a JSON network response captured while a page was open.
type Response struct {
	URL  string
	Body json.RawMessage
}

// Page is one browser tab. Element arguments are selector hints; when a
// hint matches several elements the first one is used unless an index is
// given.
type Page interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// WaitReady waits until the document body exists and the document has
	// finished loading.
	WaitReady(ctx context.Context) error

	// Sleep pauses for d or until ctx ends.
	Sleep(ctx context.Context, d time.Duration) error

	// Count returns the number of elements matching h.
	Count(ctx context.Context, h config.Hint) (int, error)

	// SetValue assigns value to the index-th element matching h and fires
	// input and change events. With onlyIfEmpty an element that already
	// has a value is left untouched. It reports whether a value was set.
	SetValue(ctx context.Context, h config.Hint, index int, value string, onlyIfEmpty bool) (bool, error)

	// Value returns the current value of the index-th element matching h.
	Value(ctx context.Context, h config.Hint, index int) (string, error)

	// Click clicks the first enabled element matching h and reports
	// whether one was found.
	Click(ctx context.Context, h config.Hint) (bool, error)

	// PressEnter focuses the first element matching h and sends Enter.
	PressEnter(ctx context.Context, h config.Hint) (bool, error)

	// Enabled reports whether the first element matching h exists and is
	// not disabled.
	Enabled(ctx context.Context, h config.Hint) (bool, error)

	// Attr returns an attribute of the first element matching h.
	Attr(ctx context.Context, h config.Hint, name string) (string, bool, error)

	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)

	// URL returns the current document URL.
	URL(ctx context.Context) (string, error)

	// JSONResponses returns the JSON responses captured so far, oldest first.
	JSONResponses() []Response

	// Close closes the tab.
	Close() error
}

// Opener creates pages. *Browser implements it; tests substitute fakes.
type Opener interface {
	NewPage(ctx context.Context) (Page, error)
}
