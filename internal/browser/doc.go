// Package browser drives a headless Chrome through chromedp.
//
// Callers work with the Page interface, which addresses elements through
// selector hints (a CSS selector plus an optional visible-text filter)
// instead of raw node handles. All element lookups run as JavaScript in
// the page, so a hint that matches nothing is reported as "not found"
// rather than blocking until a timeout. Navigation and waits that exceed
// the configured timeout return errors wrapping ErrTimeout.
//
// Browser owns one Chrome process; every Page is a fresh tab in it.
package browser
