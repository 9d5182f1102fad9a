package extract

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// searchFrameHint marks iframe sources that likely host the search form.
var searchFrameHint = regexp.MustCompile(`(?i)arrest|inmate|booking|search|jail`)

// Frame is an embedded document found on a page.
type Frame struct {
	// Src is the frame source resolved against the page URL.
	Src string
	// Name is the frame's name or id attribute.
	Name string
}

// Frames returns the iframes of a page, in document order. Frames whose
// source cannot be resolved, or is empty, are skipped.
func Frames(content, pageURL string) ([]Frame, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}

	var frames []Frame
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "iframe" || n.Data == "frame") {
			if src := resolveURL(base, getAttr(n, "src")); src != "" {
				name := getAttr(n, "name")
				if name == "" {
					name = getAttr(n, "id")
				}
				frames = append(frames, Frame{Src: src, Name: name})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return frames, nil
}

// SearchFrame picks the frame most likely to contain the search form: the
// first whose source or name mentions arrests, inmates, bookings or a
// search, else the first frame on the same host as the page, else the
// first frame. Report portals are often hosted by a vendor on another
// domain, so a foreign frame is still a candidate.
func SearchFrame(frames []Frame, pageURL string) (Frame, bool) {
	for _, f := range frames {
		if searchFrameHint.MatchString(f.Src) || searchFrameHint.MatchString(f.Name) {
			return f, true
		}
	}
	if base, err := url.Parse(pageURL); err == nil {
		for _, f := range frames {
			u, err := url.Parse(f.Src)
			if err == nil && strings.EqualFold(u.Hostname(), base.Hostname()) {
				return f, true
			}
		}
	}
	if len(frames) > 0 {
		return frames[0], true
	}
	return Frame{}, false
}

// resolveURL resolves href against base. Script, mail, telephone and data
// links, and bare fragments, resolve to "".
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" || href == "about:blank" {
		return ""
	}
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(strings.ToLower(href), scheme) {
			return ""
		}
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
