package browser

import (
	"encoding/json"
	"fmt"

	"github.com/nao1215/arrestscan/internal/config"
)

// findFn is a JavaScript function returning the elements matching a hint.
// Text matching uses the rendered text for ordinary elements and the value
// for inputs, lowercased on both sides.
const findFn = `function(css, text) {
	let els;
	try { els = Array.from(document.querySelectorAll(css)); } catch (e) { return []; }
	if (!text) return els;
	const needle = text.toLowerCase();
	return els.filter(el => String(el.innerText || el.value || el.textContent || '').toLowerCase().includes(needle));
}`

// enabledFn reports whether an element can be interacted with.
const enabledFn = `function(el) {
	if (!el) return false;
	if (el.disabled) return false;
	if (el.getAttribute('aria-disabled') === 'true') return false;
	if (el.classList && el.classList.contains('disabled')) return false;
	const li = el.closest && el.closest('li');
	if (li && li.classList.contains('disabled')) return false;
	return true;
}`

// jsArgs encodes values as JavaScript literals. JSON is a subset of
// JavaScript for the strings and numbers used here.
func jsArgs(values ...any) string {
	out := ""
	for i, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			b = []byte("null")
		}
		if i > 0 {
			out += ", "
		}
		out += string(b)
	}
	return out
}

// withMatches wraps body in an IIFE where els holds the elements matching h.
func withMatches(h config.Hint, body string) string {
	return fmt.Sprintf(`(() => {
	const find = %s;
	const enabled = %s;
	const els = find(%s);
	%s
})()`, findFn, enabledFn, jsArgs(h.CSS, h.Text), body)
}

func countScript(h config.Hint) string {
	return withMatches(h, `return els.length;`)
}

func setValueScript(h config.Hint, index int, value string, onlyIfEmpty bool) string {
	return withMatches(h, fmt.Sprintf(`const [idx, v, onlyIfEmpty] = [%s];
	const el = els[idx];
	if (!el) return false;
	if (onlyIfEmpty && el.value) return false;
	el.focus && el.focus();
	const proto = Object.getPrototypeOf(el);
	const desc = Object.getOwnPropertyDescriptor(proto, 'value');
	if (desc && desc.set) { desc.set.call(el, v); } else { el.value = v; }
	el.dispatchEvent(new Event('input', {bubbles: true}));
	el.dispatchEvent(new Event('change', {bubbles: true}));
	return true;`, jsArgs(index, value, onlyIfEmpty)))
}

func valueScript(h config.Hint, index int) string {
	return withMatches(h, fmt.Sprintf(`const el = els[%d];
	return el ? String(el.value || '') : '';`, index))
}

func clickScript(h config.Hint) string {
	return withMatches(h, `const el = els.find(enabled);
	if (!el) return false;
	el.scrollIntoView && el.scrollIntoView({block: 'center'});
	el.click();
	return true;`)
}

func focusScript(h config.Hint) string {
	return withMatches(h, `const el = els[0];
	if (!el) return false;
	el.focus && el.focus();
	return document.activeElement === el;`)
}

func enabledScript(h config.Hint) string {
	return withMatches(h, `return enabled(els[0]);`)
}

// attrResult carries an attribute value with an explicit presence flag so
// a missing attribute never surfaces as a JavaScript null.
type attrResult struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}

func attrScript(h config.Hint, name string) string {
	return withMatches(h, fmt.Sprintf(`const el = els[0];
	if (!el || !el.hasAttribute(%[1]s)) return {found: false, value: ''};
	return {found: true, value: String(el.getAttribute(%[1]s))};`, jsArgs(name)))
}

const htmlScript = `document.documentElement ? document.documentElement.outerHTML : ''`

const readyScript = `document.readyState === 'complete' || document.readyState === 'interactive'`
