// Package stores extracts store-availability names from whatever the
// retailer hands back: structured JSON, rendered markup, or a mix of both
// embedded in script tags. No single strategy is reliable, so an ordered
// cascade of independent heuristics runs over the body and the union of
// their results is returned, deduplicated and sorted. Each hit carries the
// strategy that produced it; the later strategies are approximate and
// callers may want to know when nothing better fired.
package stores

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jondjones-poc/cex-scan-app-sub000/internal/models"
)

// Strategy names recorded on hits, in cascade order.
const (
	StrategyKeyedArray = "keyed-array"
	StrategyAttributes = "attributes"
	StrategyTrigger    = "trigger-text"
	StrategyElements   = "elements"
	StrategyStateWalk  = "state-walk"
	StrategyIDLookup   = "id-lookup"
	StrategyTextScan   = "text-scan"
)

// IDLookup translates an opaque store id to a display name.
type IDLookup func(id string) (string, bool)

var storeArrayKeys = []string{"storeStock", "storeAvailability", "stores", "availableStores"}

var triggerPhrases = []string{
	"available",
	"in stock",
	"collect from",
	"pick up from",
	"check store stock",
}

var uiKeywords = map[string]struct{}{
	"click": {}, "here": {}, "more": {}, "view": {}, "all": {},
	"login": {}, "register": {}, "basket": {}, "checkout": {}, "menu": {},
	"search": {}, "next": {}, "previous": {}, "select": {}, "delivery": {},
	"home": {}, "help": {}, "stores": {}, "store": {},
}

// textScanStopWords are generic capitalized phrases the last-resort scan
// must never report as store names.
var textScanStopWords = []string{
	"Add To", "Sign In", "Free Delivery", "Out Of", "In Stock",
	"Sell My", "Gift Card", "Why Not", "Best Seller", "New Arrivals",
	"Click Collect", "Terms And", "Privacy Policy", "Track My",
}

const (
	triggerWindow = 160
	maxNameLen    = 40
	minNameLen    = 3
)

// Extract runs the full cascade and returns the union of store names,
// deduplicated and sorted. It is a pure function of its inputs and never
// fails: a strategy that cannot parse the body contributes nothing.
func Extract(body string, lookup IDLookup) []string {
	hits := ExtractHits(body, lookup)
	names := make([]string, 0, len(hits))
	for _, h := range hits {
		names = append(names, h.Name)
	}
	return models.NormalizeStores(names)
}

// ExtractHits is Extract with strategy provenance preserved. Hits are
// deduplicated by name (first strategy to find a name wins) and sorted.
func ExtractHits(body string, lookup IDLookup) []models.StoreHit {
	var hits []models.StoreHit
	add := func(strategy string, names []string) {
		for _, n := range names {
			hits = append(hits, models.StoreHit{Name: n, Strategy: strategy})
		}
	}

	add(StrategyKeyedArray, fromKeyedArrays(body))

	names, ids := fromAttributes(body)
	add(StrategyAttributes, names)

	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(body))
	var plainText string
	if docErr == nil {
		plainText = doc.Text()
		add(StrategyTrigger, fromTriggerText(plainText))
		add(StrategyElements, fromElements(doc))
	}

	add(StrategyStateWalk, fromEmbeddedState(body))

	// Ids only step in when no strategy above produced a name.
	if len(hits) == 0 && len(ids) > 0 && lookup != nil {
		var mapped []string
		for _, id := range ids {
			if name, ok := lookup(id); ok {
				mapped = append(mapped, name)
			}
		}
		add(StrategyIDLookup, mapped)
	}

	// Last resort, explicitly approximate.
	if len(hits) == 0 && plainText != "" {
		add(StrategyTextScan, fromPlainText(plainText))
	}

	return dedupeHits(hits)
}

func dedupeHits(hits []models.StoreHit) []models.StoreHit {
	byName := make(map[string]string, len(hits))
	for _, h := range hits {
		if _, ok := byName[h.Name]; !ok {
			byName[h.Name] = h.Strategy
		}
	}
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	names = models.NormalizeStores(names)
	out := make([]models.StoreHit, 0, len(names))
	for _, n := range names {
		out = append(out, models.StoreHit{Name: n, Strategy: byName[n]})
	}
	return out
}

// Strategies reports which strategies contributed to a hit set, in cascade
// order, for source-note diagnostics.
func Strategies(hits []models.StoreHit) []string {
	order := []string{
		StrategyKeyedArray, StrategyAttributes, StrategyTrigger,
		StrategyElements, StrategyStateWalk, StrategyIDLookup, StrategyTextScan,
	}
	present := make(map[string]bool, len(hits))
	for _, h := range hits {
		present[h.Strategy] = true
	}
	var out []string
	for _, s := range order {
		if present[s] {
			out = append(out, s)
		}
	}
	return out
}

// ───── strategy a: JSON array literals after known keys ─────

func fromKeyedArrays(body string) []string {
	var out []string
	for _, key := range storeArrayKeys {
		re := regexp.MustCompile(`"?` + key + `"?\s*:\s*\[`)
		for _, loc := range re.FindAllStringIndex(body, -1) {
			open := loc[1] - 1
			seg, ok := balancedSlice(body, open, '[', ']')
			if !ok {
				continue
			}
			var arr []interface{}
			if err := json.Unmarshal([]byte(seg), &arr); err != nil {
				continue
			}
			out = append(out, NamesFromValue(arr)...)
		}
	}
	return out
}

// balancedSlice returns body[open..matching close], tracking strings so
// brackets inside quoted values do not end the scan early.
func balancedSlice(body string, open int, openCh, closeCh byte) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(body); i++ {
		c := body[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return body[open : i+1], true
			}
		}
	}
	return "", false
}

// ───── strategy b: data attributes ─────

func fromAttributes(body string) (names, ids []string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, nil
	}
	doc.Find("[data-store-name]").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("data-store-name"); ok && plausibleName(v) {
			names = append(names, strings.TrimSpace(v))
		}
	})
	doc.Find("[data-store-id]").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("data-store-id"); ok && strings.TrimSpace(v) != "" {
			ids = append(ids, strings.TrimSpace(v))
		}
	})
	return names, ids
}

// ───── strategy c: text windows after trigger phrases ─────

func fromTriggerText(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, phrase := range triggerPhrases {
		from := 0
		for {
			i := strings.Index(lower[from:], phrase)
			if i < 0 {
				break
			}
			start := from + i + len(phrase)
			end := start + triggerWindow
			if end > len(text) {
				end = len(text)
			}
			for _, tok := range strings.FieldsFunc(text[start:end], func(r rune) bool {
				return r == ',' || r == ';' || r == '|' || r == '\n'
			}) {
				if name := cleanToken(tok); name != "" {
					out = append(out, name)
				}
			}
			from = start
		}
	}
	return out
}

func cleanToken(tok string) string {
	// Keep the leading run of capitalized words; trailing prose like
	// "Salisbury today" truncates to the name itself.
	var kept []string
	for _, f := range strings.Fields(tok) {
		c := f[0]
		leading := len(kept) == 0
		if f == "-" || (c >= 'A' && c <= 'Z') || (!leading && c >= '0' && c <= '9') {
			kept = append(kept, f)
			continue
		}
		break
	}
	tok = strings.Join(kept, " ")
	if len(tok) < minNameLen || len(tok) > maxNameLen {
		return ""
	}
	if !capitalizedShape(tok) {
		return ""
	}
	if isUIKeyword(tok) || numericOnly(tok) {
		return ""
	}
	return tok
}

// ───── strategy d: list items and dropdown options ─────

func fromElements(doc *goquery.Document) []string {
	var out []string
	doc.Find("li, option").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if len(text) < minNameLen || len(text) > maxNameLen {
			return
		}
		if !capitalizedShape(text) || isUIKeyword(text) {
			return
		}
		out = append(out, text)
	})
	return out
}

// ───── strategy e: embedded script state objects ─────

var stateAssignRe = regexp.MustCompile(`window\.[A-Za-z_$][\w$.]*\s*=\s*\{`)

func fromEmbeddedState(body string) []string {
	var out []string
	walk := func(seg string) {
		var v interface{}
		if err := json.Unmarshal([]byte(seg), &v); err != nil {
			return
		}
		out = append(out, namesFromStoreKeys(v, 0)...)
	}

	for _, loc := range stateAssignRe.FindAllStringIndex(body, -1) {
		if seg, ok := balancedSlice(body, loc[1]-1, '{', '}'); ok {
			walk(seg)
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err == nil {
		doc.Find(`script[type="application/json"]`).Each(func(_ int, s *goquery.Selection) {
			walk(strings.TrimSpace(s.Text()))
		})
	}
	return out
}

// ───── strategy g: capitalized tokens in plain text ─────

var capitalTokenRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:[ '\-]+[A-Z][a-z]+)+\b`)

func fromPlainText(text string) []string {
	var out []string
	for _, tok := range capitalTokenRe.FindAllString(text, -1) {
		if len(tok) < minNameLen || len(tok) > 30 {
			continue
		}
		if isStopPhrase(tok) || isUIKeyword(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func isStopPhrase(tok string) bool {
	for _, stop := range textScanStopWords {
		if strings.Contains(tok, stop) {
			return true
		}
	}
	return false
}

// ───── shared shape checks ─────

var capitalizedRe = regexp.MustCompile(`^[A-Z][A-Za-z'&.]*(?:[ \-]+[A-Za-z'&.0-9]+)*$`)

func capitalizedShape(s string) bool {
	return capitalizedRe.MatchString(s)
}

func isUIKeyword(s string) bool {
	for _, word := range strings.Fields(strings.ToLower(s)) {
		if _, ok := uiKeywords[word]; !ok {
			return false
		}
	}
	return true
}

func numericOnly(s string) bool {
	hasLetter := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			hasLetter = true
		}
	}
	return !hasLetter
}

func plausibleName(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) >= minNameLen && len(s) <= maxNameLen && !numericOnly(s)
}
