// Package markup classifies raw product-page HTML when the structured
// API produced nothing usable. Everything here is heuristic: phrase
// matching over decoded text, a currency scan for a price, and the
// first image on the page.
package markup

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Result is the approximate verdict for one page.
type Result struct {
	InStock  bool
	Note     string
	Price    string
	ImageURL string
}

var inPhrases = []string{
	"in stock",
	"add to basket",
	"add to cart",
	"buy now",
	"available for delivery",
	"available to collect",
	"collect today",
}

var outPhrases = []string{
	"out of stock",
	"sold out",
	"currently unavailable",
	"currently out of stock",
	"not available",
	"no longer available",
	"email me when",
}

var priceRe = regexp.MustCompile(`£\s*([0-9]+(?:,[0-9]{3})*(?:\.[0-9]{1,2})?)`)

// priceSelectors are tried in order before falling back to a bare
// currency scan over the whole page text.
var priceSelectors = []string{
	`[itemprop="price"]`,
	`[class*="price"]`,
	`[id*="price"]`,
	`[class*="cost"]`,
	`[class*="amount"]`,
}

// Classify reads a rendered product page and guesses stock status,
// price and image. pageURL anchors relative image sources.
func Classify(body []byte, pageURL string) Result {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Result{Note: "Unknown"}
	}

	text := strings.ToLower(doc.Text())
	hasIn := containsAny(text, inPhrases)
	hasOut := containsAny(text, outPhrases)

	res := Result{InStock: hasIn && !hasOut}
	switch {
	case hasIn && !hasOut:
		res.Note = "In stock"
	case hasOut && !hasIn:
		res.Note = "Out of stock"
	case hasIn && hasOut:
		res.Note = "Possibly in stock"
	default:
		res.Note = "Unknown"
	}

	res.Price = findPrice(doc)
	res.ImageURL = findImage(doc, pageURL)
	return res
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func findPrice(doc *goquery.Document) string {
	for _, sel := range priceSelectors {
		price := ""
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if m := priceRe.FindStringSubmatch(s.Text()); m != nil {
				price = formatPrice(m[1])
				return false
			}
			return true
		})
		if price != "" {
			return price
		}
	}
	if m := priceRe.FindStringSubmatch(doc.Text()); m != nil {
		return formatPrice(m[1])
	}
	return ""
}

func formatPrice(raw string) string {
	raw = strings.ReplaceAll(raw, ",", "")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return ""
	}
	return fmt.Sprintf("£%.2f", v)
}

func findImage(doc *goquery.Document, pageURL string) string {
	src := ""
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range []string{"src", "data-src"} {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
				src = strings.TrimSpace(v)
				return false
			}
		}
		return true
	})
	if src == "" {
		return ""
	}
	return absoluteURL(pageURL, src)
}

func absoluteURL(base, ref string) string {
	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if refURL.IsAbs() {
		return refURL.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
