// Package listing extracts item candidates from rendered category and
// search pages and drives the paginated scan across categories.
package listing

import (
	"bytes"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jondjones-poc/cex-scan-app-sub000/internal/models"
)

// cardSelectors locate repeated item-card structures. Explicit product
// links first, then the usual class-name suspects.
var cardSelectors = []string{
	`a[href*="product-detail"]`,
	`div[class*="search-product"]`,
	`div[class*="product"]`,
	`div[class*="card"]`,
	`div[class*="item"]`,
	`div[class*="result"]`,
}

var nameSelectors = []string{
	`[class*="cardTitle"]`,
	`[class*="product-name"]`,
	`[class*="title"]`,
	"h1", "h2", "h3",
	`a[href*="product-detail"]`,
}

var (
	priceTextRe = regexp.MustCompile(`£\s*([0-9]+(?:,[0-9]{3})*(?:\.[0-9]{1,2})?)`)

	boxedRe    = regexp.MustCompile(`(?i)\bboxed\b|\bwith box\b|\bw/\s*box\b`)
	unboxedRe  = regexp.MustCompile(`(?i)\bunboxed\b|\bno box\b|\bconsole only\b|\bcart(ridge)? only\b|\bdisc only\b`)
	manualRe   = regexp.MustCompile(`(?i)\bwith manual\b|\bw/\s*manual\b|\bmanual included\b|\+\s*manual\b`)
	noManualRe = regexp.MustCompile(`(?i)\bno manual\b|\bwithout manual\b|\bmissing manual\b`)

	// Names matching these are navigation chrome or cookie banners, not
	// products.
	nonProductRe = regexp.MustCompile(`(?i)^(sign in|log ?in|register|basket|checkout|cookies?|filter|sort by|view( all)?|next|previous|menu|search)\b`)
)

// ExtractOptions tune candidate rejection. ShowAll relaxes the name
// checks for debugging a page whose markup defeats the defaults.
type ExtractOptions struct {
	BaseURL string
	ShowAll bool
}

// ExtractPage pulls item candidates out of one rendered page.
func ExtractPage(body []byte, opts ExtractOptions) models.ListingPage {
	var page models.ListingPage

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return page
	}

	for _, selector := range cardSelectors {
		cards := doc.Find(selector)
		if cards.Length() == 0 {
			continue
		}
		cards.Each(func(_ int, card *goquery.Selection) {
			if item, ok := extractCard(card, opts); ok {
				page.Items = append(page.Items, item)
			}
		})
		if len(page.Items) > 0 {
			break
		}
	}

	page.HasNextPage = len(page.Items) > 0 && hasNextControl(doc)
	return page
}

func extractCard(card *goquery.Selection, opts ExtractOptions) (models.ListingItem, bool) {
	text := strings.TrimSpace(card.Text())

	name := ""
	for _, sel := range nameSelectors {
		if name = strings.TrimSpace(card.Find(sel).First().Text()); name != "" {
			break
		}
	}
	if name == "" {
		name = firstLine(text)
	}
	if !validName(name, opts.ShowAll) {
		return models.ListingItem{}, false
	}

	item := models.ListingItem{
		RawName:       name,
		URL:           cardURL(card, opts.BaseURL),
		Price:         cardPrice(card, text),
		ImageURL:      cardImage(card, opts.BaseURL),
		ContainerText: text,
		Flags:         conditionFlags(text),
	}
	return item, true
}

// validName rejects markup noise and navigation chrome. ShowAll keeps
// everything that is not outright markup.
func validName(name string, showAll bool) bool {
	if strings.ContainsAny(name, "<>") {
		return false
	}
	if showAll {
		return name != ""
	}
	if len(name) < 3 || len(name) > 300 {
		return false
	}
	if mostlyNumeric(name) {
		return false
	}
	if nonProductRe.MatchString(name) {
		return false
	}
	return true
}

func mostlyNumeric(s string) bool {
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits*2 > len(s)
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func cardURL(card *goquery.Selection, base string) string {
	href, ok := card.Attr("href")
	if !ok {
		card.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if h, exists := a.Attr("href"); exists && strings.Contains(h, "product-detail") {
				href = h
				return false
			}
			return true
		})
		if href == "" {
			href, _ = card.Find("a[href]").First().Attr("href")
		}
	}
	return normalizeURL(href, base)
}

func cardPrice(card *goquery.Selection, cardText string) string {
	priceText := strings.TrimSpace(card.Find(`[class*="price"], [class*="cost"], [data-price]`).First().Text())
	if m := priceTextRe.FindStringSubmatch(priceText); m != nil {
		return formatPrice(m[1])
	}
	if m := priceTextRe.FindStringSubmatch(cardText); m != nil {
		return formatPrice(m[1])
	}
	return ""
}

func formatPrice(raw string) string {
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return ""
	}
	return "£" + strconv.FormatFloat(v, 'f', 2, 64)
}

// PriceValue parses a formatted price back to its numeric value for
// filter comparisons. Returns false when the item carries no price.
func PriceValue(price string) (float64, bool) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(price), "£")
	if trimmed == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(trimmed, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func cardImage(card *goquery.Selection, base string) string {
	img := card.Find("img").First()
	for _, attr := range []string{"src", "data-src"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return normalizeURL(strings.TrimSpace(v), base)
		}
	}
	return ""
}

func conditionFlags(text string) models.ConditionFlags {
	unboxed := unboxedRe.MatchString(text)
	return models.ConditionFlags{
		HasManual:   manualRe.MatchString(text),
		IsBoxed:     boxedRe.MatchString(text) && !unboxed,
		IsUnboxed:   unboxed,
		HasNoManual: noManualRe.MatchString(text),
	}
}

func hasNextControl(doc *goquery.Document) bool {
	if doc.Find(`a[rel="next"], li[class*="next"] a, a[aria-label*="ext"]`).Length() > 0 {
		return true
	}
	found := false
	doc.Find(`[class*="pagination"] a, [class*="pager"] a`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(a.Text()), "next") {
			found = true
			return false
		}
		return true
	})
	return found
}

func normalizeURL(href, base string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}
