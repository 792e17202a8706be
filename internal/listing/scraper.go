package listing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/jondjones-poc/cex-scan-app-sub000/internal/cascade"
	"github.com/jondjones-poc/cex-scan-app-sub000/internal/config"
	"github.com/jondjones-poc/cex-scan-app-sub000/internal/fetch"
	"github.com/jondjones-poc/cex-scan-app-sub000/internal/models"
)

// Renderer renders a category page in a real browser. Optional; when
// nil the scraper fetches pages statically.
type Renderer interface {
	Render(ctx context.Context, url string) ([]byte, error)
}

// Scraper walks paginated category views, applies the business
// filters, and returns a deduplicated sorted item list. Pages inside a
// category go sequentially with an inter-request delay; that pacing is
// deliberate and must stay.
type Scraper struct {
	cfg    *config.Config
	log    *zap.Logger
	runner cascade.Runner

	// fetchPage is swappable for tests.
	fetchPage func(ctx context.Context, pageURL string) ([]byte, error)
}

func NewScraper(cfg *config.Config, renderer Renderer, log *zap.Logger) *Scraper {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scraper{
		cfg: cfg,
		log: log,
		runner: cascade.Runner{
			AttemptsPerSource: 2,
			BackoffStep:       200 * time.Millisecond,
			Permanent: func(err error) bool {
				return errors.Is(err, fetch.ErrUpstreamErrorPage) ||
					errors.Is(err, fetch.ErrMalformedPayload)
			},
		},
	}
	if renderer != nil {
		s.fetchPage = func(ctx context.Context, pageURL string) ([]byte, error) {
			return renderer.Render(ctx, pageURL)
		}
	} else {
		s.fetchPage = s.staticFetch
	}
	return s
}

// Scan walks every category id, politely, and returns the merged,
// filtered, deduplicated, sorted result. A category that fails outright
// is logged and skipped; its siblings still run.
func (s *Scraper) Scan(ctx context.Context, categoryIDs []string) []models.ListingItem {
	stores := s.cfg.GroupStores(s.cfg.DefaultStoreGroup)

	var all []models.ListingItem
	for i, categoryID := range categoryIDs {
		if ctx.Err() != nil {
			s.log.Warn("scan abandoned", zap.String("category", categoryID))
			break
		}
		if i > 0 && !sleepCtx(ctx, s.cfg.CategoryDelay) {
			break
		}

		items, err := s.ScanCategory(ctx, models.CategoryQuery{
			CategoryID: categoryID,
			Stores:     stores,
			Page:       1,
		})
		if err != nil {
			s.log.Warn("category scan failed",
				zap.String("category", categoryID),
				zap.String("name", s.cfg.CategoryNames[categoryID]),
				zap.Error(err))
			continue
		}
		s.log.Info("category scanned",
			zap.String("category", categoryID),
			zap.String("name", s.cfg.CategoryNames[categoryID]),
			zap.Int("items", len(items)))
		all = append(all, items...)
	}

	return Finalize(s.Filter(all))
}

// ScanCategory pages through one category starting at query.Page until
// the page cap, an empty page, or a missing next-page control.
func (s *Scraper) ScanCategory(ctx context.Context, query models.CategoryQuery) ([]models.ListingItem, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}

	var items []models.ListingItem
	for fetched := 0; fetched < s.cfg.MaxPages; fetched++ {
		if ctx.Err() != nil {
			return items, ctx.Err()
		}
		if fetched > 0 && !sleepCtx(ctx, s.cfg.PageDelay) {
			return items, ctx.Err()
		}

		query.Page = page
		result, err := s.fetchListingPage(ctx, query)
		if err != nil {
			if len(items) > 0 {
				// Later pages failing does not invalidate what we have.
				s.log.Debug("pagination stopped early",
					zap.String("category", query.CategoryID),
					zap.Int("page", page), zap.Error(err))
				return items, nil
			}
			return nil, err
		}

		items = append(items, result.Items...)
		if !result.HasNextPage {
			break
		}
		page++
	}
	return items, nil
}

// fetchListingPage tries each URL variant of the page through the shared
// retry/fallback runner and extracts the first variant that yields cards.
func (s *Scraper) fetchListingPage(ctx context.Context, query models.CategoryQuery) (models.ListingPage, error) {
	variants := s.pageURLVariants(query)

	var result models.ListingPage
	err := s.runner.Run(ctx, len(variants), func(ctx context.Context, source int) error {
		body, ferr := s.fetchPage(ctx, variants[source])
		if ferr != nil {
			return ferr
		}
		extracted := ExtractPage(body, ExtractOptions{
			BaseURL: variants[source],
			ShowAll: s.cfg.ShowAll,
		})
		if len(extracted.Items) == 0 {
			return fmt.Errorf("%w: no item cards", fetch.ErrMalformedPayload)
		}
		result = extracted
		return nil
	})
	if err != nil {
		return models.ListingPage{}, err
	}
	return result, nil
}

// pageURLVariants builds the store-scoped page URL plus an unscoped
// fallback; some category views reject long store selectors.
func (s *Scraper) pageURLVariants(query models.CategoryQuery) []string {
	scoped := fmt.Sprintf(s.cfg.CategoryPageTemplate,
		query.CategoryID,
		url.QueryEscape(strings.Join(query.Stores, s.cfg.StoreSeparator)),
		query.Page)
	bare := fmt.Sprintf(s.cfg.CategoryPageTemplate, query.CategoryID, "", query.Page)
	if scoped == bare {
		return []string{scoped}
	}
	return []string{scoped, bare}
}

// Filter applies the configured business filters. ShowAll bypasses
// everything.
func (s *Scraper) Filter(items []models.ListingItem) []models.ListingItem {
	if s.cfg.ShowAll {
		return items
	}

	out := items[:0:0]
	for _, item := range items {
		if s.cfg.BoxedOnly && (!item.Flags.IsBoxed || item.Flags.IsUnboxed) {
			continue
		}
		if s.cfg.NeedsManual && (!item.Flags.HasManual || item.Flags.HasNoManual) {
			continue
		}
		if s.cfg.MinPrice > 0 || s.cfg.MaxPrice > 0 {
			v, ok := PriceValue(item.Price)
			if !ok {
				continue
			}
			if s.cfg.MinPrice > 0 && v < s.cfg.MinPrice {
				continue
			}
			if s.cfg.MaxPrice > 0 && v > s.cfg.MaxPrice {
				continue
			}
		}
		out = append(out, item)
	}
	return out
}

// Finalize deduplicates by item id, first occurrence wins, and sorts by
// name then id for a stable report.
func Finalize(items []models.ListingItem) []models.ListingItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]models.ListingItem, 0, len(items))
	for _, item := range items {
		id := item.ItemID()
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RawName != out[j].RawName {
			return out[i].RawName < out[j].RawName
		}
		return out[i].ItemID() < out[j].ItemID()
	})
	return out
}

// staticFetch grabs one page without a browser, through colly with the
// scraper's browser-like identity.
func (s *Scraper) staticFetch(ctx context.Context, pageURL string) ([]byte, error) {
	c := colly.NewCollector(
		colly.UserAgent(s.cfg.UserAgent),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(s.cfg.FetchTimeout)

	var body []byte
	var visitErr error
	c.OnRequest(func(r *colly.Request) {
		if s.cfg.Referer != "" {
			r.Headers.Set("Referer", s.cfg.Referer)
		}
	})
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(_ *colly.Response, err error) {
		visitErr = err
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("%w: %v", fetch.ErrTransient, err)
	}
	c.Wait()

	if visitErr != nil {
		return nil, fmt.Errorf("%w: %v", fetch.ErrTransient, visitErr)
	}
	if s.cfg.ErrorPageMarker != "" &&
		strings.Contains(strings.ToLower(string(body)), s.cfg.ErrorPageMarker) {
		return nil, fmt.Errorf("%w: %s", fetch.ErrUpstreamErrorPage, pageURL)
	}
	return body, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
