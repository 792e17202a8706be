// Package resolver turns a SKU into one final availability record. It
// drives the ordered cascade: structured API hosts first, then the
// rendered product page, and never returns an error. Whatever goes
// wrong ends up encoded in the record's note and status fields.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/jondjones-poc/cex-scan-app-sub000/internal/config"
	"github.com/jondjones-poc/cex-scan-app-sub000/internal/markup"
	"github.com/jondjones-poc/cex-scan-app-sub000/internal/models"
	"github.com/jondjones-poc/cex-scan-app-sub000/internal/stockapi"
	"github.com/jondjones-poc/cex-scan-app-sub000/internal/stores"
)

// BoxAPI fetches one structured item-detail record.
type BoxAPI interface {
	FetchBox(ctx context.Context, sku string) (stockapi.Box, int, []byte, error)
}

// Fetcher is the plain HTTP side used for fallback pages and probes.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, int, error)
	Post(ctx context.Context, url string, body []byte, contentType string) ([]byte, int, error)
}

// Renderer produces fully rendered page HTML. Optional; when nil the
// resolver falls back to plain fetches.
type Renderer interface {
	Render(ctx context.Context, url string) ([]byte, error)
}

// storeStockPaths are the known sibling endpoints of /detail that some
// API versions expose for per-store stock.
var storeStockPaths = []string{"neardeliverablestores", "storestock", "stores"}

const searchProbeCap = 20

type Resolver struct {
	cfg      *config.Config
	api      BoxAPI
	fetcher  Fetcher
	renderer Renderer
	log      *zap.Logger
}

func New(cfg *config.Config, api BoxAPI, fetcher Fetcher, renderer Renderer, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{cfg: cfg, api: api, fetcher: fetcher, renderer: renderer, log: log}
}

// Resolve produces the availability record for one SKU or product URL.
// It never returns an error and never panics; an item that cannot be
// resolved comes back with InStock=false and note "Unknown".
func (r *Resolver) Resolve(ctx context.Context, itemID string) (rec models.ItemRecord) {
	sku, canonical := r.identify(itemID)
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("resolve panicked", zap.String("item", itemID), zap.Any("panic", p))
			rec = unknownRecord(itemID, canonical)
		}
	}()

	box, status, raw, err := r.api.FetchBox(ctx, sku)
	if err != nil {
		r.log.Debug("structured api exhausted, trying page",
			zap.String("sku", sku), zap.Error(err))
		return r.resolveFromPage(ctx, itemID, canonical)
	}

	facts := stockapi.Classify(box)
	rec = models.NewItemRecord(itemID, canonical, facts.Quantity, facts.OutOfStock, facts.SellAllowed)
	rec.Name = facts.Name
	rec.Price = facts.Price
	rec.ImageURL = facts.ImageURL
	rec.SourceStatus = status
	rec.DebugPayload = raw

	if !rec.InStock {
		rec.SourceNote = "Out of stock"
		return rec
	}

	names, strategies := r.resolveStores(ctx, sku, canonical, box, facts.Name, rec.Quantity)
	rec.Stores = names
	rec.SourceNote = "In stock"
	if len(strategies) > 0 {
		rec.SourceNote = "In stock; stores via " + strings.Join(strategies, ", ")
	}
	return rec
}

// identify splits an incoming id into the SKU used against the API and
// the canonical product URL. Full URLs pass through as-is.
func (r *Resolver) identify(itemID string) (sku, canonical string) {
	if strings.HasPrefix(itemID, "http://") || strings.HasPrefix(itemID, "https://") {
		if id := skuFromURL(itemID); id != "" {
			return id, itemID
		}
		return itemID, itemID
	}
	return itemID, fmt.Sprintf(r.cfg.ProductPageTemplate, url.QueryEscape(itemID))
}

func skuFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("id")
}

// resolveStores runs the store-list cascade for an in-stock item and
// reports which strategies contributed, most reliable first.
func (r *Resolver) resolveStores(ctx context.Context, sku, canonical string, box stockapi.Box, name string, quantity int) ([]string, []string) {
	var names []string
	for _, v := range stockapi.StoreArrays(box) {
		names = append(names, stores.NamesFromValue(v)...)
	}
	if n := models.NormalizeStores(names); len(n) > 0 {
		return n, []string{"api-fields"}
	}

	if body := r.pageBody(ctx, canonical); len(body) > 0 {
		hits := stores.ExtractHits(string(body), r.lookup())
		if len(hits) > 0 {
			return hitNames(hits), stores.Strategies(hits)
		}
	}

	if n := r.storeEndpointProbe(ctx, sku); len(n) > 0 {
		return n, []string{"store-endpoints"}
	}

	if quantity > 0 && quantity <= searchProbeCap {
		if n := r.searchProbe(ctx, sku, name, quantity); len(n) > 0 {
			return n, []string{"search-probe"}
		}
	}
	return nil, nil
}

// storeEndpointProbe tries the sibling store-stock paths on each API
// host, GET first then POST with the box id, and walks whatever JSON
// comes back for store-keyed arrays.
func (r *Resolver) storeEndpointProbe(ctx context.Context, sku string) []string {
	for _, tmpl := range r.cfg.APIDetailTemplates {
		base := fmt.Sprintf(tmpl, sku)
		for _, path := range storeStockPaths {
			u := strings.Replace(base, "/detail", "/"+path, 1)
			if u == base {
				continue
			}
			body, _, err := r.fetcher.Get(ctx, u)
			if err != nil || len(body) == 0 {
				payload, _ := json.Marshal(map[string]string{"boxId": sku})
				body, _, err = r.fetcher.Post(ctx, u, payload, "application/json")
				if err != nil {
					continue
				}
			}
			var v interface{}
			if json.Unmarshal(body, &v) != nil {
				continue
			}
			if n := models.NormalizeStores(stores.NamesFromValue(v)); len(n) > 0 {
				r.log.Debug("store endpoint hit", zap.String("url", u), zap.Int("stores", len(n)))
				return n
			}
		}
	}
	return nil
}

// searchProbe checks the filtered search page of each configured store
// for the SKU or the item's display name, since result cards often show
// only the name. Only worth the requests when quantity is small enough
// that the stock plausibly sits in a handful of stores.
func (r *Resolver) searchProbe(ctx context.Context, sku, name string, quantity int) []string {
	group := r.cfg.GroupStores(r.cfg.DefaultStoreGroup)
	limit := quantity * 2
	if limit > searchProbeCap {
		limit = searchProbeCap
	}
	if limit > len(group) {
		limit = len(group)
	}

	needle := strings.ToLower(sku)
	fragment := strings.ToLower(strings.TrimSpace(name))
	var found []string
	for _, store := range group[:limit] {
		if ctx.Err() != nil {
			break
		}
		u := fmt.Sprintf(r.cfg.SearchPageTemplate, url.QueryEscape(sku), url.QueryEscape(store))
		body, _, err := r.fetcher.Get(ctx, u)
		if err != nil {
			continue
		}
		text := strings.ToLower(string(body))
		if strings.Contains(text, needle) || (fragment != "" && strings.Contains(text, fragment)) {
			found = append(found, store)
		}
	}
	return models.NormalizeStores(found)
}

// resolveFromPage is the markup fallback for when no structured
// endpoint accepted the SKU.
func (r *Resolver) resolveFromPage(ctx context.Context, itemID, canonical string) models.ItemRecord {
	body, status := r.pageBodyStatus(ctx, canonical)
	if len(body) == 0 {
		return unknownRecord(itemID, canonical)
	}

	verdict := markup.Classify(body, canonical)
	rec := models.NewHeuristicRecord(itemID, canonical, verdict.InStock)
	rec.SourceNote = verdict.Note
	rec.Price = verdict.Price
	rec.ImageURL = verdict.ImageURL
	rec.SourceStatus = status

	if verdict.InStock {
		hits := stores.ExtractHits(string(body), r.lookup())
		if len(hits) > 0 {
			rec.Stores = hitNames(hits)
			rec.SourceNote = verdict.Note + "; stores via " + strings.Join(stores.Strategies(hits), ", ")
		}
	}
	return rec
}

func (r *Resolver) pageBody(ctx context.Context, pageURL string) []byte {
	body, _ := r.pageBodyStatus(ctx, pageURL)
	return body
}

func (r *Resolver) pageBodyStatus(ctx context.Context, pageURL string) ([]byte, int) {
	if r.renderer != nil {
		if body, err := r.renderer.Render(ctx, pageURL); err == nil && len(body) > 0 {
			return body, 0
		}
	}
	body, status, err := r.fetcher.Get(ctx, pageURL)
	if err != nil {
		return nil, 0
	}
	return body, status
}

func (r *Resolver) lookup() stores.IDLookup {
	return r.cfg.StoreNameForID
}

func hitNames(hits []models.StoreHit) []string {
	names := make([]string, 0, len(hits))
	for _, h := range hits {
		names = append(names, h.Name)
	}
	return models.NormalizeStores(names)
}

func unknownRecord(itemID, canonical string) models.ItemRecord {
	rec := models.NewItemRecord(itemID, canonical, 0, false, false)
	rec.SourceNote = "Unknown"
	return rec
}
