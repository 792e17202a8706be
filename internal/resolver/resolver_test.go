package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jondjones-poc/cex-scan-app-sub000/internal/config"
	"github.com/jondjones-poc/cex-scan-app-sub000/internal/fetch"
	"github.com/jondjones-poc/cex-scan-app-sub000/internal/stockapi"
)

type stubAPI struct {
	box     stockapi.Box
	status  int
	raw     []byte
	err     error
	panics  bool
	lastSKU string
}

func (s *stubAPI) FetchBox(_ context.Context, sku string) (stockapi.Box, int, []byte, error) {
	s.lastSKU = sku
	if s.panics {
		panic("upstream schema surprise")
	}
	if s.err != nil {
		return nil, s.status, nil, s.err
	}
	return s.box, s.status, s.raw, nil
}

type stubFetcher struct {
	get      map[string]string
	post     map[string]string
	getCalls []string
}

func (f *stubFetcher) Get(_ context.Context, url string) ([]byte, int, error) {
	f.getCalls = append(f.getCalls, url)
	if body, ok := f.get[url]; ok {
		return []byte(body), 200, nil
	}
	return nil, 0, fetch.ErrTransient
}

func (f *stubFetcher) Post(_ context.Context, url string, _ []byte, _ string) ([]byte, int, error) {
	if body, ok := f.post[url]; ok {
		return []byte(body), 200, nil
	}
	return nil, 0, fetch.ErrTransient
}

func testConfig() *config.Config {
	return &config.Config{
		APIDetailTemplates: []string{
			"https://api-a.example/v3/boxes/%s/detail",
			"https://api-b.example/v3/boxes/%s/detail",
		},
		ProductPageTemplate: "https://shop.example/product-detail?id=%s",
		SearchPageTemplate:  "https://shop.example/search?stext=%s&stores=%s",
		StoreGroups: map[string][]string{
			"south-coast": {"Bournemouth", "Poole", "Southampton", "Portsmouth"},
		},
		DefaultStoreGroup: "south-coast",
		StoreNamesByID:    map[string]string{"121": "Poole", "118": "Bournemouth - Castlepoint"},
		Workers:           2,
	}
}

func newTestResolver(api *stubAPI, fetcher *stubFetcher) *Resolver {
	return New(testConfig(), api, fetcher, nil, zap.NewNop())
}

func TestResolveStructuredInStock(t *testing.T) {
	api := &stubAPI{
		box: stockapi.Box{
			"boxName":           "Sonic Mania",
			"ecomQuantityOnHand": float64(5),
			"outOfEcomStock":    float64(0),
			"webSellAllowed":    true,
			"sellPrice":         float64(15),
			"storeStock": []interface{}{
				map[string]interface{}{"storeName": "Poole"},
				map[string]interface{}{"storeName": "Bournemouth"},
			},
		},
		status: 200,
		raw:    []byte(`{"boxDetails":[{}]}`),
	}
	fetcher := &stubFetcher{}
	r := newTestResolver(api, fetcher)

	rec := r.Resolve(context.Background(), "SEGA123")

	assert.Equal(t, "SEGA123", api.lastSKU)
	assert.True(t, rec.InStock)
	assert.Equal(t, 5, rec.Quantity)
	assert.Equal(t, "Sonic Mania", rec.Name)
	assert.Equal(t, "£15.00", rec.Price)
	assert.Equal(t, 200, rec.SourceStatus)
	assert.Equal(t, "https://shop.example/product-detail?id=SEGA123", rec.CanonicalURL)
	assert.Equal(t, []string{"Bournemouth", "Poole"}, rec.Stores)
	assert.Equal(t, "In stock; stores via api-fields", rec.SourceNote)
	assert.Empty(t, fetcher.getCalls, "store list came from the record, no extra fetches")
}

func TestResolveStructuredOutOfStock(t *testing.T) {
	api := &stubAPI{
		box: stockapi.Box{
			"ecomQuantityOnHand": float64(0),
			"outOfEcomStock":    float64(1),
		},
		status: 200,
	}
	fetcher := &stubFetcher{}
	r := newTestResolver(api, fetcher)

	rec := r.Resolve(context.Background(), "SEGA123")

	assert.False(t, rec.InStock)
	assert.Equal(t, "Out of stock", rec.SourceNote)
	assert.Empty(t, rec.Stores)
	assert.Empty(t, fetcher.getCalls, "out-of-stock items skip store resolution")
}

func TestResolveAllSourcesFailYieldsUnknown(t *testing.T) {
	api := &stubAPI{err: fetch.ErrTransient}
	fetcher := &stubFetcher{}
	r := newTestResolver(api, fetcher)

	rec := r.Resolve(context.Background(), "GHOST1")

	assert.False(t, rec.InStock)
	assert.Equal(t, "Unknown", rec.SourceNote)
	assert.Zero(t, rec.SourceStatus)
}

func TestResolveMarkupFallback(t *testing.T) {
	api := &stubAPI{err: fetch.ErrTransient}
	page := `<html><body>
		<h1>Mega Drive II Console</h1>
		<p>In Stock - Add to Basket</p>
		<div class="product-price">£45.00</div>
		<span data-store-name="Poole"></span>
	</body></html>`
	fetcher := &stubFetcher{get: map[string]string{
		"https://shop.example/product-detail?id=CON456": page,
	}}
	r := newTestResolver(api, fetcher)

	rec := r.Resolve(context.Background(), "CON456")

	assert.True(t, rec.InStock)
	assert.Equal(t, "£45.00", rec.Price)
	assert.Equal(t, []string{"Poole"}, rec.Stores)
	assert.Equal(t, "In stock; stores via attributes", rec.SourceNote)
	assert.Equal(t, 200, rec.SourceStatus)
}

func TestResolvePassThroughURL(t *testing.T) {
	api := &stubAPI{
		box:    stockapi.Box{"ecomQuantityOnHand": float64(0), "outOfEcomStock": float64(1)},
		status: 200,
	}
	r := newTestResolver(api, &stubFetcher{})

	itemURL := "https://shop.example/product-detail?id=SGAMEG789&st=1"
	rec := r.Resolve(context.Background(), itemURL)

	assert.Equal(t, "SGAMEG789", api.lastSKU)
	assert.Equal(t, itemURL, rec.CanonicalURL)
	assert.Equal(t, itemURL, rec.ItemID)
}

func TestResolveStoreEndpointProbe(t *testing.T) {
	api := &stubAPI{
		box:    stockapi.Box{"ecomQuantityOnHand": float64(30), "outOfEcomStock": float64(0)},
		status: 200,
	}
	fetcher := &stubFetcher{get: map[string]string{
		"https://api-a.example/v3/boxes/BOX1/neardeliverablestores": `{"nearestStores":[{"storeName":"Bath"},{"storeName":"Bristol"}]}`,
	}}
	r := newTestResolver(api, fetcher)

	rec := r.Resolve(context.Background(), "BOX1")

	assert.True(t, rec.InStock)
	assert.Equal(t, []string{"Bath", "Bristol"}, rec.Stores)
	assert.Equal(t, "In stock; stores via store-endpoints", rec.SourceNote)
}

func TestResolveSearchProbeBoundedByQuantity(t *testing.T) {
	api := &stubAPI{
		box:    stockapi.Box{"ecomQuantityOnHand": float64(1), "outOfEcomStock": float64(0)},
		status: 200,
	}
	// quantity 1 bounds the probe to the first two configured stores.
	fetcher := &stubFetcher{get: map[string]string{
		"https://shop.example/search?stext=BOX2&stores=Poole": `<html><body>box2 listed here</body></html>`,
	}}
	r := newTestResolver(api, fetcher)

	rec := r.Resolve(context.Background(), "BOX2")

	assert.Equal(t, []string{"Poole"}, rec.Stores)
	assert.Equal(t, "In stock; stores via search-probe", rec.SourceNote)
	for _, call := range fetcher.getCalls {
		assert.NotContains(t, call, "stores=Southampton", "probe must stay within min(20, quantity*2) stores")
	}
}

func TestResolveSearchProbeMatchesByName(t *testing.T) {
	api := &stubAPI{
		box: stockapi.Box{
			"boxName":            "Sonic Mania",
			"ecomQuantityOnHand": float64(1),
			"outOfEcomStock":     float64(0),
		},
		status: 200,
	}
	// The result card shows the display name only, never the SKU.
	fetcher := &stubFetcher{get: map[string]string{
		"https://shop.example/search?stext=BOX9&stores=Poole": `<html><body><div class="cardTitle">Sonic Mania</div></body></html>`,
	}}
	r := newTestResolver(api, fetcher)

	rec := r.Resolve(context.Background(), "BOX9")

	assert.Equal(t, []string{"Poole"}, rec.Stores)
	assert.Equal(t, "In stock; stores via search-probe", rec.SourceNote)
}

func TestResolveRecoversFromPanic(t *testing.T) {
	api := &stubAPI{panics: true}
	r := newTestResolver(api, &stubFetcher{})

	require.NotPanics(t, func() {
		rec := r.Resolve(context.Background(), "BOOM1")
		assert.False(t, rec.InStock)
		assert.Equal(t, "Unknown", rec.SourceNote)
	})
}

func TestResolveAllKeepsInputOrder(t *testing.T) {
	api := &stubAPI{
		box:    stockapi.Box{"ecomQuantityOnHand": float64(0), "outOfEcomStock": float64(1)},
		status: 200,
	}
	r := newTestResolver(api, &stubFetcher{})

	ids := []string{"AAA", "BBB", "CCC"}
	records := r.ResolveAll(context.Background(), ids)

	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, ids[i], rec.ItemID)
	}
}

func TestResolveAllCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	api := &stubAPI{err: fetch.ErrTransient}
	r := newTestResolver(api, &stubFetcher{})

	records := r.ResolveAll(ctx, []string{"AAA", "BBB"})

	require.Len(t, records, 2)
	for _, rec := range records {
		assert.False(t, rec.InStock)
		assert.Equal(t, "Unknown", rec.SourceNote)
	}
}
