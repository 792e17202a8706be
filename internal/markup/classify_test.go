package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyInStock(t *testing.T) {
	body := []byte(`<html><body><h1>Sonic Mania</h1><p>In Stock - Add to Basket</p></body></html>`)

	res := Classify(body, "https://uk.webuy.com/product-detail?id=ABC123")

	assert.True(t, res.InStock)
	assert.Equal(t, "In stock", res.Note)
}

func TestClassifyOutOfStock(t *testing.T) {
	body := []byte(`<html><body><p>Sorry, this item is currently out of stock.</p></body></html>`)

	res := Classify(body, "https://uk.webuy.com/product-detail?id=ABC123")

	assert.False(t, res.InStock)
	assert.Equal(t, "Out of stock", res.Note)
}

func TestClassifyBothIndicators(t *testing.T) {
	// Listing pages often mix verdicts across cards.
	body := []byte(`<html><body><p>In stock online.</p><p>Sold out for collection.</p></body></html>`)

	res := Classify(body, "https://uk.webuy.com/search?stext=x")

	assert.False(t, res.InStock)
	assert.Equal(t, "Possibly in stock", res.Note)
}

func TestClassifyNeitherIndicator(t *testing.T) {
	body := []byte(`<html><body><p>Welcome to the shop.</p></body></html>`)

	res := Classify(body, "https://uk.webuy.com/")

	assert.False(t, res.InStock)
	assert.Equal(t, "Unknown", res.Note)
}

func TestClassifyPricePrefersLabeledElements(t *testing.T) {
	body := []byte(`<html><body>
		<span>Was £99.99 elsewhere</span>
		<div class="product-price">£12.5</div>
	</body></html>`)

	res := Classify(body, "https://uk.webuy.com/")

	assert.Equal(t, "£12.50", res.Price)
}

func TestClassifyPriceBareScanFallback(t *testing.T) {
	body := []byte(`<html><body><p>Yours for just £1,049.99 today</p></body></html>`)

	res := Classify(body, "https://uk.webuy.com/")

	assert.Equal(t, "£1049.99", res.Price)
}

func TestClassifyPriceAbsentWhenNoCurrency(t *testing.T) {
	body := []byte(`<html><body><div class="price">Call for price</div></body></html>`)

	res := Classify(body, "https://uk.webuy.com/")

	assert.Empty(t, res.Price)
}

func TestClassifyImageNormalizedToAbsolute(t *testing.T) {
	body := []byte(`<html><body><img src="/img/box.jpg"><img src="/img/other.jpg"></body></html>`)

	res := Classify(body, "https://uk.webuy.com/product-detail?id=ABC123")

	assert.Equal(t, "https://uk.webuy.com/img/box.jpg", res.ImageURL)
}

func TestClassifyImageDataSrc(t *testing.T) {
	body := []byte(`<html><body><img data-src="https://cdn.webuy.com/box.jpg"></body></html>`)

	res := Classify(body, "https://uk.webuy.com/")

	assert.Equal(t, "https://cdn.webuy.com/box.jpg", res.ImageURL)
}

func TestClassifyGarbageInputDoesNotPanic(t *testing.T) {
	require.NotPanics(t, func() {
		res := Classify([]byte("\x00\xff<<<"), "::bad-url::")
		assert.Equal(t, "Unknown", res.Note)
	})
}
