package stockapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyInStock(t *testing.T) {
	f := Classify(Box{
		"boxName":            "Mega Drive II Console",
		"ecomQuantityOnHand": float64(5),
		"outOfEcomStock":     float64(0),
		"webSellAllowed":     float64(1),
		"sellPrice":          float64(45),
	})
	assert.True(t, f.InStock)
	assert.Equal(t, 5, f.Quantity)
	assert.False(t, f.OutOfStock)
	assert.True(t, f.SellAllowed)
	assert.Equal(t, "£45.00", f.Price)
	assert.Equal(t, "Mega Drive II Console", f.Name)
}

func TestClassifyOutOfStockFlagWins(t *testing.T) {
	f := Classify(Box{
		"ecomQuantityOnHand": float64(0),
		"outOfEcomStock":     float64(1),
	})
	assert.False(t, f.InStock)
	assert.Equal(t, 0, f.Quantity)
	assert.True(t, f.OutOfStock)

	// Flag set with a positive quantity still reads out of stock.
	f = Classify(Box{
		"ecomQuantityOnHand": float64(3),
		"outOfEcomStock":     true,
	})
	assert.False(t, f.InStock)
	assert.Equal(t, 3, f.Quantity)
}

func TestClassifyInvariantHolds(t *testing.T) {
	boxes := []Box{
		{},
		{"quantity": "7"},
		{"ecomQuantityOnHand": float64(-2)},
		{"ecomQuantityOnHand": "12", "outOfStock": "true"},
		{"qty": float64(1), "outOfEcomStock": float64(0)},
	}
	for _, box := range boxes {
		f := Classify(box)
		assert.Equal(t, f.Quantity > 0 && !f.OutOfStock, f.InStock)
		assert.GreaterOrEqual(t, f.Quantity, 0)
	}
}

func TestClassifyNumericCoercion(t *testing.T) {
	f := Classify(Box{"ecomQuantityOnHand": "8", "sellPrice": "12.5"})
	assert.Equal(t, 8, f.Quantity)
	assert.Equal(t, "£12.50", f.Price)

	f = Classify(Box{"ecomQuantityOnHand": "not a number"})
	assert.Equal(t, 0, f.Quantity)
	assert.False(t, f.InStock)
}

func TestPriceCandidateOrdering(t *testing.T) {
	// sellPrice absent and price zero: falls through to exchangePrice.
	f := Classify(Box{
		"price":         float64(0),
		"exchangePrice": float64(30),
		"cashPrice":     float64(20),
	})
	assert.Equal(t, "£30.00", f.Price)

	// No positive candidate at all leaves the price unset.
	f = Classify(Box{"price": float64(0)})
	assert.Empty(t, f.Price)
}

func TestImageCandidateShapes(t *testing.T) {
	f := Classify(Box{"imageUrls": map[string]interface{}{
		"small": "s.jpg", "large": "l.jpg",
	}})
	assert.Equal(t, "l.jpg", f.ImageURL)

	f = Classify(Box{"imageUrl": "flat.jpg"})
	assert.Equal(t, "flat.jpg", f.ImageURL)

	f = Classify(Box{"images": []interface{}{"first.jpg", "second.jpg"}})
	assert.Equal(t, "first.jpg", f.ImageURL)

	f = Classify(Box{"thumbnail": "thumb.jpg"})
	assert.Equal(t, "thumb.jpg", f.ImageURL)
}

func TestDecodeEnvelopeWrappedAndBare(t *testing.T) {
	wrapped := []byte(`{"response":{"data":{"boxDetails":[{"boxName":"Saturn"}]}}}`)
	boxes, err := DecodeEnvelope(wrapped)
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	assert.Equal(t, "Saturn", boxes[0]["boxName"])

	bare := []byte(`{"boxDetails":[{"boxName":"Dreamcast"}]}`)
	boxes, err = DecodeEnvelope(bare)
	require.NoError(t, err)
	assert.Equal(t, "Dreamcast", boxes[0]["boxName"])
}

func TestDecodeEnvelopeRejectsMalformed(t *testing.T) {
	for _, body := range []string{
		`not json`,
		`{}`,
		`{"boxDetails":[]}`,
		`{"response":{"data":{}}}`,
	} {
		_, err := DecodeEnvelope([]byte(body))
		assert.Error(t, err, body)
	}
}

func TestStoreArraysPriorityOrder(t *testing.T) {
	arrays := StoreArrays(Box{
		"stores":     []interface{}{"Poole"},
		"storeStock": []interface{}{map[string]interface{}{"storeName": "Bath"}},
	})
	require.Len(t, arrays, 2)
	// storeStock is the highest-priority candidate field.
	assert.Equal(t, []interface{}{map[string]interface{}{"storeName": "Bath"}}, arrays[0])
}
