package stockapi

import (
	"fmt"
	"strconv"
	"strings"
)

// Candidate field orderings. First hit wins.
var (
	quantityFields = []string{"ecomQuantityOnHand", "quantityAvailable", "collectionQuantity", "quantity", "qty"}
	outFields      = []string{"outOfEcomStock", "outOfStock", "isOutOfStock"}
	sellFields     = []string{"webSellAllowed", "sellAllowed", "canBuy"}
	nameFields     = []string{"boxName", "name", "title", "productName"}
	priceFields    = []string{"sellPrice", "webSellPrice", "price", "previousPrice", "exchangePrice", "cashPrice"}
	storeFields    = []string{"storeStock", "stores", "availableStores", "nearestStores"}
)

// Facts are the classified stock signals for one box record.
type Facts struct {
	Quantity    int
	OutOfStock  bool
	SellAllowed bool
	InStock     bool
	Name        string
	Price       string
	ImageURL    string
}

// Classify applies the field-priority rules to a raw box. Numeric coercion
// defaults to 0, so a record missing every quantity field classifies as out
// of stock. InStock mirrors the record invariant: quantity > 0 and the
// out-of-stock flag unset.
func Classify(box Box) Facts {
	f := Facts{
		Quantity:    intField(box, quantityFields),
		OutOfStock:  boolField(box, outFields),
		SellAllowed: boolField(box, sellFields),
		Name:        stringField(box, nameFields),
		ImageURL:    imageField(box),
	}
	if f.Quantity < 0 {
		f.Quantity = 0
	}
	f.InStock = f.Quantity > 0 && !f.OutOfStock
	if price, ok := priceField(box); ok {
		f.Price = price
	}
	return f
}

// StoreArrays returns the raw values of the candidate store-array fields,
// in priority order, for the store-name extractor to resolve.
func StoreArrays(box Box) []interface{} {
	var out []interface{}
	for _, key := range storeFields {
		if v, ok := box[key]; ok && v != nil {
			out = append(out, v)
		}
	}
	return out
}

func intField(box Box, keys []string) int {
	for _, key := range keys {
		if v, ok := box[key]; ok && v != nil {
			return coerceInt(v)
		}
	}
	return 0
}

func boolField(box Box, keys []string) bool {
	for _, key := range keys {
		if v, ok := box[key]; ok && v != nil {
			return coerceBool(v)
		}
	}
	return false
}

func stringField(box Box, keys []string) string {
	for _, key := range keys {
		if v, ok := box[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// priceField picks the first candidate that is present, non-null and
// greater than zero.
func priceField(box Box) (string, bool) {
	for _, key := range priceFields {
		v, ok := box[key]
		if !ok || v == nil {
			continue
		}
		f, ok := coerceFloat(v)
		if !ok || f <= 0 {
			continue
		}
		return FormatPrice(f), true
	}
	return "", false
}

// FormatPrice renders a currency string with a two-decimal numeric portion.
func FormatPrice(v float64) string {
	return fmt.Sprintf("£%.2f", v)
}

// imageField resolves the image URL candidate shapes: an object of sizes,
// a flat string, an array, then a thumbnail field.
func imageField(box Box) string {
	if sizes, ok := box["imageUrls"].(map[string]interface{}); ok {
		for _, size := range []string{"large", "medium", "small"} {
			if s, ok := sizes[size].(string); ok && s != "" {
				return s
			}
		}
	}
	if s, ok := box["imageUrl"].(string); ok && s != "" {
		return s
	}
	if arr, ok := box["images"].([]interface{}); ok {
		for _, v := range arr {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	if s, ok := box["thumbnail"].(string); ok && s != "" {
		return s
	}
	return ""
}

func coerceInt(v interface{}) int {
	f, ok := coerceFloat(v)
	if !ok {
		return 0
	}
	return int(f)
}

func coerceFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		s := strings.TrimSpace(strings.TrimPrefix(t, "£"))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func coerceBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "t", "y", "yes":
			return true
		default:
			return false
		}
	default:
		return false
	}
}
