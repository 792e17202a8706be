package models

import (
	"sort"
	"strings"
)

// ItemRecord is the final availability record for a single SKU. It is
// assembled once by the resolver and not mutated afterwards; failures are
// encoded in SourceStatus/SourceNote rather than errors.
type ItemRecord struct {
	ItemID         string   `json:"itemId"`
	CanonicalURL   string   `json:"canonicalUrl"`
	Name           string   `json:"name,omitempty"`
	Quantity       int      `json:"quantity"`
	OutOfStockFlag bool     `json:"outOfStockFlag"`
	SellAllowed    bool     `json:"sellAllowed"`
	InStock        bool     `json:"inStock"`
	Price          string   `json:"price,omitempty"`
	ImageURL       string   `json:"imageUrl,omitempty"`
	Stores         []string `json:"stores,omitempty"`
	SourceStatus   int      `json:"sourceStatus,omitempty"`
	SourceNote     string   `json:"sourceNote"`
	DebugPayload   []byte   `json:"-"`
}

// NewItemRecord computes the in-stock invariant once at construction.
// InStock is quantity > 0 with the out-of-stock flag unset; callers must not
// recompute or override it afterwards.
func NewItemRecord(itemID, canonicalURL string, quantity int, outOfStock, sellAllowed bool) ItemRecord {
	if quantity < 0 {
		quantity = 0
	}
	return ItemRecord{
		ItemID:         itemID,
		CanonicalURL:   canonicalURL,
		Quantity:       quantity,
		OutOfStockFlag: outOfStock,
		SellAllowed:    sellAllowed,
		InStock:        quantity > 0 && !outOfStock,
	}
}

// NewHeuristicRecord builds a record for items classified from page
// markup alone, where no quantity exists and the verdict is the
// classifier's approximation.
func NewHeuristicRecord(itemID, canonicalURL string, inStock bool) ItemRecord {
	return ItemRecord{
		ItemID:         itemID,
		CanonicalURL:   canonicalURL,
		OutOfStockFlag: !inStock,
		InStock:        inStock,
	}
}

// StoreHit is a store name together with the extraction strategy that
// produced it. The last-resort strategies are approximate, so callers can
// inspect provenance instead of treating every hit as authoritative.
type StoreHit struct {
	Name     string
	Strategy string
}

// NormalizeStores trims, deduplicates and sorts store names
// lexicographically. Empty names are dropped.
func NormalizeStores(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
