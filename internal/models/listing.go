package models

import "net/url"

// ConditionFlags describe the second-hand condition hints found in a
// listing card's text.
type ConditionFlags struct {
	HasManual   bool `json:"hasManual"`
	IsBoxed     bool `json:"isBoxed"`
	IsUnboxed   bool `json:"isUnboxed"`
	HasNoManual bool `json:"hasNoManual"`
}

// ListingItem is a raw item candidate extracted from a rendered category or
// search page.
type ListingItem struct {
	RawName       string         `json:"rawName"`
	URL           string         `json:"url,omitempty"`
	Price         string         `json:"price,omitempty"`
	ImageURL      string         `json:"imageUrl,omitempty"`
	ContainerText string         `json:"-"`
	Flags         ConditionFlags `json:"conditionFlags"`
}

// ItemID derives the SKU from the listing URL's id parameter, falling back
// to the raw name when the URL carries none. Used as the dedup key across
// pagination.
func (l ListingItem) ItemID() string {
	if id := skuFromURL(l.URL); id != "" {
		return id
	}
	return l.RawName
}

func skuFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("id")
}

// ListingPage is one extracted page of listing candidates.
type ListingPage struct {
	Items       []ListingItem `json:"items"`
	HasNextPage bool          `json:"hasNextPage"`
}

// CategoryQuery identifies one paginated category view scoped to a set of
// stores. Stores are joined with the retailer's separator when building the
// page URL.
type CategoryQuery struct {
	CategoryID string   `json:"categoryId"`
	Stores     []string `json:"stores"`
	Page       int      `json:"page"`
}
