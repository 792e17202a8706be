package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the scanner needs to talk to the retailer:
// endpoint templates, header values, store/category tables and the
// politeness knobs. Values come from the environment (optionally via .env)
// with working defaults for uk.webuy.com.
type Config struct {
	// Structured API endpoint templates, tried in order. %s is the SKU.
	APIDetailTemplates []string

	// Rendered page templates. %s is the SKU / query / category id.
	ProductPageTemplate  string
	SearchPageTemplate   string
	CategoryPageTemplate string

	// StoreSeparator joins store tokens inside a category/search URL.
	StoreSeparator string

	UserAgent string
	Referer   string

	// ErrorPageMarker identifies the retailer's rendered error page, which
	// returns 200 but carries no catalog data.
	ErrorPageMarker string

	// WatchedSKUs is the default item list for a scan run.
	WatchedSKUs []string

	// StoreGroups maps a group name to an ordered list of store tokens.
	StoreGroups map[string][]string

	// DefaultStoreGroup selects which group scopes listing scans.
	DefaultStoreGroup string

	// Categories maps a product class to its category ids.
	Categories map[string][]string

	// CategoryNames maps a category id to its display name.
	CategoryNames map[string]string

	// StoreNamesByID translates opaque store ids into display names.
	StoreNamesByID map[string]string

	// WebhookURL receives the in-stock record set. Empty disables dispatch.
	WebhookURL string

	// Listing filters.
	MinPrice    float64
	MaxPrice    float64
	BoxedOnly   bool
	NeedsManual bool
	ShowAll     bool

	// Pagination and politeness.
	MaxPages      int
	PageDelay     time.Duration
	CategoryDelay time.Duration

	FetchTimeout  time.Duration
	RenderTimeout time.Duration
	Workers       int
	Headless      bool
}

// Load reads the environment (and .env when present) over the built-in
// defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		APIDetailTemplates: []string{
			"https://wss2.cex.uk.webuy.io/v3/boxes/%s/detail",
			"https://search.webuy.io/v3/boxes/%s/detail",
		},
		ProductPageTemplate:  "https://uk.webuy.com/product-detail?id=%s",
		SearchPageTemplate:   "https://uk.webuy.com/search?stext=%s&stores=%s",
		CategoryPageTemplate: "https://uk.webuy.com/category/%s?stores=%s&page=%d",
		StoreSeparator:       "~",
		UserAgent:            getEnv("SCAN_USER_AGENT", defaultUserAgent),
		Referer:              getEnv("SCAN_REFERER", "https://uk.webuy.com/"),
		ErrorPageMarker:      "this page isn't working right now",
		WatchedSKUs:          splitList(getEnv("SCAN_SKUS", "")),
		StoreGroups:          defaultStoreGroups(),
		DefaultStoreGroup:    getEnv("SCAN_STORE_GROUP", "south-coast"),
		Categories:           defaultCategories(),
		CategoryNames:        defaultCategoryNames(),
		StoreNamesByID:       defaultStoreNamesByID(),
		WebhookURL:           getEnv("SCAN_WEBHOOK_URL", ""),
		MinPrice:             getEnvFloat("SCAN_MIN_PRICE", 0),
		MaxPrice:             getEnvFloat("SCAN_MAX_PRICE", 0),
		BoxedOnly:            getEnvBool("SCAN_BOXED_ONLY", false),
		NeedsManual:          getEnvBool("SCAN_NEEDS_MANUAL", false),
		ShowAll:              getEnvBool("SCAN_SHOW_ALL", false),
		MaxPages:             getEnvInt("SCAN_MAX_PAGES", 5),
		PageDelay:            getEnvDuration("SCAN_PAGE_DELAY", 500*time.Millisecond),
		CategoryDelay:        getEnvDuration("SCAN_CATEGORY_DELAY", time.Second),
		FetchTimeout:         getEnvDuration("SCAN_FETCH_TIMEOUT", 20*time.Second),
		RenderTimeout:        getEnvDuration("SCAN_RENDER_TIMEOUT", 30*time.Second),
		Workers:              getEnvInt("SCAN_WORKERS", 4),
		Headless:             getEnvBool("SCAN_HEADLESS", true),
	}

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 1
	}
	return cfg, nil
}

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// StoreNameForID resolves an opaque store id to a display name: exact id
// match first, then a case-insensitive substring match against the known
// names.
func (c *Config) StoreNameForID(id string) (string, bool) {
	if name, ok := c.StoreNamesByID[id]; ok {
		return name, true
	}
	needle := strings.ToLower(strings.TrimSpace(id))
	if needle == "" {
		return "", false
	}
	for _, name := range c.StoreNamesByID {
		if strings.Contains(strings.ToLower(name), needle) {
			return name, true
		}
	}
	return "", false
}

// GroupStores returns the ordered store tokens for a group, or nil when the
// group is unknown.
func (c *Config) GroupStores(group string) []string {
	return c.StoreGroups[group]
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, using %d", key, v, fallback)
		return fallback
	}
	return i
}

func getEnvFloat(key string, fallback float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, using %v", key, v, fallback)
		return fallback
	}
	return d
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
