package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Len(t, cfg.APIDetailTemplates, 2, "two equivalent API hosts, tried in order")
	assert.NotEmpty(t, cfg.ProductPageTemplate)
	assert.GreaterOrEqual(t, cfg.Workers, 1)
	assert.GreaterOrEqual(t, cfg.MaxPages, 1)
	assert.NotZero(t, cfg.PageDelay)
	assert.NotZero(t, cfg.CategoryDelay)
	assert.NotEmpty(t, cfg.GroupStores(cfg.DefaultStoreGroup))
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SCAN_SKUS", "ABC1, DEF2")
	t.Setenv("SCAN_WORKERS", "2")
	t.Setenv("SCAN_MAX_PRICE", "25.5")
	t.Setenv("SCAN_BOXED_ONLY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"ABC1", "DEF2"}, cfg.WatchedSKUs)
	assert.Equal(t, 2, cfg.Workers)
	assert.InDelta(t, 25.5, cfg.MaxPrice, 0.001)
	assert.True(t, cfg.BoxedOnly)
}

func TestStoreNameForID(t *testing.T) {
	cfg := &Config{StoreNamesByID: map[string]string{
		"118": "Bournemouth - Castlepoint",
		"121": "Poole",
	}}

	name, ok := cfg.StoreNameForID("121")
	require.True(t, ok)
	assert.Equal(t, "Poole", name)

	// Case-insensitive substring match against the names.
	name, ok = cfg.StoreNameForID("castlepoint")
	require.True(t, ok)
	assert.Equal(t, "Bournemouth - Castlepoint", name)

	_, ok = cfg.StoreNameForID("nowhere")
	assert.False(t, ok)

	_, ok = cfg.StoreNameForID("  ")
	assert.False(t, ok)
}

func TestGroupStoresUnknownGroup(t *testing.T) {
	cfg := &Config{StoreGroups: map[string][]string{"a": {"X"}}}
	assert.Nil(t, cfg.GroupStores("missing"))
}
