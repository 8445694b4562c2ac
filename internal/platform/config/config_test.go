package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromMap_Defaults(t *testing.T) {
	cfg, err := LoadFromMap(map[string]string{
		"JWT_PUBLIC_KEY": "test-key",
	})
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "redmine", cfg.Database.Postgres.Database)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "issue_attachments:", cfg.Cache.Prefix)
	assert.Equal(t, []string{"id", "content_type", "description", "filename", "created_on"}, cfg.Plugin.DefaultColumns)
	assert.Equal(t, []string{"filesize"}, cfg.Plugin.DefaultTotals)
	assert.False(t, cfg.Plugin.CategoriesEnabled)
	assert.Equal(t, 25, cfg.Plugin.PerPageDefault)
}

func TestLoadFromMap_Overrides(t *testing.T) {
	cfg, err := LoadFromMap(map[string]string{
		"JWT_PUBLIC_KEY":             "test-key",
		"SERVER_PORT":                "9090",
		"CACHE_BACKEND":              "redis",
		"REDIS_ADDRESS":              "redis:6379",
		"CACHE_TTL":                  "30m",
		"PLUGIN_DEFAULT_COLUMNS":     "id, filename ,filesize",
		"PLUGIN_CATEGORIES_ENABLED":  "true",
		"POSTGRES_CONN_MAX_LIFETIME": "60",
	})
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Address)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, []string{"id", "filename", "filesize"}, cfg.Plugin.DefaultColumns)
	assert.True(t, cfg.Plugin.CategoriesEnabled)
	assert.Equal(t, 60*time.Second, cfg.Database.Postgres.ConnMaxLifetime)
}

func TestLoadFromMap_MissingJWTKey(t *testing.T) {
	_, err := LoadFromMap(map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_PUBLIC_KEY")
}

func TestValidate_InvalidBackend(t *testing.T) {
	_, err := LoadFromMap(map[string]string{
		"JWT_PUBLIC_KEY": "test-key",
		"CACHE_BACKEND":  "memcached",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_BACKEND")
}

func TestValidate_PerPageBounds(t *testing.T) {
	_, err := LoadFromMap(map[string]string{
		"JWT_PUBLIC_KEY":          "test-key",
		"PLUGIN_PER_PAGE_DEFAULT": "500",
		"PLUGIN_PER_PAGE_MAX":     "100",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PLUGIN_PER_PAGE_DEFAULT")
}
