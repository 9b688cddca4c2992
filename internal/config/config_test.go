package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "catalog-enricher.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "gemini", cfg.Enrich.Provider)
	assert.Equal(t, []string{"MAPPING", "MANUFACTURER", "PDF", "WEB", "IMAGE", "DERIVED", "AI"}, cfg.Enrich.Priority)
	assert.Equal(t, []string{"amazon.it", "ebay.it", "leroymerlin.it"}, cfg.Enrich.TrustedDomains)
	assert.Equal(t, 60, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, "catalog-enricher/1.0", cfg.Fetch.UserAgent)
	assert.InDelta(t, 0.10, cfg.Monitoring.FailureRateThreshold, 1e-9)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
	assert.Empty(t, cfg.Monitoring.WebhookURL)
	assert.Equal(t, 800, cfg.Enrich.ThrottleMs)
	assert.Equal(t, 120, cfg.Enrich.CallTimeoutSecs)
	assert.Equal(t, 3, cfg.Enrich.MaxRetries)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 10, cfg.PDF.MinPageChars)
	assert.Equal(t, 3, cfg.PDF.MinSKULen)
	assert.Equal(t, 5, cfg.PDF.MinEANLen)
	assert.InDelta(t, 0.5, cfg.Reconcile.Tolerance, 0.001)
	assert.Equal(t, "Dati Export", cfg.Export.ValuesSheet)
	assert.Equal(t, "Fonti Dati", cfg.Export.SourcesSheet)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/catalog
log:
  level: debug
  format: console
enrich:
  provider: anthropic
  disabled: [WEB, AI]
standardize:
  color_synonyms:
    - match: bronzo
      canonical: Bronzo
reconcile:
  groups:
    - composite: DIM
      atomics: [W, H]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "anthropic", cfg.Enrich.Provider)
	assert.Equal(t, []string{"WEB", "AI"}, cfg.Enrich.Disabled)
	require.Len(t, cfg.Standardize.ColorSynonyms, 1)
	assert.Equal(t, "Bronzo", cfg.Standardize.ColorSynonyms[0].Canonical)
	require.Len(t, cfg.Reconcile.Groups, 1)
	assert.Equal(t, []string{"W", "H"}, cfg.Reconcile.Groups[0].Atomics)
	// Defaults still apply for unset values
	assert.Equal(t, 800, cfg.Enrich.ThrottleMs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: debug\n"), 0o644))
	t.Setenv("CATALOG_LOG_LEVEL", "warn")
	t.Setenv("CATALOG_ENRICH_THROTTLE_MS", "50")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 50, cfg.Enrich.ThrottleMs)
}

func TestLoadAPIKeyAliases(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("ANTHROPIC_API_KEY", "ant-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gem-key", cfg.Gemini.Key)
	assert.Equal(t, "ant-key", cfg.Anthropic.Key)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CATALOG_PERPLEXITY_KEY=pplx-from-dotenv\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("CATALOG_PERPLEXITY_KEY") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "pplx-from-dotenv", cfg.Perplexity.Key)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "test.db"
	cfg.Enrich.Provider = "gemini"
	cfg.Enrich.CallTimeoutSecs = 60
	cfg.Gemini.Key = "g"
	cfg.Reconcile.Tolerance = 0.5
	return cfg
}

func TestValidateEnrich_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("enrich"))
}

func TestValidateEnrich_MissingKey(t *testing.T) {
	cfg := validDefaults()
	cfg.Enrich.Provider = "anthropic"

	err := cfg.Validate("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidateEnrich_UnknownProvider(t *testing.T) {
	cfg := validDefaults()
	cfg.Enrich.Provider = "oracle"

	err := cfg.Validate("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enrich.provider must be")
}

func TestValidateStore_BadDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Gemini.Key = ""

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
	assert.NotContains(t, err.Error(), "gemini.key")
}

func TestValidateMistralNeedsKey(t *testing.T) {
	cfg := validDefaults()
	cfg.PDF.Provider = "mistral"

	err := cfg.Validate("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdf.mistral_api_key")
}
