package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Schema      SchemaConfig      `yaml:"schema" mapstructure:"schema"`
	Enrich      EnrichConfig      `yaml:"enrich" mapstructure:"enrich"`
	Gemini      GeminiConfig      `yaml:"gemini" mapstructure:"gemini"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity  PerplexityConfig  `yaml:"perplexity" mapstructure:"perplexity"`
	PDF         PDFConfig         `yaml:"pdf" mapstructure:"pdf"`
	Fetch       FetchConfig       `yaml:"fetch" mapstructure:"fetch"`
	Standardize StandardizeConfig `yaml:"standardize" mapstructure:"standardize"`
	Reconcile   ReconcileConfig   `yaml:"reconcile" mapstructure:"reconcile"`
	Export      ExportConfig      `yaml:"export" mapstructure:"export"`
	Pricing     PricingConfig     `yaml:"pricing" mapstructure:"pricing"`
	Monitoring  MonitoringConfig  `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the batch database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SchemaConfig points at an optional schema file.
type SchemaConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// EnrichConfig configures source priority and the external enrichment call.
type EnrichConfig struct {
	Provider         string   `yaml:"provider" mapstructure:"provider"`
	Brand            string   `yaml:"brand" mapstructure:"brand"`
	Priority         []string `yaml:"priority" mapstructure:"priority"`
	Disabled         []string `yaml:"disabled" mapstructure:"disabled"`
	TrustedDomains   []string `yaml:"trusted_domains" mapstructure:"trusted_domains"`
	ThrottleMs       int      `yaml:"throttle_ms" mapstructure:"throttle_ms"`
	CallTimeoutSecs  int      `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	MaxRetries       int      `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMs int      `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int      `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	VisualFallback   bool     `yaml:"visual_fallback" mapstructure:"visual_fallback"`
	FetchImages      bool     `yaml:"fetch_images" mapstructure:"fetch_images"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// PDFConfig configures PDF text extraction, rasterization and matching.
type PDFConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	PdfToPPMPath  string `yaml:"pdftoppm_path" mapstructure:"pdftoppm_path"`
	RasterDPI     int    `yaml:"raster_dpi" mapstructure:"raster_dpi"`
	MistralKey    string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string `yaml:"mistral_ocr_model" mapstructure:"mistral_ocr_model"`
	MinPageChars  int    `yaml:"min_page_chars" mapstructure:"min_page_chars"`
	MinSKULen     int    `yaml:"min_sku_len" mapstructure:"min_sku_len"`
	MinEANLen     int    `yaml:"min_ean_len" mapstructure:"min_ean_len"`
	Concurrency   int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// MonitoringConfig configures batch health alerts. Alerts are only sent
// when WebhookURL is set.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// FetchConfig configures staging of remote input files.
type FetchConfig struct {
	// Dir receives downloaded and unpacked inputs. Empty uses a temp dir.
	Dir         string `yaml:"dir" mapstructure:"dir"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// ColorSynonym maps a lower-case substring to a canonical color name.
type ColorSynonym struct {
	Match     string `yaml:"match" mapstructure:"match"`
	Canonical string `yaml:"canonical" mapstructure:"canonical"`
}

// StandardizeConfig overrides the built-in standardizer rules. Empty lists
// keep the defaults.
type StandardizeConfig struct {
	NullTokens         []string       `yaml:"null_tokens" mapstructure:"null_tokens"`
	ProtectionKeywords []string       `yaml:"protection_keywords" mapstructure:"protection_keywords"`
	EnergyKeywords     []string       `yaml:"energy_keywords" mapstructure:"energy_keywords"`
	DimensionKeywords  []string       `yaml:"dimension_keywords" mapstructure:"dimension_keywords"`
	ColorKeywords      []string       `yaml:"color_keywords" mapstructure:"color_keywords"`
	ColorSynonyms      []ColorSynonym `yaml:"color_synonyms" mapstructure:"color_synonyms"`
}

// DimensionGroup ties a composite field to its ordered atomic fields.
type DimensionGroup struct {
	Composite string   `yaml:"composite" mapstructure:"composite"`
	Atomics   []string `yaml:"atomics" mapstructure:"atomics"`
}

// ReconcileConfig configures cross-field reconciliation.
type ReconcileConfig struct {
	Tolerance float64          `yaml:"tolerance" mapstructure:"tolerance"`
	Groups    []DimensionGroup `yaml:"groups" mapstructure:"groups"`
}

// ExportConfig names the export workbook sheets.
type ExportConfig struct {
	ValuesSheet  string `yaml:"values_sheet" mapstructure:"values_sheet"`
	SourcesSheet string `yaml:"sources_sheet" mapstructure:"sources_sheet"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic  map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     map[string]ModelPricing `yaml:"gemini" mapstructure:"gemini"`
	Perplexity PerplexityPricing       `yaml:"perplexity" mapstructure:"perplexity"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// PerplexityPricing holds Perplexity pricing.
type PerplexityPricing struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !isNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("gemini.key", "CATALOG_GEMINI_KEY", "GEMINI_API_KEY", "API_KEY")
	_ = v.BindEnv("anthropic.key", "CATALOG_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("perplexity.key", "CATALOG_PERPLEXITY_KEY", "PERPLEXITY_API_KEY")
	_ = v.BindEnv("pdf.mistral_api_key", "CATALOG_PDF_MISTRAL_API_KEY", "MISTRAL_API_KEY")

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "catalog-enricher.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("enrich.provider", "gemini")
	v.SetDefault("enrich.priority", []string{"MAPPING", "MANUFACTURER", "PDF", "WEB", "IMAGE", "DERIVED", "AI"})
	v.SetDefault("enrich.trusted_domains", []string{"amazon.it", "ebay.it", "leroymerlin.it"})
	v.SetDefault("enrich.throttle_ms", 800)
	v.SetDefault("enrich.call_timeout_secs", 120)
	v.SetDefault("enrich.max_retries", 3)
	v.SetDefault("enrich.initial_backoff_ms", 4000)
	v.SetDefault("enrich.max_backoff_ms", 32000)
	v.SetDefault("enrich.visual_fallback", true)
	v.SetDefault("enrich.fetch_images", true)
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("pdf.provider", "local")
	v.SetDefault("pdf.pdftotext_path", "pdftotext")
	v.SetDefault("pdf.pdftoppm_path", "pdftoppm")
	v.SetDefault("pdf.raster_dpi", 150)
	v.SetDefault("pdf.mistral_ocr_model", "mistral-ocr-latest")
	v.SetDefault("pdf.min_page_chars", 10)
	v.SetDefault("pdf.min_sku_len", 3)
	v.SetDefault("pdf.min_ean_len", 5)
	v.SetDefault("pdf.concurrency", 4)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "catalog-enricher/1.0")
	v.SetDefault("monitoring.failure_rate_threshold", 0.10)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("reconcile.tolerance", 0.5)
	v.SetDefault("export.values_sheet", "Dati Export")
	v.SetDefault("export.sources_sheet", "Fonti Dati")
	v.SetDefault("pricing.perplexity.per_query", 0.005)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
