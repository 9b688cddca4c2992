package resilience

import (
	"time"

	"github.com/sells-group/catalog-enricher/internal/config"
)

// FromEnrichConfig builds the per-product retry policy. MaxRetries counts
// retries, so the attempt budget is one more.
func FromEnrichConfig(cfg config.EnrichConfig) RetryConfig {
	out := DefaultRetryConfig()
	if cfg.MaxRetries >= 0 {
		out.MaxAttempts = cfg.MaxRetries + 1
	}
	if cfg.InitialBackoffMs > 0 {
		out.InitialBackoff = time.Duration(cfg.InitialBackoffMs) * time.Millisecond
	}
	if cfg.MaxBackoffMs > 0 {
		out.MaxBackoff = time.Duration(cfg.MaxBackoffMs) * time.Millisecond
	}
	return out
}
