package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the settings needed by a command are present.
// Supported modes are "enrich" and "store"; unknown modes only check the store.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	if mode == "enrich" {
		switch c.Enrich.Provider {
		case "gemini":
			if c.Gemini.Key == "" {
				problems = append(problems, "gemini.key is required")
			}
		case "anthropic":
			if c.Anthropic.Key == "" {
				problems = append(problems, "anthropic.key is required")
			}
		case "perplexity":
			if c.Perplexity.Key == "" {
				problems = append(problems, "perplexity.key is required")
			}
		default:
			problems = append(problems, "enrich.provider must be gemini, anthropic or perplexity")
		}
		if c.Enrich.CallTimeoutSecs <= 0 {
			problems = append(problems, "enrich.call_timeout_secs must be positive")
		}
		if c.Enrich.ThrottleMs < 0 {
			problems = append(problems, "enrich.throttle_ms must not be negative")
		}
		if c.Enrich.MaxRetries < 0 {
			problems = append(problems, "enrich.max_retries must not be negative")
		}
		if c.PDF.Provider == "mistral" && c.PDF.MistralKey == "" {
			problems = append(problems, "pdf.mistral_api_key is required for the mistral provider")
		}
	}

	if c.Reconcile.Tolerance < 0 {
		problems = append(problems, "reconcile.tolerance must not be negative")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func isNotExist(err error) bool {
	return os.IsNotExist(err)
}
