package standardize

import (
	"regexp"

	"github.com/sells-group/catalog-enricher/internal/model"
)

var (
	ipMarked = regexp.MustCompile(`(?i)(?:^|[^a-z])ip\s*[-:.]?\s*(\d{2})(?:\D|$)`)
	ipSuffix = regexp.MustCompile(`(?i)(?:^|\D)(\d{2})\s*[-:.]?\s*ip(?:[^a-z]|$)`)
	ipBare   = regexp.MustCompile(`^(\d{2})$`)
)

// protectionClass canonicalizes ingress protection codes to IP<dd>.
func protectionClass(v string) Result {
	if m := ipBare.FindStringSubmatch(v); m != nil {
		return Result{
			Value:    "IP" + m[1],
			Warnings: []model.Warning{model.Info("IP prefix added to bare code %q", v)},
		}
	}
	if m := ipMarked.FindStringSubmatch(v); m != nil {
		return Result{Value: "IP" + m[1]}
	}
	if m := ipSuffix.FindStringSubmatch(v); m != nil {
		return Result{Value: "IP" + m[1]}
	}
	return Result{
		Value: v,
		Warnings: []model.Warning{{
			Message:  "unrecognized protection class " + quote(v),
			Severity: model.SeverityError,
			Action:   model.ActionReview,
		}},
	}
}
