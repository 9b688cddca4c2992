package standardize

import (
	"regexp"
	"strings"

	"github.com/sells-group/catalog-enricher/internal/model"
)

var energyLetter = regexp.MustCompile(`(?i)(?:^|[^a-z])([a-g])(?:[^a-z]|$)`)

// energyLabel reduces an energy label to its base letter on the A-G scale.
// Allowed-value enforcement happens afterwards in Standardize.
func energyLabel(v string) Result {
	m := energyLetter.FindStringSubmatch(v)
	if m == nil {
		return Result{Value: v, Warnings: []model.Warning{model.Warn("unrecognized energy label %q", v)}}
	}
	res := Result{Value: strings.ToUpper(m[1])}
	if strings.Contains(v, "+") {
		res.Warnings = append(res.Warnings,
			model.Warn("legacy energy scale %q converted to %s", v, res.Value))
	}
	return res
}
