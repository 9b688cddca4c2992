package standardize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/catalog-enricher/internal/model"
)

type unit int

const (
	unitNone unit = iota
	unitCM
	unitMM
	unitM
)

var (
	orientation = regexp.MustCompile(`(?i)\(\s*[lhpwd]\s*\)`)
	cmOrMM      = regexp.MustCompile(`(?i)mm|cm`)
	meters      = regexp.MustCompile(`(?i)(\d)\s*m([^a-z]|$)`)
	separators  = strings.NewReplacer("×", "x", "*", "x", "X", "x")
	diameter    = strings.NewReplacer("ø", "", "Ø", "", "⌀", "")
)

type measure struct {
	values   []float64
	segments int
	parsed   bool
	// mixed is set when segments carry different explicit units.
	mixed bool
}

// ParseDimensions parses an "a x b x c" measure into centimeters. It reports
// how many segments were present and returns only the parsed ones; ok is
// true when every segment parsed. Measures mixing explicit units return no
// values.
func ParseDimensions(v string) (values []float64, segments int, ok bool) {
	m := parseMeasure(v)
	if m.mixed {
		return nil, m.segments, false
	}
	return m.values, m.segments, m.parsed
}

// parseMeasure reads the unit of every segment. A segment without a unit
// takes the one explicit unit of the measure, or centimeters.
func parseMeasure(v string) measure {
	s := strings.TrimSpace(v)
	s = orientation.ReplaceAllString(s, " ")
	s = diameter.Replace(s)
	s = separators.Replace(s)

	parts := strings.Split(s, "x")
	units := make([]unit, len(parts))
	common := unitNone
	var m measure
	for i, part := range parts {
		units[i] = detectUnit(part)
		if units[i] == unitNone {
			continue
		}
		if common != unitNone && units[i] != common {
			m.mixed = true
		}
		common = units[i]
	}
	if common == unitNone {
		common = unitCM
	}

	m.parsed = true
	for i, part := range parts {
		part = cmOrMM.ReplaceAllString(part, " ")
		part = meters.ReplaceAllString(part, "${1} ${2}")
		part = strings.TrimSpace(strings.ReplaceAll(part, ",", "."))
		m.segments++
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			m.parsed = false
			continue
		}
		u := units[i]
		if u == unitNone {
			u = common
		}
		switch u {
		case unitMM:
			f /= 10
		case unitM:
			f *= 100
		}
		m.values = append(m.values, f)
	}
	m.parsed = m.parsed && len(m.values) > 0
	return m
}

func detectUnit(s string) unit {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "mm"):
		return unitMM
	case strings.Contains(lower, "cm"):
		return unitCM
	case meters.MatchString(s):
		return unitM
	default:
		return unitNone
	}
}

// FormatCM renders a centimeter measure with one decimal, e.g. "30.0 cm".
func FormatCM(v float64) string {
	return formatNumber(v) + " cm"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// dimensions canonicalizes linear measures to centimeters.
func dimensions(v string) Result {
	m := parseMeasure(v)
	if m.mixed {
		return Result{
			Value:    v,
			Warnings: []model.Warning{model.Warn("measure %q mixes units", v)},
		}
	}
	values, segments, ok := m.values, m.segments, m.parsed
	if len(values) == 0 {
		return Result{Value: v}
	}
	if !ok {
		return Result{
			Value:    v,
			Warnings: []model.Warning{model.Warn("parsed only %d of %d segments of measure %q", len(values), segments, v)},
		}
	}
	nums := make([]string, len(values))
	for i, f := range values {
		nums[i] = formatNumber(f)
	}
	return Result{Value: strings.Join(nums, " x ") + " cm"}
}
