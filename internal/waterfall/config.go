package waterfall

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/catalog-enricher/internal/model"
)

// Priority is the active source order for one run. It is immutable; build
// it with NewPriority.
type Priority struct {
	order    []model.DataSourceType
	rank     map[model.DataSourceType]int
	disabled map[model.DataSourceType]bool
}

// NewPriority validates that order is a permutation of all source types and
// marks the disabled subset. Source types missing from order are appended
// in default order.
func NewPriority(order, disabled []model.DataSourceType) (Priority, error) {
	p := Priority{
		rank:     make(map[model.DataSourceType]int, len(order)),
		disabled: make(map[model.DataSourceType]bool, len(disabled)),
	}
	for _, t := range order {
		if _, err := model.ParseDataSourceType(string(t)); err != nil {
			return Priority{}, eris.Wrap(err, "waterfall: priority")
		}
		if _, dup := p.rank[t]; dup {
			return Priority{}, eris.Errorf("waterfall: source %s listed twice in priority", t)
		}
		p.rank[t] = len(p.order)
		p.order = append(p.order, t)
	}
	for _, t := range model.AllSourceTypes() {
		if _, ok := p.rank[t]; !ok {
			p.rank[t] = len(p.order)
			p.order = append(p.order, t)
		}
	}
	for _, t := range disabled {
		if _, err := model.ParseDataSourceType(string(t)); err != nil {
			return Priority{}, eris.Wrap(err, "waterfall: disabled sources")
		}
		p.disabled[t] = true
	}
	return p, nil
}

// DefaultPriority enables every source in default order.
func DefaultPriority() Priority {
	p, _ := NewPriority(model.AllSourceTypes(), nil)
	return p
}

// ParsePriority builds a Priority from source type names.
func ParsePriority(order, disabled []string) (Priority, error) {
	o, err := parseTypes(order)
	if err != nil {
		return Priority{}, err
	}
	d, err := parseTypes(disabled)
	if err != nil {
		return Priority{}, err
	}
	return NewPriority(o, d)
}

func parseTypes(names []string) ([]model.DataSourceType, error) {
	out := make([]model.DataSourceType, 0, len(names))
	for _, n := range names {
		t, err := model.ParseDataSourceType(n)
		if err != nil {
			return nil, eris.Wrap(err, "waterfall: parse priority")
		}
		out = append(out, t)
	}
	return out, nil
}

// Order returns every source type in priority order, disabled ones included.
func (p Priority) Order() []model.DataSourceType {
	return append([]model.DataSourceType(nil), p.order...)
}

// Active returns the enabled source types in priority order.
func (p Priority) Active() []model.DataSourceType {
	var out []model.DataSourceType
	for _, t := range p.order {
		if !p.disabled[t] {
			out = append(out, t)
		}
	}
	return out
}

// Enabled reports whether t takes part in resolution.
func (p Priority) Enabled(t model.DataSourceType) bool {
	if p.rank == nil {
		return true
	}
	_, known := p.rank[t]
	return known && !p.disabled[t]
}

// Rank returns the position of t, lower winning.
func (p Priority) Rank(t model.DataSourceType) int {
	if r, ok := p.rank[t]; ok {
		return r
	}
	return len(model.AllSourceTypes())
}

type priorityFile struct {
	Order    []string `yaml:"order"`
	Disabled []string `yaml:"disabled"`
}

// LoadPriority reads a priority from a YAML file with a top-level
// "priority" key.
func LoadPriority(path string) (Priority, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Priority{}, eris.Wrapf(err, "waterfall: read priority %s", path)
	}

	var wrapper struct {
		Priority priorityFile `yaml:"priority"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Priority{}, eris.Wrap(err, "waterfall: parse priority")
	}
	return ParsePriority(wrapper.Priority.Order, wrapper.Priority.Disabled)
}
