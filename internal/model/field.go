package model

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// FieldClass separates fields that need verifiable evidence from fields that
// may be written discursively.
type FieldClass string

// Field classes.
const (
	ClassHard FieldClass = "HARD"
	ClassSoft FieldClass = "SOFT"
)

// FillPolicy controls how a missing field may be filled.
type FillPolicy string

// Fill policies.
const (
	PolicyRequiredEvidence FillPolicy = "REQUIRED_EVIDENCE"
	PolicyAllowInfer       FillPolicy = "ALLOW_INFER"
	PolicyCreativeOnly     FillPolicy = "CREATIVE_ONLY"
)

// SchemaField describes one output column.
type SchemaField struct {
	ID            string     `yaml:"id" json:"id"`
	Name          string     `yaml:"name" json:"name"`
	Description   string     `yaml:"description,omitempty" json:"description,omitempty"`
	Prompt        string     `yaml:"prompt" json:"prompt"`
	Enabled       bool       `yaml:"enabled" json:"enabled"`
	Class         FieldClass `yaml:"class" json:"class"`
	Policy        FillPolicy `yaml:"policy" json:"policy"`
	AllowedValues []string   `yaml:"allowed_values,omitempty" json:"allowed_values,omitempty"`
	// Explanation is a short user-facing note on what the column holds.
	Explanation string `yaml:"explanation,omitempty" json:"explanation,omitempty"`
}

// RequiresEvidence reports whether a missing value blocks export.
func (f SchemaField) RequiresEvidence() bool {
	return f.Class == ClassHard && f.Policy == PolicyRequiredEvidence
}

// Strict reports whether the field must only carry extracted data.
func (f SchemaField) Strict() bool {
	return f.Class == ClassHard
}

// Schema is an ordered, indexed collection of schema fields. It is not
// modified after construction.
type Schema struct {
	fields []SchemaField
	byID   map[string]int
	byName map[string]int
}

// NewSchema validates the fields and builds lookup indexes.
func NewSchema(fields []SchemaField) (*Schema, error) {
	s := &Schema{
		fields: make([]SchemaField, len(fields)),
		byID:   make(map[string]int, len(fields)),
		byName: make(map[string]int, len(fields)),
	}
	copy(s.fields, fields)

	for i, f := range s.fields {
		if strings.TrimSpace(f.Name) == "" {
			return nil, eris.Errorf("model: schema field %d has no name", i)
		}
		if f.ID == "" {
			return nil, eris.Errorf("model: schema field %q has no id", f.Name)
		}
		if _, dup := s.byID[f.ID]; dup {
			return nil, eris.Errorf("model: duplicate schema field id %q", f.ID)
		}
		if _, dup := s.byName[f.Name]; dup {
			return nil, eris.Errorf("model: duplicate schema field name %q", f.Name)
		}
		switch f.Class {
		case ClassHard, ClassSoft:
		default:
			return nil, eris.Errorf("model: field %q has unknown class %q", f.Name, f.Class)
		}
		switch f.Policy {
		case PolicyRequiredEvidence, PolicyAllowInfer, PolicyCreativeOnly:
		default:
			return nil, eris.Errorf("model: field %q has unknown fill policy %q", f.Name, f.Policy)
		}
		s.byID[f.ID] = i
		s.byName[f.Name] = i
	}
	return s, nil
}

// Fields returns all fields in schema order.
func (s *Schema) Fields() []SchemaField {
	out := make([]SchemaField, len(s.fields))
	copy(out, s.fields)
	return out
}

// Enabled returns the enabled fields in schema order.
func (s *Schema) Enabled() []SchemaField {
	var out []SchemaField
	for _, f := range s.fields {
		if f.Enabled {
			out = append(out, f)
		}
	}
	return out
}

// ByID returns the field with the given id.
func (s *Schema) ByID(id string) (SchemaField, bool) {
	i, ok := s.byID[id]
	if !ok {
		return SchemaField{}, false
	}
	return s.fields[i], true
}

// ByName returns the field with the given name.
func (s *Schema) ByName(name string) (SchemaField, bool) {
	i, ok := s.byName[name]
	if !ok {
		return SchemaField{}, false
	}
	return s.fields[i], true
}

type schemaFile struct {
	Fields []SchemaField `yaml:"fields"`
}

// LoadSchema reads a schema from a YAML file with a top-level "fields" list.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "model: read schema %s", path)
	}
	var sf schemaFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, eris.Wrapf(err, "model: parse schema %s", path)
	}
	if len(sf.Fields) == 0 {
		return nil, eris.Errorf("model: schema %s has no fields", path)
	}
	return NewSchema(sf.Fields)
}

// MarshalSchemaYAML renders fields in the format LoadSchema reads.
func MarshalSchemaYAML(fields []SchemaField) ([]byte, error) {
	out, err := yaml.Marshal(schemaFile{Fields: fields})
	if err != nil {
		return nil, eris.Wrap(err, "model: marshal schema")
	}
	return out, nil
}

func field(id, name, desc, prompt string, class FieldClass, policy FillPolicy, allowed ...string) SchemaField {
	return SchemaField{
		ID:            id,
		Name:          name,
		Description:   desc,
		Prompt:        prompt,
		Enabled:       true,
		Class:         class,
		Policy:        policy,
		AllowedValues: allowed,
	}
}

// DefaultFields is the built-in lighting catalog schema.
func DefaultFields() []SchemaField {
	return []SchemaField{
		field("3", "NOME SERIE", "Famiglia prodotto", "Nome collezione.", ClassHard, PolicyRequiredEvidence),
		field("4", "TITOLO", "Nome e-com", "Titolo SEO.", ClassSoft, PolicyCreativeOnly),
		field("5", "DESCRIZIONE", "HTML Body", "Descrizione ricca.", ClassSoft, PolicyCreativeOnly),
		field("20", "CLASSE IP", "Protezione", "Grado IP (es IP20).", ClassHard, PolicyRequiredEvidence),
		field("21", "CLASSE ENERGETICA", "Energy", "A-G.", ClassHard, PolicyRequiredEvidence, "A", "B", "C", "D", "E", "F", "G"),
		field("25", "WATT", "Potenza", "Watt nominali.", ClassHard, PolicyRequiredEvidence),
		field("36", "CORPO ALTEZZA GENERALE", "Altezza cm", "Altezza totale.", ClassHard, PolicyRequiredEvidence),
		field("41", "CORPO LUNGHEZZA", "Lunghezza cm", "Lunghezza.", ClassHard, PolicyRequiredEvidence),
		field("42", "CORPO LARGHEZZA", "Larghezza cm", "Larghezza.", ClassHard, PolicyRequiredEvidence),
		field("65", "Misure_Generali", "Riepilogo", "Formato AxBxC.", ClassHard, PolicyAllowInfer),
		field("70", "url_friendly", "Slug", "URL SEO.", ClassSoft, PolicyAllowInfer),
	}
}

// DefaultSchema returns the built-in schema.
func DefaultSchema() *Schema {
	s, err := NewSchema(DefaultFields())
	if err != nil {
		panic(err)
	}
	return s
}

// DefaultTrustedDomains lists marketplaces treated as verified web sources.
var DefaultTrustedDomains = []string{"amazon.it", "ebay.it", "leroymerlin.it"}
