package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchema(t *testing.T) {
	t.Parallel()

	s, err := NewSchema([]SchemaField{
		{ID: "1", Name: "CLASSE IP", Enabled: true, Class: ClassHard, Policy: PolicyRequiredEvidence},
		{ID: "2", Name: "TITOLO", Enabled: false, Class: ClassSoft, Policy: PolicyCreativeOnly},
	})
	require.NoError(t, err)

	t.Run("ByID", func(t *testing.T) {
		t.Parallel()
		f, ok := s.ByID("1")
		require.True(t, ok)
		assert.Equal(t, "CLASSE IP", f.Name)
		assert.True(t, f.RequiresEvidence())
		assert.True(t, f.Strict())
	})

	t.Run("ByName unknown", func(t *testing.T) {
		t.Parallel()
		_, ok := s.ByName("nope")
		assert.False(t, ok)
	})

	t.Run("Enabled skips disabled fields", func(t *testing.T) {
		t.Parallel()
		enabled := s.Enabled()
		require.Len(t, enabled, 1)
		assert.Equal(t, "CLASSE IP", enabled[0].Name)
	})
}

func TestNewSchemaValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		fields []SchemaField
		errMsg string
	}{
		{
			name:   "missing name",
			fields: []SchemaField{{ID: "1", Class: ClassHard, Policy: PolicyAllowInfer}},
			errMsg: "has no name",
		},
		{
			name: "duplicate id",
			fields: []SchemaField{
				{ID: "1", Name: "A", Class: ClassHard, Policy: PolicyAllowInfer},
				{ID: "1", Name: "B", Class: ClassHard, Policy: PolicyAllowInfer},
			},
			errMsg: "duplicate schema field id",
		},
		{
			name: "duplicate name",
			fields: []SchemaField{
				{ID: "1", Name: "A", Class: ClassHard, Policy: PolicyAllowInfer},
				{ID: "2", Name: "A", Class: ClassHard, Policy: PolicyAllowInfer},
			},
			errMsg: "duplicate schema field name",
		},
		{
			name:   "bad class",
			fields: []SchemaField{{ID: "1", Name: "A", Class: "MEDIUM", Policy: PolicyAllowInfer}},
			errMsg: "unknown class",
		},
		{
			name:   "bad policy",
			fields: []SchemaField{{ID: "1", Name: "A", Class: ClassSoft, Policy: "SOMETIMES"}},
			errMsg: "unknown fill policy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewSchema(tt.fields)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDefaultSchema(t *testing.T) {
	t.Parallel()

	s := DefaultSchema()
	assert.Len(t, s.Fields(), 11)

	energy, ok := s.ByName("CLASSE ENERGETICA")
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F", "G"}, energy.AllowedValues)

	dims, ok := s.ByName("Misure_Generali")
	require.True(t, ok)
	assert.False(t, dims.RequiresEvidence())
}

func TestLoadSchemaRoundTrip(t *testing.T) {
	t.Parallel()

	data, err := MarshalSchemaYAML(DefaultFields())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	s, err := LoadSchema(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultFields(), s.Fields())
}

func TestLoadSchemaErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := LoadSchema(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("fields: []\n"), 0o644))
	_, err = LoadSchema(empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fields")
}
