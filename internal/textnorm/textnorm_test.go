package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"ABC-123", "abc123"},
		{"  a.b/c  ", "abc"},
		{"Lampada Ø 30cm", "lampada30cm"},
		{"città", "citt"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got := Normalize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Normalize(got), "idempotent")
		})
	}
}

func TestContains(t *testing.T) {
	t.Parallel()

	page := Normalize("Codice: AB-12.34 | Potenza 10W")

	assert.True(t, Contains(page, "ab 1234", 3))
	assert.False(t, Contains(page, "AB", 3), "below length floor")
	assert.False(t, Contains(page, "", 0))
	assert.False(t, Contains(page, "zz999", 3))
}
