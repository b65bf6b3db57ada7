package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citypaper/internal/apperrors"
	"citypaper/internal/models"
)

func TestEntry_Query(t *testing.T) {
	tests := []struct {
		name      string
		entry     Entry
		wantText  string
		wantHints *models.PrecisionHints
	}{
		{
			name:      "plain city",
			entry:     Entry{Name: "Lyon", Country: "France"},
			wantText:  "Lyon, France",
			wantHints: nil,
		},
		{
			name:      "postcode and department alias",
			entry:     Entry{Name: "Gordes", Country: "France", Postcode: "84220", Department: "Vaucluse"},
			wantText:  "Gordes, 84220, Vaucluse, France",
			wantHints: &models.PrecisionHints{Postcode: "84220", County: "Vaucluse"},
		},
		{
			name:      "region alias for state",
			entry:     Entry{Name: "Annecy", Country: "France", Region: "Auvergne-Rhône-Alpes"},
			wantText:  "Annecy, Auvergne-Rhône-Alpes, France",
			wantHints: &models.PrecisionHints{State: "Auvergne-Rhône-Alpes"},
		},
		{
			name:      "state wins over region",
			entry:     Entry{Name: "Annecy", Country: "France", State: "Savoie", Region: "ignored"},
			wantText:  "Annecy, Savoie, France",
			wantHints: &models.PrecisionHints{State: "Savoie"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.entry.Query()
			assert.Equal(t, tt.wantText, q.Text())
			assert.Equal(t, tt.wantHints, q.Hints)
		})
	}
}

func TestEntry_Valid(t *testing.T) {
	assert.True(t, Entry{Name: "Lyon", Country: "France"}.Valid())
	assert.False(t, Entry{Name: "Lyon"}.Valid())
	assert.False(t, Entry{Name: " ", Country: "France"}.Valid())
}

func TestParse(t *testing.T) {
	entries, err := Parse([]byte(`[
		{"name": "Gordes", "country": "France", "postcode": "84220", "department": "Vaucluse"},
		{"name": "Lyon", "country": "France", "village": null},
		{"country": "France"},
		{"name": null, "country": "France"},
		{"name": "Nice", "country": null}
	]`))
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, "Vaucluse", entries[0].Department)
	assert.Empty(t, entries[1].Village)
	assert.False(t, entries[2].Valid())
	assert.False(t, entries[3].Valid())
	assert.Equal(t, "France", entries[3].Country)
	assert.False(t, entries[4].Valid())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `[{"name": "Lyon"`},
		{"object instead of array", `{"name": "Lyon", "country": "France"}`},
		{"numeric name", `[{"name": 42, "country": "France"}]`},
		{"string entry", `["Lyon"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Equal(t, apperrors.ErrCodeInvalidBatch, apperrors.CodeOf(err))
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name": "Nice", "country": "France"}]`), 0o644))

	entries, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "Nice", Country: "France"}}, entries)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, apperrors.ErrCodeInvalidBatch, apperrors.CodeOf(err))
}
