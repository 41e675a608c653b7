package valuation

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numislab/coincataloger/internal/models"
)

var fixedNow = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

func catalog() []models.CoinRecord {
	return []models.CoinRecord{
		{
			ID: 0,
			Fields: models.Fields{
				Country:  models.NewText("Italie"),
				Currency: models.NewText("Lire"),
				Value:    models.NewText("200 Lire"),
				Year:     models.NewText("1980"),
			},
			Images: [2]string{"a.jpg", "b.jpg"},
		},
		{
			ID:        1,
			Fields:    models.Fields{Country: models.NewText("France"), Year: models.NullText()},
			Images:    [2]string{"c.jpg", "d.jpg"},
			Valuation: &models.Valuation{Price: "1", Currency: "EUR", Condition: "TB", SourceName: "CGB.fr", SourceURL: "https://www.cgb.fr/p", LastUpdated: "2024-12-01"},
		},
		{
			ID:     2,
			Images: [2]string{"e.jpg", "f.jpg"},
			Error:  "recognition failed",
		},
	}
}

func newTestSession(input string, opened *[]string) (*Session, *bytes.Buffer) {
	var out bytes.Buffer
	s := NewSession(strings.NewReader(input), &out,
		WithClock(fixedNow),
		WithOpener(func(u string) error {
			*opened = append(*opened, u)
			return nil
		}))
	return s, &out
}

func TestSelect(t *testing.T) {
	records := catalog()

	tests := []struct {
		name     string
		mode     Mode
		id       int
		expected []int
	}{
		{"all", ModeAll, 0, []int{0, 1, 2}},
		{"missing", ModeMissing, 0, []int{0, 2}},
		{"by id", ModeByID, 1, []int{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(records, tt.mode, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := Select(records, ModeByID, 42)
	assert.ErrorIs(t, err, ErrCoinNotFound)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"all": ModeAll, "": ModeMissing, "MISSING": ModeMissing, "id": ModeByID} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("some")
	assert.Error(t, err)
}

func TestSearchURL(t *testing.T) {
	records := catalog()

	assert.Equal(t, "200 Lire 1980 Italie Lire", SearchQuery(records[0]))
	assert.Equal(t, "France", SearchQuery(records[1]), "null year is left out")

	u := SearchURL(records[0])
	assert.True(t, strings.HasPrefix(u, "https://en.numista.com/catalogue/index.php?"))
	assert.Contains(t, u, "se=200+Lire+1980+Italie+Lire")
	assert.Contains(t, u, "ct=coin")
}

func TestCount(t *testing.T) {
	assert.Equal(t, Stats{Total: 3, Valued: 1, Missing: 2}, Count(catalog()))
	assert.Equal(t, Stats{}, Count(nil))
}

func TestRunAddsValuation(t *testing.T) {
	input := strings.Join([]string{
		"n",                         // no browser
		"1",                         // Numista
		"https://en.numista.com/x",  // url
		"2.50",                      // price
		"",                          // currency default
		"",                          // condition default
		"",                          // notes
		"",                          // confirm
		"",                          // continue
		"n",                         // no browser
		"s",                         // skip
	}, "\n") + "\n"

	var opened []string
	s, out := newTestSession(input, &opened)
	records := catalog()

	result, err := s.Run(context.Background(), records, []int{0, 2})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Added)
	assert.True(t, result.Modified())
	assert.False(t, result.Stopped)
	assert.Empty(t, opened)

	assert.Equal(t, &models.Valuation{
		Price:       "2.50",
		Currency:    "EUR",
		Condition:   "TTB",
		SourceName:  "Numista",
		SourceURL:   "https://en.numista.com/x",
		LastUpdated: "2025-06-01",
	}, result.Records[0].Valuation)
	assert.Nil(t, result.Records[2].Valuation)

	// only the valuation changes
	expected := catalog()[0]
	got := result.Records[0]
	got.Valuation = nil
	assert.Equal(t, expected, got)

	assert.Nil(t, records[0].Valuation, "input must not be mutated")
	assert.Contains(t, out.String(), "COIN 1/2 (ID: 0)")
	assert.Contains(t, out.String(), "COIN 2/2 (ID: 2)")
}

func TestRunOpensSearchAndStops(t *testing.T) {
	input := "y\ns\nn\n"

	var opened []string
	s, _ := newTestSession(input, &opened)

	result, err := s.Run(context.Background(), catalog(), []int{0, 1, 2})
	require.NoError(t, err)

	assert.True(t, result.Stopped)
	assert.False(t, result.Modified())
	require.Len(t, opened, 1)
	assert.Equal(t, SearchURL(catalog()[0]), opened[0])
}

func TestRunRejectsIncompleteEntries(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid source", "n\n9\n"},
		{"missing url", "n\n2\n\n"},
		{"missing price", "n\n2\nhttps://www.cgb.fr/p\n\n"},
		{"declined confirmation", "n\n2\nhttps://www.cgb.fr/p\n3\nUSD\nSUP\nnice\nn\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opened []string
			s, _ := newTestSession(tt.input, &opened)

			result, err := s.Run(context.Background(), catalog(), []int{0})
			require.NoError(t, err)
			assert.Zero(t, result.Added)
			assert.Nil(t, result.Records[0].Valuation)
		})
	}
}

func TestRunKeepsOverrides(t *testing.T) {
	input := "n\n3\nhttps://argus2euros.fr/p\n4\nUSD\nSUP\ncommemorative\ny\n"

	var opened []string
	s, _ := newTestSession(input, &opened)

	result, err := s.Run(context.Background(), catalog(), []int{1})
	require.NoError(t, err)
	require.Equal(t, 1, result.Added)

	val := result.Records[1].Valuation
	assert.Equal(t, "Argus2euros", val.SourceName)
	assert.Equal(t, "USD", val.Currency)
	assert.Equal(t, "SUP", val.Condition)
	assert.Equal(t, "commemorative", val.Notes)
}

func TestRunEndOfInput(t *testing.T) {
	var opened []string
	s, _ := newTestSession("", &opened)

	result, err := s.Run(context.Background(), catalog(), []int{0, 1})
	require.NoError(t, err)
	assert.True(t, result.Stopped)
	assert.Zero(t, result.Added)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var opened []string
	s, _ := newTestSession("n\ns\n", &opened)

	_, err := s.Run(ctx, catalog(), []int{0})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPromptMode(t *testing.T) {
	tests := []struct {
		input string
		mode  Mode
		id    int
		err   bool
	}{
		{"\n", ModeMissing, 0, false},
		{"1\n", ModeAll, 0, false},
		{"3\n7\n", ModeByID, 7, false},
		{"3\nabc\n", 0, 0, true},
		{"5\n", 0, 0, true},
	}

	for _, tt := range tests {
		var opened []string
		s, _ := newTestSession(tt.input, &opened)

		mode, id, err := s.PromptMode()
		if tt.err {
			assert.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.mode, mode)
		assert.Equal(t, tt.id, id)
	}
}
