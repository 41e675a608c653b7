package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numislab/coincataloger/internal/models"
)

func records() []models.CoinRecord {
	edited := false
	return []models.CoinRecord{
		{
			ID:     0,
			Fields: models.Fields{Country: models.NewText("France"), Value: models.NewText("1 Franc"), Year: models.NewText("1977")},
			Images: [2]string{"a.jpg", "b.jpg"},
			Valuation: &models.Valuation{
				Price: "0.50", Currency: "EUR", Condition: "TTB", SourceName: "Numista",
				SourceURL: "https://en.numista.com/p", LastUpdated: "2025-01-01",
			},
		},
		{
			ID:          1,
			Fields:      models.Fields{Country: models.NewText("france"), Value: models.NewText("5 Francs"), Year: models.NullText()},
			Images:      [2]string{"c.jpg", "d.jpg"},
			AIGenerated: &edited,
		},
		{
			ID:     2,
			Fields: models.Fields{Country: models.NewText("Égypte"), Value: models.NewText("10 Piastres")},
			Images: [2]string{"e.jpg", "f.jpg"},
		},
		{
			ID:     3,
			Images: [2]string{"g.jpg", "h.jpg"},
			Error:  "unparseable recognition reply",
		},
	}
}

func TestCompute(t *testing.T) {
	stats := Compute(records())

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.Recognized)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Valued)
	assert.Equal(t, []CountryCount{
		{Country: "France", Coins: 2},
		{Country: "Égypte", Coins: 1},
	}, stats.Countries)
}

func TestComputeUnknownCountry(t *testing.T) {
	stats := Compute([]models.CoinRecord{{ID: 0, Fields: models.Fields{Country: models.NullText()}}})
	assert.Equal(t, []CountryCount{{Country: "?", Coins: 1}}, stats.Countries)
}

func TestListRows(t *testing.T) {
	rows := ListRows(records())
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"0", "France", "1 Franc", "1977", "0.50 EUR (TTB)", "ok"}, rows[0])
	assert.Equal(t, []string{"1", "france", "5 Francs", "?", "", "edited"}, rows[1])
	assert.Equal(t, "error", rows[3][5])
}

func TestList(t *testing.T) {
	out := List(records())
	for _, want := range []string{"Country", "Égypte", "10 Piastres", "╭"} {
		assert.Contains(t, out, want)
	}
}

func TestStatsTables(t *testing.T) {
	out := StatsTables(Compute(records()))
	assert.Contains(t, out, "Without valuation")
	assert.Contains(t, out, "Égypte")

	empty := StatsTables(Compute(nil))
	assert.NotContains(t, empty, "Country")
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, records(), time.Date(2025, 5, 4, 10, 30, 0, 0, time.UTC)))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "# Coin Catalog"))
	assert.Contains(t, out, "## Countries")
	assert.Contains(t, out, "## Coins")
	assert.Contains(t, out, "error: unparseable recognition reply")
	assert.Contains(t, out, "*Generated 2025-05-04 10:30*")
}

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.parquet")

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteParquet(f, records()))
	require.NoError(t, f.Close())

	rows, err := ReadParquet(path)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, NewRow(records()[0]), rows[0])
	require.NotNil(t, rows[0].Price)
	assert.Equal(t, "0.50", *rows[0].Price)

	assert.Nil(t, rows[1].Year, "null year stays null")
	assert.True(t, rows[1].ManuallyCorrected)

	assert.Nil(t, rows[3].Country)
	require.NotNil(t, rows[3].Error)
	assert.Equal(t, "g.jpg", rows[3].Face)
}

func TestReadParquetMissing(t *testing.T) {
	_, err := ReadParquet(filepath.Join(t.TempDir(), "missing.parquet"))
	assert.Error(t, err)
}
