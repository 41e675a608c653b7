package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numislab/coincataloger/internal/models"
)

func sampleRecords() []models.CoinRecord {
	return []models.CoinRecord{
		{
			ID: 0,
			Fields: models.Fields{
				Country:  models.NewText("Côte d'Ivoire"),
				Currency: models.NewText("Franc CFA"),
				Value:    models.NewText("100 Francs"),
				Year:     models.NullText(),
				Notes:    models.NewText("Masque <Baoulé> & motif"),
			},
			Images: [2]string{"IMG_0001.jpg", "IMG_0002.jpg"},
			Valuation: &models.Valuation{
				Price:       "2.50",
				Currency:    "EUR",
				Condition:   "TTB",
				SourceName:  "Numista",
				SourceURL:   "https://en.numista.com/catalogue/pieces1.html",
				LastUpdated: "2025-01-10",
			},
		},
		{
			ID:     1,
			Images: [2]string{"IMG_0003.jpg", "IMG_0004.jpg"},
			Error:  "unparseable recognition reply",
		},
	}
}

func TestWriteLoadRoundTrip(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "gallery", "coins_metadata.json")
	records := sampleRecords()

	require.NoError(t, Write(context.Background(), records, dest))

	loaded, err := Load(dest)
	require.NoError(t, err)
	assert.Equal(t, records, loaded)
}

func TestWriteFormatting(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "coins_metadata.json")
	require.NoError(t, Write(context.Background(), sampleRecords(), dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "Côte d'Ivoire", "non-ASCII must be written literally")
	assert.Contains(t, text, "<Baoulé> & motif", "HTML characters must not be escaped")
	assert.Contains(t, text, `"year": null`)
	assert.True(t, strings.HasPrefix(text, "[\n  {\n    \"id\": 0,"), "expected two-space indentation, got:\n%s", text)
}

func TestWriteEmptyCollection(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "coins_metadata.json")
	require.NoError(t, Write(context.Background(), nil, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestWriteOverwrites(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "coins_metadata.json")
	require.NoError(t, Write(context.Background(), sampleRecords(), dest))
	require.NoError(t, Write(context.Background(), sampleRecords()[:1], dest))

	loaded, err := Load(dest)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "coins_metadata.json")
	require.NoError(t, Write(context.Background(), sampleRecords(), dest))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestBackup(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "coins_metadata.json")
	backups := filepath.Join(dir, "backups")
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	t.Run("missing source is skipped", func(t *testing.T) {
		path, err := Backup(src, backups, now)
		require.NoError(t, err)
		assert.Empty(t, path)
	})

	t.Run("copies the snapshot under a timestamped name", func(t *testing.T) {
		require.NoError(t, Write(context.Background(), sampleRecords(), src))

		path, err := Backup(src, backups, now)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(backups, "coins_metadata_backup_20250314_092653.json"), path)

		original, err := os.ReadFile(src)
		require.NoError(t, err)
		copied, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, original, copied)
	})

	t.Run("same second keeps earlier backups", func(t *testing.T) {
		first := filepath.Join(backups, "coins_metadata_backup_20250314_092653.json")
		before, err := os.ReadFile(first)
		require.NoError(t, err)

		require.NoError(t, Write(context.Background(), nil, src))
		second, err := Backup(src, backups, now)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(backups, "coins_metadata_backup_20250314_092653_1.json"), second)

		third, err := Backup(src, backups, now)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(backups, "coins_metadata_backup_20250314_092653_2.json"), third)

		after, err := os.ReadFile(first)
		require.NoError(t, err)
		assert.Equal(t, before, after)

		data, err := os.ReadFile(second)
		require.NoError(t, err)
		assert.Equal(t, "[]\n", string(data))
	})
}

func TestMerge(t *testing.T) {
	valued := &models.Valuation{Price: "3", Currency: "EUR", Condition: "SUP", SourceName: "CGB.fr", SourceURL: "https://www.cgb.fr/x", LastUpdated: "2025-02-01"}
	edited := false

	previous := []models.CoinRecord{
		{ID: 0, Images: [2]string{"a.jpg", "b.jpg"}, Valuation: valued, AIGenerated: &edited},
		{ID: 1, Images: [2]string{"c.jpg", "d.jpg"}, Valuation: valued},
		{ID: 5, Images: [2]string{"x.jpg", "y.jpg"}},
	}
	next := []models.CoinRecord{
		{ID: 1, Images: [2]string{"c2.jpg", "d2.jpg"}, Fields: models.Fields{Country: models.NewText("Grèce")}},
		{ID: 0, Images: [2]string{"a.jpg", "b.jpg"}, Fields: models.Fields{Country: models.NewText("France")}},
		{ID: 2, Images: [2]string{"e.jpg", "f.jpg"}, Error: "boom"},
	}

	merged := Merge(previous, next)
	require.Len(t, merged, 4)

	ids := make([]int, len(merged))
	for i, rec := range merged {
		ids[i] = rec.ID
	}
	assert.Equal(t, []int{0, 1, 2, 5}, ids)

	assert.Equal(t, "France", merged[0].Country.Value)
	assert.Same(t, valued, merged[0].Valuation, "unchanged pair keeps its valuation")
	require.NotNil(t, merged[0].AIGenerated)
	assert.False(t, *merged[0].AIGenerated)

	assert.Equal(t, "Grèce", merged[1].Country.Value)
	assert.Nil(t, merged[1].Valuation, "a different pair must not inherit the valuation")

	assert.True(t, merged[2].Failed())
	assert.Equal(t, previous[2], merged[3])
}

func TestCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coins_metadata.json")
	backups := filepath.Join(dir, "backups")
	require.NoError(t, Write(context.Background(), sampleRecords(), path))

	catalog, err := Open(path, backups)
	require.NoError(t, err)
	catalog.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	t.Run("get", func(t *testing.T) {
		rec, ok := catalog.Get(0)
		require.True(t, ok)
		assert.Equal(t, "Côte d'Ivoire", rec.Country.Value)

		_, ok = catalog.Get(42)
		assert.False(t, ok)
	})

	t.Run("search ignores case", func(t *testing.T) {
		assert.Len(t, catalog.Search("franc cfa"), 1)
		assert.Len(t, catalog.Search(""), 2)
		assert.Empty(t, catalog.Search("drachme"))
	})

	t.Run("unchanged update does not write", func(t *testing.T) {
		_, err := catalog.Update(context.Background(), 0, func(*models.CoinRecord) bool { return false })
		require.NoError(t, err)
		_, err = os.Stat(backups)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("update persists and backs up", func(t *testing.T) {
		rec, err := catalog.Update(context.Background(), 1, func(r *models.CoinRecord) bool {
			r.Country = models.NewText("Maroc")
			return true
		})
		require.NoError(t, err)
		assert.Equal(t, "Maroc", rec.Country.Value)

		loaded, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "Maroc", loaded[1].Country.Value)
		assert.Equal(t, sampleRecords()[0], loaded[0])

		assert.FileExists(t, filepath.Join(backups, "coins_metadata_backup_20250102_030405.json"))
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := catalog.Update(context.Background(), 99, func(*models.CoinRecord) bool { return true })
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCatalogUpdateKeepsExternalChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coins_metadata.json")
	require.NoError(t, Write(context.Background(), sampleRecords(), path))

	catalog, err := Open(path, filepath.Join(dir, "backups"))
	require.NoError(t, err)

	// valuate saves a new valuation while the server is running
	external := sampleRecords()
	external[1].Valuation = &models.Valuation{Price: "12", Currency: "EUR", Condition: "SPL", SourceName: "Argus2euros", SourceURL: "https://www.argus2euros.fr/x", LastUpdated: "2025-04-01"}
	require.NoError(t, Write(context.Background(), external, path))

	_, err = catalog.Update(context.Background(), 0, func(r *models.CoinRecord) bool {
		r.Notes = models.NewText("rayure au revers")
		return true
	})
	require.NoError(t, err)

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "rayure au revers", loaded[0].Notes.Value)
	assert.Equal(t, external[1].Valuation, loaded[1].Valuation)

	rec, ok := catalog.Get(1)
	require.True(t, ok)
	assert.Equal(t, external[1].Valuation, rec.Valuation)
}
