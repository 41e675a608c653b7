package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/numislab/coincataloger/internal/models"
)

// ErrNotFound is returned for an unknown coin ID.
var ErrNotFound = errors.New("coin not found")

// Catalog is an in-memory view of a snapshot file that persists every
// change through Write after backing up the previous file.
type Catalog struct {
	path      string
	backupDir string
	now       func() time.Time

	mu      sync.RWMutex
	records []models.CoinRecord
}

// Open loads the snapshot at path.
func Open(path, backupDir string) (*Catalog, error) {
	records, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Catalog{
		path:      path,
		backupDir: backupDir,
		now:       time.Now,
		records:   records,
	}, nil
}

// All returns a copy of every record in ID order of the file.
func (c *Catalog) All() []models.CoinRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]models.CoinRecord, len(c.records))
	copy(result, c.records)
	return result
}

// Get returns the record with the given ID.
func (c *Catalog) Get(id int) (models.CoinRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := c.index(id)
	if i < 0 {
		return models.CoinRecord{}, false
	}
	return c.records[i], true
}

// Search returns records whose text fields contain q, ignoring case. An
// empty query matches everything.
func (c *Catalog) Search(q string) []models.CoinRecord {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return c.All()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []models.CoinRecord
	for _, rec := range c.records {
		for _, field := range []models.Text{rec.Country, rec.Currency, rec.Value, rec.Year, rec.Notes} {
			if strings.Contains(strings.ToLower(field.Value), q) {
				result = append(result, rec)
				break
			}
		}
	}
	return result
}

// Update applies fn to the record with the given ID. The file is reloaded
// under the writer lock first, so changes made by other processes since Open
// are kept. When fn reports a change the previous file is backed up and the
// catalog rewritten.
func (c *Catalog) Update(ctx context.Context, id int, fn func(*models.CoinRecord) bool) (models.CoinRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	unlock, err := lock(ctx, c.path)
	if err != nil {
		return models.CoinRecord{}, err
	}
	defer unlock()

	current, err := Load(c.path)
	if err != nil {
		return models.CoinRecord{}, err
	}
	c.records = current

	i := c.index(id)
	if i < 0 {
		return models.CoinRecord{}, ErrNotFound
	}

	updated := c.records[i]
	if !fn(&updated) {
		return updated, nil
	}

	if _, err := Backup(c.path, c.backupDir, c.now()); err != nil {
		return models.CoinRecord{}, err
	}

	next := make([]models.CoinRecord, len(c.records))
	copy(next, c.records)
	next[i] = updated
	if err := writeLocked(next, c.path); err != nil {
		return models.CoinRecord{}, fmt.Errorf("failed to save coin %d: %w", id, err)
	}

	c.records = next
	return updated, nil
}

func (c *Catalog) index(id int) int {
	for i, rec := range c.records {
		if rec.ID == id {
			return i
		}
	}
	return -1
}
