package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/numislab/coincataloger/internal/models"
)

// BackupLayout is the time layout used in backup file names.
const BackupLayout = "20060102_150405"

const (
	lockRetry       = 50 * time.Millisecond
	maxBackupSuffix = 1000
)

// Write persists the whole collection to dest. The file is written to a
// temporary sibling and renamed into place, so a reader sees either the
// previous snapshot or the new one.
func Write(ctx context.Context, records []models.CoinRecord, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	unlock, err := lock(ctx, dest)
	if err != nil {
		return err
	}
	defer unlock()

	return writeLocked(records, dest)
}

// writeLocked does the temp-file-and-rename write. The caller holds the
// lock on dest.
func writeLocked(records []models.CoinRecord, dest string) error {
	data, err := Encode(records)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once renamed
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write results: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("failed to replace %s: %w", dest, err)
	}

	slog.Debug("Catalog written", "path", dest, "records", len(records))
	return nil
}

// Encode renders records the way Write stores them: two-space indentation,
// no HTML escaping, non-ASCII text kept literal.
func Encode(records []models.CoinRecord) ([]byte, error) {
	if records == nil {
		records = []models.CoinRecord{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}
	return buf.Bytes(), nil
}

// Load reads a snapshot written by Write.
func Load(path string) ([]models.CoinRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var records []models.CoinRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return records, nil
}

// Backup copies src into dir under a timestamped name and returns the new
// path. A missing src is not an error and yields an empty path.
func Backup(src, dir string, now time.Time) (string, error) {
	in, err := os.Open(src)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to open catalog for backup: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	out, dest, err := createBackup(dir, now)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("failed to copy backup: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close backup: %w", err)
	}

	slog.Info("Backup created", "path", dest)
	return dest, nil
}

// createBackup opens a new backup file without ever truncating an earlier
// one. Backups taken within the same second get a numeric suffix.
func createBackup(dir string, now time.Time) (*os.File, string, error) {
	base := "coins_metadata_backup_" + now.Format(BackupLayout)
	for n := 0; n < maxBackupSuffix; n++ {
		name := base + ".json"
		if n > 0 {
			name = fmt.Sprintf("%s_%d.json", base, n)
		}
		dest := filepath.Join(dir, name)

		out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to create backup: %w", err)
		}
		return out, dest, nil
	}
	return nil, "", fmt.Errorf("failed to create backup: too many backups for %s", base)
}

// Merge folds a new analysis into a previous snapshot. Records of next
// replace previous records with the same ID. When the image pair is
// unchanged the previous valuation and ai_generated flag are carried over.
// Previous records that were not re-analyzed are kept. The result is sorted
// by ID.
func Merge(previous, next []models.CoinRecord) []models.CoinRecord {
	byID := make(map[int]models.CoinRecord, len(previous)+len(next))
	for _, rec := range previous {
		byID[rec.ID] = rec
	}

	for _, rec := range next {
		if old, ok := byID[rec.ID]; ok && old.Images == rec.Images {
			if rec.Valuation == nil {
				rec.Valuation = old.Valuation
			}
			if rec.AIGenerated == nil {
				rec.AIGenerated = old.AIGenerated
			}
		}
		byID[rec.ID] = rec
	}

	merged := make([]models.CoinRecord, 0, len(byID))
	for _, rec := range byID {
		merged = append(merged, rec)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })
	return merged
}

func lock(ctx context.Context, dest string) (func(), error) {
	fl := flock.New(dest + ".lock")
	ok, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", dest, err)
	}
	if !ok {
		return nil, fmt.Errorf("failed to lock %s", dest)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			slog.Warn("Failed to release catalog lock", "path", dest, "err", err)
		}
	}, nil
}
