package pairing

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/numislab/coincataloger/internal/models"
)

// ErrNoImages is returned when a directory holds no matching image files.
var ErrNoImages = errors.New("no images found")

// Discover lists the image files directly inside dir whose extension matches
// one of extensions (compared case-insensitively). Subdirectories are not
// traversed. Names are sorted byte-wise, so "B.jpg" sorts before "a.jpg".
func Discover(dir string, extensions []string) ([]models.ImageRef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read pictures directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if hasExtension(entry.Name(), extensions) {
			names = append(names, entry.Name())
		}
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}

	sort.Strings(names)

	refs := make([]models.ImageRef, len(names))
	for i, name := range names {
		refs[i] = models.ImageRef(name)
	}
	return refs, nil
}

func hasExtension(name string, extensions []string) bool {
	ext := filepath.Ext(name)
	for _, want := range extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

// Pair folds refs two at a time into coin units, face first. An odd trailing
// reference cannot form a unit; it is returned as dropped and logged.
func Pair(refs []models.ImageRef) (units []models.CoinUnit, dropped []models.ImageRef) {
	units = make([]models.CoinUnit, 0, len(refs)/2)
	for i := 0; i+1 < len(refs); i += 2 {
		units = append(units, models.CoinUnit{
			ID:      len(units),
			Face:    refs[i],
			Reverse: refs[i+1],
		})
	}

	if len(refs)%2 == 1 {
		last := refs[len(refs)-1]
		dropped = append(dropped, last)
		slog.Warn("Odd number of images, last image has no pair and is skipped", "image", last, "images", len(refs))
	}

	return units, dropped
}
