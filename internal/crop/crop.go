package crop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	exif "github.com/dsoprea/go-exif/v3"
	"golang.org/x/sync/errgroup"
)

// ErrTooSmall is returned for images smaller than the target square.
var ErrTooSmall = errors.New("image smaller than target size")

// Options configures a crop run.
type Options struct {
	Size       int
	Quality    int
	Workers    int
	Recursive  bool
	DryRun     bool
	Extensions []string
}

// FileResult reports what happened to one file. Width and Height are the
// oriented dimensions before cropping.
type FileResult struct {
	Path    string
	Width   int
	Height  int
	Cropped bool
	Err     error
}

// Summary tallies a run. Dry runs count inspected files as succeeded.
type Summary struct {
	Succeeded int
	Failed    int
}

// Find lists image files under dir, sorted by path.
func Find(dir string, recursive bool, extensions []string) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && hasExtension(path, extensions) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// Run processes paths with at most opts.Workers files in flight. report is
// called once per file, from the worker goroutine.
func Run(ctx context.Context, paths []string, opts Options, report func(FileResult)) (Summary, error) {
	results := make([]FileResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			var res FileResult
			if opts.DryRun {
				res = Inspect(path)
			} else {
				res = File(path, opts.Size, opts.Quality)
			}
			if res.Err != nil {
				slog.Warn("Crop failed", "path", path, "err", res.Err)
			}

			results[i] = res
			if report != nil {
				report(res)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	var summary Summary
	for _, res := range results {
		if res.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}
	return summary, nil
}

// Inspect reports the oriented dimensions of path without changing it.
func Inspect(path string) FileResult {
	res := FileResult{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = err
		return res
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		res.Err = fmt.Errorf("failed to decode image: %w", err)
		return res
	}

	res.Width, res.Height = cfg.Width, cfg.Height
	if swapsAxes(Orientation(data)) {
		res.Width, res.Height = res.Height, res.Width
	}
	return res
}

// File orients and center-crops path to a size×size square in place. The
// output format follows the file extension.
func File(path string, size, quality int) FileResult {
	res := FileResult{Path: path}

	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		res.Err = err
		return res
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		res.Err = fmt.Errorf("failed to decode image: %w", err)
		return res
	}
	res.Width, res.Height = img.Bounds().Dx(), img.Bounds().Dy()

	square, err := CenterSquare(img, size)
	if err != nil {
		res.Err = err
		return res
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, square, format, imaging.JPEGQuality(quality)); err != nil {
		res.Err = fmt.Errorf("failed to encode image: %w", err)
		return res
	}

	if err := replace(path, buf.Bytes()); err != nil {
		res.Err = err
		return res
	}

	res.Cropped = true
	return res
}

// CenterSquare cuts a size×size square from the middle of img.
func CenterSquare(img image.Image, size int) (image.Image, error) {
	b := img.Bounds()
	if b.Dx() < size || b.Dy() < size {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooSmall, b.Dx(), b.Dy())
	}
	return imaging.CropCenter(img, size, size), nil
}

// Orientation returns the EXIF orientation tag of an encoded image, or 1
// when there is none. Only Inspect needs it; File lets the decoder orient.
func Orientation(data []byte) int {
	raw, err := exif.SearchAndExtractExif(data)
	if err != nil || raw == nil {
		return 1
	}

	entries, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return 1
	}

	for _, entry := range entries {
		if entry.TagName != "Orientation" {
			continue
		}
		switch v := entry.Value.(type) {
		case []uint16:
			if len(v) > 0 && v[0] >= 1 && v[0] <= 8 {
				return int(v[0])
			}
		default:
			if n, err := strconv.Atoi(strings.TrimSpace(entry.FormattedFirst)); err == nil && n >= 1 && n <= 8 {
				return n
			}
		}
		return 1
	}
	return 1
}

func swapsAxes(orientation int) bool {
	return orientation >= 5 && orientation <= 8
}

func replace(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func hasExtension(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
