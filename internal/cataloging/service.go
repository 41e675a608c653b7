package cataloging

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/numislab/coincataloger/internal/models"
	"github.com/numislab/coincataloger/internal/normalize"
)

// Recognizer turns a face and reverse photograph into a raw model reply.
type Recognizer interface {
	Recognize(ctx context.Context, face, reverse []byte) (string, error)
}

// ImageReader loads the bytes behind an image reference.
type ImageReader interface {
	ReadImage(ref models.ImageRef) ([]byte, error)
}

// Reporter receives progress while a batch runs.
type Reporter interface {
	Start(total int)
	UnitDone(unit models.CoinUnit, record models.CoinRecord, total int)
	Finish(summary Summary)
}

// DirReader reads image references relative to a directory.
type DirReader string

// ReadImage implements ImageReader.
func (d DirReader) ReadImage(ref models.ImageRef) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(string(d), string(ref)))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

// Outcome is the per-unit result: either Fields or Err.
type Outcome struct {
	Fields models.Fields
	Err    error
}

// Record converts the outcome into the unit's coin record.
func (o Outcome) Record(unit models.CoinUnit) models.CoinRecord {
	if o.Err != nil {
		return models.NewFailedRecord(unit, o.Err)
	}
	return models.NewRecognizedRecord(unit, o.Fields)
}

// Summary tallies a batch.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Result is the ordered collection produced by one run.
type Result struct {
	Records []models.CoinRecord
	Summary Summary
}

// Service drives recognition over a batch of coin units.
type Service struct {
	recognizer Recognizer
	images     ImageReader
	reporter   Reporter
	logger     *slog.Logger
}

// Option customizes the service.
type Option func(*Service)

// WithReporter sets the progress reporter.
func WithReporter(r Reporter) Option {
	return func(s *Service) {
		if r != nil {
			s.reporter = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(recognizer Recognizer, images ImageReader, opts ...Option) (*Service, error) {
	if recognizer == nil {
		return nil, fmt.Errorf("recognizer is required")
	}
	if images == nil {
		return nil, fmt.Errorf("image reader is required")
	}

	s := &Service{
		recognizer: recognizer,
		images:     images,
		reporter:   nopReporter{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run processes units one at a time, in order. A failing unit becomes a
// failed record and never stops the batch, so the result always holds one
// record per unit. If ctx is cancelled the partial collection is discarded
// and the context error returned.
func (s *Service) Run(ctx context.Context, units []models.CoinUnit) (*Result, error) {
	total := len(units)
	result := &Result{
		Records: make([]models.CoinRecord, 0, total),
		Summary: Summary{Total: total},
	}

	s.reporter.Start(total)

	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outcome := s.analyzeUnit(ctx, unit)

		// A unit that failed because the run was interrupted is not a
		// per-unit failure.
		if outcome.Err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		record := outcome.Record(unit)
		if record.Failed() {
			result.Summary.Failed++
			s.logger.Warn("Coin analysis failed", "id", unit.ID, "face", unit.Face, "reverse", unit.Reverse, "error", outcome.Err)
		} else {
			result.Summary.Succeeded++
			s.logger.Debug("Coin analyzed", "id", unit.ID, "label", record.Label())
		}

		result.Records = append(result.Records, record)
		s.reporter.UnitDone(unit, record, total)
	}

	s.reporter.Finish(result.Summary)
	return result, nil
}

func (s *Service) analyzeUnit(ctx context.Context, unit models.CoinUnit) Outcome {
	face, err := s.images.ReadImage(unit.Face)
	if err != nil {
		return Outcome{Err: err}
	}
	reverse, err := s.images.ReadImage(unit.Reverse)
	if err != nil {
		return Outcome{Err: err}
	}

	reply, err := s.recognizer.Recognize(ctx, face, reverse)
	if err != nil {
		return Outcome{Err: err}
	}

	fields, err := normalize.Parse(reply)
	if err != nil {
		return Outcome{Err: err}
	}

	return Outcome{Fields: fields}
}

type nopReporter struct{}

func (nopReporter) Start(int)                                        {}
func (nopReporter) UnitDone(models.CoinUnit, models.CoinRecord, int) {}
func (nopReporter) Finish(Summary)                                   {}
