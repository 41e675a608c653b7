package report

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/parquet-go/parquet-go"

	"github.com/numislab/coincataloger/internal/models"
)

// Formats lists the supported export formats.
var Formats = []string{"markdown", "parquet"}

// Row is the flat parquet layout of one record. Null and absent fields are
// both stored as null.
type Row struct {
	ID                int     `parquet:"id"`
	Country           *string `parquet:"country,optional"`
	Currency          *string `parquet:"currency,optional"`
	Value             *string `parquet:"value,optional"`
	Year              *string `parquet:"year,optional"`
	Notes             *string `parquet:"notes,optional"`
	Face              string  `parquet:"face"`
	Reverse           string  `parquet:"reverse"`
	Error             *string `parquet:"error,optional"`
	Price             *string `parquet:"price,optional"`
	PriceCurrency     *string `parquet:"price_currency,optional"`
	Condition         *string `parquet:"condition,optional"`
	ValuationSource   *string `parquet:"valuation_source,optional"`
	ValuationURL      *string `parquet:"valuation_url,optional"`
	ValuationUpdated  *string `parquet:"valuation_updated,optional"`
	ManuallyCorrected bool    `parquet:"manually_corrected"`
}

// NewRow flattens a record.
func NewRow(rec models.CoinRecord) Row {
	row := Row{
		ID:                rec.ID,
		Country:           textPtr(rec.Country),
		Currency:          textPtr(rec.Currency),
		Value:             textPtr(rec.Value),
		Year:              textPtr(rec.Year),
		Notes:             textPtr(rec.Notes),
		Face:              rec.Images[0],
		Reverse:           rec.Images[1],
		Error:             strPtr(rec.Error),
		ManuallyCorrected: rec.AIGenerated != nil && !*rec.AIGenerated,
	}
	if v := rec.Valuation; v != nil {
		row.Price = strPtr(v.Price)
		row.PriceCurrency = strPtr(v.Currency)
		row.Condition = strPtr(v.Condition)
		row.ValuationSource = strPtr(v.SourceName)
		row.ValuationURL = strPtr(v.SourceURL)
		row.ValuationUpdated = strPtr(v.LastUpdated)
	}
	return row
}

// WriteParquet writes records as a parquet file to w.
func WriteParquet(w io.Writer, records []models.CoinRecord) error {
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = NewRow(rec)
	}

	pw := parquet.NewGenericWriter[Row](w)
	if _, err := pw.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// ReadParquet loads rows written by WriteParquet.
func ReadParquet(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	var result []Row
	batch := make([]Row, 128)
	for {
		n, err := reader.Read(batch)
		result = append(result, batch[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	slog.Debug("Read parquet export", "path", path, "rows", len(result))
	return result, nil
}

// WriteMarkdown renders the catalog and its statistics as a markdown
// document.
func WriteMarkdown(w io.Writer, records []models.CoinRecord, generated time.Time) error {
	stats := Compute(records)
	md := markdown.NewMarkdown(w)

	md.H1("Coin Catalog")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Coins", strconv.Itoa(stats.Total)},
			{"Recognized", strconv.Itoa(stats.Recognized)},
			{"Failed", strconv.Itoa(stats.Failed)},
			{"With valuation", strconv.Itoa(stats.Valued)},
		},
	})
	md.PlainText("")

	if len(stats.Countries) > 0 {
		md.H2("Countries")
		md.PlainText("")
		rows := make([][]string, 0, len(stats.Countries))
		for _, c := range stats.Countries {
			rows = append(rows, []string{c.Country, strconv.Itoa(c.Coins)})
		}
		md.Table(markdown.TableSet{Header: []string{"Country", "Coins"}, Rows: rows})
		md.PlainText("")
	}

	md.H2("Coins")
	md.PlainText("")
	rows := ListRows(records)
	for i, rec := range records {
		if rec.Failed() {
			rows[i][len(rows[i])-1] = "error: " + rec.Error
		}
	}
	md.Table(markdown.TableSet{Header: ListHeader, Rows: rows})
	md.PlainText("")

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated %s*", generated.Format("2006-01-02 15:04"))

	if err := md.Build(); err != nil {
		return fmt.Errorf("failed to write markdown: %w", err)
	}
	return nil
}

func textPtr(t models.Text) *string {
	if !t.Valid {
		return nil
	}
	v := t.Value
	return &v
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
