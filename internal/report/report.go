package report

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"

	"github.com/numislab/coincataloger/internal/models"
)

const unknown = "?"

// Stats summarizes a catalog.
type Stats struct {
	Total      int
	Recognized int
	Failed     int
	Valued     int
	Countries  []CountryCount
}

// CountryCount is the number of recognized coins attributed to a country.
type CountryCount struct {
	Country string
	Coins   int
}

// Compute gathers catalog statistics. Countries are grouped by their
// case-folded name, so "france" and "France" count together under the
// first spelling seen.
func Compute(records []models.CoinRecord) Stats {
	stats := Stats{Total: len(records)}

	fold := cases.Fold()
	index := map[string]int{}

	for _, rec := range records {
		if rec.Valuation != nil {
			stats.Valued++
		}
		if rec.Failed() {
			stats.Failed++
			continue
		}
		stats.Recognized++

		name := strings.TrimSpace(rec.Country.Or(""))
		if name == "" {
			name = unknown
		}
		key := fold.String(name)
		if i, ok := index[key]; ok {
			stats.Countries[i].Coins++
			continue
		}
		index[key] = len(stats.Countries)
		stats.Countries = append(stats.Countries, CountryCount{Country: name, Coins: 1})
	}

	sort.SliceStable(stats.Countries, func(i, j int) bool {
		if stats.Countries[i].Coins != stats.Countries[j].Coins {
			return stats.Countries[i].Coins > stats.Countries[j].Coins
		}
		return stats.Countries[i].Country < stats.Countries[j].Country
	})
	return stats
}

// ListRows renders records as table rows: id, country, value, year,
// valuation, status.
func ListRows(records []models.CoinRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			strconv.Itoa(rec.ID),
			rec.Country.Or(unknown),
			rec.Value.Or(unknown),
			rec.Year.Or(unknown),
			valuationText(rec.Valuation),
			status(rec),
		})
	}
	return rows
}

// ListHeader is the header matching ListRows.
var ListHeader = []string{"ID", "Country", "Value", "Year", "Valuation", "Status"}

// List renders the catalog as a table.
func List(records []models.CoinRecord) string {
	return renderTable(ListHeader, ListRows(records), map[int]bool{0: true})
}

// StatsTables renders the totals and per-country counts.
func StatsTables(stats Stats) string {
	totals := renderTable([]string{"Metric", "Count"}, [][]string{
		{"Coins", strconv.Itoa(stats.Total)},
		{"Recognized", strconv.Itoa(stats.Recognized)},
		{"Failed", strconv.Itoa(stats.Failed)},
		{"With valuation", strconv.Itoa(stats.Valued)},
		{"Without valuation", strconv.Itoa(stats.Total - stats.Valued)},
	}, map[int]bool{1: true})

	if len(stats.Countries) == 0 {
		return totals
	}

	rows := make([][]string, 0, len(stats.Countries))
	for _, c := range stats.Countries {
		rows = append(rows, []string{c.Country, strconv.Itoa(c.Coins)})
	}
	return totals + "\n" + renderTable([]string{"Country", "Coins"}, rows, map[int]bool{1: true})
}

func renderTable(headers []string, rows [][]string, rightAligned map[int]bool) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if rightAligned[i] {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func valuationText(v *models.Valuation) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(v.Price + " " + v.Currency + " (" + v.Condition + ")")
}

func status(rec models.CoinRecord) string {
	if rec.Failed() {
		return "error"
	}
	if rec.AIGenerated != nil && !*rec.AIGenerated {
		return "edited"
	}
	return "ok"
}
