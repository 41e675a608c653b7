package console

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/numislab/coincataloger/internal/cataloging"
	"github.com/numislab/coincataloger/internal/models"
)

// Reporter prints batch progress, one line per coin.
type Reporter struct {
	w           io.Writer
	costPerCoin float64
	done        int

	ok   *color.Color
	fail *color.Color
	dim  *color.Color
}

// NewReporter writes to w. Colors are used only when w is a terminal.
func NewReporter(w io.Writer, costPerCoin float64) *Reporter {
	r := &Reporter{
		w:           w,
		costPerCoin: costPerCoin,
		ok:          color.New(color.FgGreen),
		fail:        color.New(color.FgRed),
		dim:         color.New(color.Faint),
	}
	r.SetColor(IsTerminal(w))
	return r
}

// SetColor forces colored output on or off.
func (r *Reporter) SetColor(enabled bool) {
	for _, c := range []*color.Color{r.ok, r.fail, r.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

func (r *Reporter) Start(total int) {
	r.done = 0
	fmt.Fprintf(r.w, "Found %d coins to analyze\n", total)
	if r.costPerCoin > 0 {
		fmt.Fprintf(r.w, "%s\n", r.dim.Sprintf("Estimated cost: ~$%.2f", EstimateCost(total, r.costPerCoin)))
	}
	fmt.Fprintln(r.w)
}

func (r *Reporter) UnitDone(unit models.CoinUnit, record models.CoinRecord, total int) {
	r.done++
	prefix := fmt.Sprintf("[%d/%d] Coin #%d (%s, %s)...", r.done, total, unit.ID, unit.Face, unit.Reverse)
	if record.Failed() {
		fmt.Fprintf(r.w, "%s %s\n", prefix, r.fail.Sprintf("✗ Error: %s", record.Error))
		return
	}
	fmt.Fprintf(r.w, "%s %s\n", prefix, r.ok.Sprintf("✓ %s", record.Label()))
}

func (r *Reporter) Finish(summary cataloging.Summary) {
	fmt.Fprintf(r.w, "\n%d/%d coins analyzed successfully\n", summary.Succeeded, summary.Total)
	if summary.Failed > 0 {
		fmt.Fprintln(r.w, r.fail.Sprintf("%d coins failed", summary.Failed))
	}
}

// EstimateCost returns the approximate USD cost of analyzing coins.
func EstimateCost(coins int, perCoin float64) float64 {
	return float64(coins) * perCoin
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
