package valuation

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/numislab/coincataloger/internal/models"
)

// ErrCoinNotFound is returned when a selection names an unknown ID.
var ErrCoinNotFound = errors.New("no coin with that id")

// Mode selects which coins a session walks through.
type Mode int

const (
	ModeAll Mode = iota + 1
	ModeMissing
	ModeByID
)

// ParseMode accepts the names used on the command line.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "all":
		return ModeAll, nil
	case "missing", "":
		return ModeMissing, nil
	case "id":
		return ModeByID, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (expected all, missing or id)", s)
	}
}

// Source is a price reference the operator can cite.
type Source struct {
	Name    string
	BaseURL string
}

// Sources are offered in this order; the last one is free-form.
var Sources = []Source{
	{Name: "Numista", BaseURL: "https://en.numista.com"},
	{Name: "CGB.fr", BaseURL: "https://www.cgb.fr"},
	{Name: "Argus2euros", BaseURL: "https://argus2euros.fr"},
	{Name: "Other reliable source"},
}

const (
	DefaultCurrency  = "EUR"
	DefaultCondition = "TTB"
	dateLayout       = "2006-01-02"
	rule             = 80
)

// Opener opens a URL for the operator, usually in a browser.
type Opener func(url string) error

// Session is one interactive valuation pass.
type Session struct {
	in   *bufio.Reader
	out  io.Writer
	open Opener
	now  func() time.Time
}

// Option customizes a session.
type Option func(*Session)

// WithOpener replaces the browser opener.
func WithOpener(o Opener) Option {
	return func(s *Session) {
		if o != nil {
			s.open = o
		}
	}
}

// WithClock sets the clock used for last_updated.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSession(in io.Reader, out io.Writer, opts ...Option) *Session {
	s := &Session{
		in:   bufio.NewReader(in),
		out:  out,
		open: OpenBrowser,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is the outcome of Run. Records is a copy of the input with the
// accepted valuations attached.
type Result struct {
	Records []models.CoinRecord
	Added   int
	Stopped bool
}

// Modified reports whether anything should be saved.
func (r Result) Modified() bool {
	return r.Added > 0
}

// Stats counts valuations across a catalog.
type Stats struct {
	Total   int
	Valued  int
	Missing int
}

// Select returns the indexes of records to process.
func Select(records []models.CoinRecord, mode Mode, id int) ([]int, error) {
	var idx []int
	for i, rec := range records {
		switch mode {
		case ModeAll:
			idx = append(idx, i)
		case ModeMissing:
			if rec.Valuation == nil {
				idx = append(idx, i)
			}
		case ModeByID:
			if rec.ID == id {
				idx = append(idx, i)
			}
		default:
			return nil, fmt.Errorf("invalid mode %d", mode)
		}
	}
	if mode == ModeByID && len(idx) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrCoinNotFound, id)
	}
	return idx, nil
}

// Count returns the valuation statistics for records.
func Count(records []models.CoinRecord) Stats {
	stats := Stats{Total: len(records)}
	for _, rec := range records {
		if rec.Valuation != nil {
			stats.Valued++
		}
	}
	stats.Missing = stats.Total - stats.Valued
	return stats
}

// SearchURL builds a Numista catalogue search for the record's value,
// year, country and currency.
func SearchURL(rec models.CoinRecord) string {
	q := url.Values{}
	q.Set("ct", "coin")
	q.Set("mode", "simplifie")
	q.Set("se", SearchQuery(rec))
	return "https://en.numista.com/catalogue/index.php?" + q.Encode()
}

// SearchQuery is the free-text part of SearchURL.
func SearchQuery(rec models.CoinRecord) string {
	var parts []string
	for _, t := range []models.Text{rec.Value, rec.Year, rec.Country, rec.Currency} {
		if v := strings.TrimSpace(t.Value); t.Valid && v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// PromptMode asks which coins to process.
func (s *Session) PromptMode() (Mode, int, error) {
	fmt.Fprintln(s.out, "\nOptions:")
	fmt.Fprintln(s.out, "  1. Process every coin")
	fmt.Fprintln(s.out, "  2. Process only coins without a valuation")
	fmt.Fprintln(s.out, "  3. Process one coin (by ID)")

	choice, err := s.ask("\nChoice (1-3) [2]: ", "2")
	if err != nil {
		return 0, 0, err
	}

	switch choice {
	case "1":
		return ModeAll, 0, nil
	case "2":
		return ModeMissing, 0, nil
	case "3":
		raw, err := s.ask("Coin ID: ", "")
		if err != nil {
			return 0, 0, err
		}
		var id int
		if _, err := fmt.Sscanf(raw, "%d", &id); err != nil {
			return 0, 0, fmt.Errorf("invalid coin id %q", raw)
		}
		return ModeByID, id, nil
	default:
		return 0, 0, fmt.Errorf("invalid choice %q", choice)
	}
}

// Run walks the selected records. Running out of input ends the session
// like a stop request; valuations accepted so far are kept.
func (s *Session) Run(ctx context.Context, records []models.CoinRecord, selected []int) (Result, error) {
	result := Result{Records: make([]models.CoinRecord, len(records))}
	copy(result.Records, records)

	for n, i := range selected {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rec := result.Records[i]
		s.display(rec, n, len(selected))

		val, err := s.coin(rec)
		if errors.Is(err, io.EOF) {
			result.Stopped = true
			return result, nil
		}
		if err != nil {
			return result, err
		}
		if val != nil {
			result.Records[i].Valuation = val
			result.Added++
			fmt.Fprintln(s.out, "\n✓ Valuation added")
			slog.Debug("Valuation added", "id", rec.ID, "source", val.SourceName)
		}

		if n == len(selected)-1 {
			break
		}

		next, err := s.ask("\nContinue with the next coin? (y/n, s to save and quit) [y]: ", "y")
		if errors.Is(err, io.EOF) || next == "n" || next == "s" {
			result.Stopped = true
			return result, nil
		}
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

func (s *Session) coin(rec models.CoinRecord) (*models.Valuation, error) {
	open, err := s.ask("\nOpen Numista search? (y/n) [y]: ", "y")
	if err != nil {
		return nil, err
	}
	if open == "y" {
		query := SearchQuery(rec)
		fmt.Fprintf(s.out, "\nOpening search in the browser...\n   Query: %s\n", query)
		if err := s.open(SearchURL(rec)); err != nil {
			slog.Warn("Unable to open browser", "err", err)
			fmt.Fprintf(s.out, "   %s\n", SearchURL(rec))
		}
	}

	return s.promptValuation()
}

func (s *Session) promptValuation() (*models.Valuation, error) {
	fmt.Fprintln(s.out, "\nVALUATION")
	fmt.Fprintln(s.out, strings.Repeat("-", rule))
	fmt.Fprintln(s.out, "\nAvailable sources:")
	for i, src := range Sources {
		fmt.Fprintf(s.out, "  %d. %s\n", i+1, src.Name)
	}

	choice, err := s.ask(fmt.Sprintf("\nSource (1-%d, or 's' to skip): ", len(Sources)), "")
	if err != nil {
		return nil, err
	}
	if choice == "s" {
		return nil, nil
	}
	var n int
	if _, err := fmt.Sscanf(choice, "%d", &n); err != nil || n < 1 || n > len(Sources) {
		fmt.Fprintln(s.out, "✗ Invalid choice, skipped")
		return nil, nil
	}
	source := Sources[n-1]

	sourceURL, err := s.ask(fmt.Sprintf("\n%s URL (page of this coin): ", source.Name), "")
	if err != nil {
		return nil, err
	}
	if sourceURL == "" {
		fmt.Fprintln(s.out, "✗ URL required, skipped")
		return nil, nil
	}

	price, err := s.ask("Price (e.g. '2.50' or '1-3'): ", "")
	if err != nil {
		return nil, err
	}
	if price == "" {
		fmt.Fprintln(s.out, "✗ Price required, skipped")
		return nil, nil
	}

	currency, err := s.askRaw(fmt.Sprintf("Currency (EUR, USD, ...) [%s]: ", DefaultCurrency), DefaultCurrency)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(s.out, "\nCommon grades: TB (fine), TTB (very fine), SUP (extremely fine), SPL (about uncirculated)")
	condition, err := s.askRaw(fmt.Sprintf("Condition [%s]: ", DefaultCondition), DefaultCondition)
	if err != nil {
		return nil, err
	}

	notes, err := s.askRaw("Optional notes: ", "")
	if err != nil {
		return nil, err
	}

	val := &models.Valuation{
		Price:       price,
		Currency:    currency,
		Condition:   condition,
		SourceName:  source.Name,
		SourceURL:   sourceURL,
		LastUpdated: s.now().Format(dateLayout),
		Notes:       notes,
	}

	fmt.Fprintln(s.out, "\nValuation to add:")
	printValuation(s.out, val)

	confirm, err := s.ask("\nConfirm? (y/n) [y]: ", "y")
	if err != nil {
		return nil, err
	}
	if confirm != "y" {
		fmt.Fprintln(s.out, "✗ Cancelled")
		return nil, nil
	}
	return val, nil
}

func (s *Session) display(rec models.CoinRecord, n, total int) {
	fmt.Fprintln(s.out, "\n"+strings.Repeat("=", rule))
	fmt.Fprintf(s.out, "COIN %d/%d (ID: %d)\n", n+1, total, rec.ID)
	fmt.Fprintln(s.out, strings.Repeat("=", rule))
	fmt.Fprintf(s.out, "Country:   %s\n", rec.Country.Or("N/A"))
	fmt.Fprintf(s.out, "Currency:  %s\n", rec.Currency.Or("N/A"))
	fmt.Fprintf(s.out, "Value:     %s\n", rec.Value.Or("N/A"))
	fmt.Fprintf(s.out, "Year:      %s\n", rec.Year.Or("N/A"))
	fmt.Fprintf(s.out, "Notes:     %s\n", truncate(rec.Notes.Or("N/A"), 100))

	if rec.Valuation != nil {
		fmt.Fprintln(s.out, "\n✓ Existing valuation:")
		printValuation(s.out, rec.Valuation)
	}
	fmt.Fprintln(s.out, strings.Repeat("-", rule))
}

func printValuation(w io.Writer, v *models.Valuation) {
	fmt.Fprintf(w, "  Price:     %s %s\n", v.Price, v.Currency)
	fmt.Fprintf(w, "  Condition: %s\n", v.Condition)
	fmt.Fprintf(w, "  Source:    %s\n", v.SourceName)
	fmt.Fprintf(w, "  URL:       %s\n", v.SourceURL)
	if v.Notes != "" {
		fmt.Fprintf(w, "  Notes:     %s\n", v.Notes)
	}
}

// ask reads a lower-cased answer.
func (s *Session) ask(prompt, def string) (string, error) {
	answer, err := s.askRaw(prompt, def)
	return strings.ToLower(answer), err
}

func (s *Session) askRaw(prompt, def string) (string, error) {
	fmt.Fprint(s.out, prompt)
	line, err := s.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// OpenBrowser opens u with the platform's default handler.
func OpenBrowser(u string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", u)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", u)
	default:
		cmd = exec.Command("xdg-open", u)
	}
	return cmd.Start()
}
