package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/numislab/coincataloger/internal/models"
	"github.com/numislab/coincataloger/internal/storage"
)

const (
	maxFieldLen = 100
	maxNotesLen = 500
)

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// EditRequest carries the editable fields of a coin. Missing fields are
// treated as empty.
type EditRequest struct {
	Country  string `json:"country"`
	Currency string `json:"currency"`
	Value    string `json:"value"`
	Year     string `json:"year"`
	Notes    string `json:"notes"`
}

// Validate checks field lengths and the year format.
func (e EditRequest) Validate() error {
	var errs []error
	for _, f := range []struct{ name, value string }{
		{"country", e.Country},
		{"currency", e.Currency},
		{"value", e.Value},
	} {
		if utf8.RuneCountInString(f.value) > maxFieldLen {
			errs = append(errs, fmt.Errorf("%s must be at most %d characters", f.name, maxFieldLen))
		}
	}
	if utf8.RuneCountInString(e.Notes) > maxNotesLen {
		errs = append(errs, fmt.Errorf("notes must be at most %d characters", maxNotesLen))
	}
	if e.Year != "" && !yearPattern.MatchString(e.Year) {
		errs = append(errs, errors.New("year must be empty or YYYY"))
	}
	return errors.Join(errs...)
}

// Apply writes the request onto rec and reports whether anything changed.
// An empty year becomes null and empty notes are dropped. A manual edit
// also clears a recognition error.
func (e EditRequest) Apply(rec *models.CoinRecord) bool {
	next := models.Fields{
		Country:  models.NewText(e.Country),
		Currency: models.NewText(e.Currency),
		Value:    models.NewText(e.Value),
		Year:     models.NullText(),
	}
	if e.Year != "" {
		next.Year = models.NewText(e.Year)
	}
	if e.Notes != "" {
		next.Notes = models.NewText(e.Notes)
	}

	if rec.Country.Or("") == e.Country &&
		rec.Currency.Or("") == e.Currency &&
		rec.Value.Or("") == e.Value &&
		rec.Year.Or("") == e.Year &&
		rec.Notes.Or("") == e.Notes {
		return false
	}

	edited := false
	rec.Fields = next
	rec.Error = ""
	rec.AIGenerated = &edited
	return true
}

func (h *Handler) HandleCoins(w http.ResponseWriter, r *http.Request) {
	coins := h.catalog.Search(r.URL.Query().Get("q"))
	if coins == nil {
		coins = []models.CoinRecord{}
	}
	h.writeJSON(w, coins)
}

func (h *Handler) HandleCoin(w http.ResponseWriter, r *http.Request) {
	id, ok := h.coinID(w, r)
	if !ok {
		return
	}

	coin, found := h.catalog.Get(id)
	if !found {
		h.writeError(w, "Coin not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, coin)
}

func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	id, ok := h.coinID(w, r)
	if !ok {
		return
	}

	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	coin, err := h.catalog.Update(r.Context(), id, req.Apply)
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, "Coin not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.writeError(w, "Failed to save coin: "+err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("Coin metadata edited", "id", id, "label", coin.Label())
	h.writeJSON(w, coin)
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if h.password == "" {
		h.writeError(w, "Editing is disabled", http.StatusForbidden)
		return false
	}

	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || subtle.ConstantTimeCompare([]byte(token), []byte(h.password)) != 1 {
		w.Header().Set("WWW-Authenticate", `Bearer realm="coincataloger"`)
		h.writeError(w, "Not authenticated", http.StatusUnauthorized)
		return false
	}
	return true
}

func (h *Handler) coinID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 {
		h.writeError(w, "Invalid coin id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
