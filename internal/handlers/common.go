package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/numislab/coincataloger/internal/storage"
)

type Handler struct {
	catalog     *storage.Catalog
	picturesDir string
	password    string
}

// New serves catalog records and the photographs in picturesDir. Edits
// are refused when password is empty.
func New(catalog *storage.Catalog, picturesDir, password string) *Handler {
	return &Handler{
		catalog:     catalog,
		picturesDir: picturesDir,
		password:    password,
	}
}

// Register installs the gallery routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/coins", h.HandleCoins)
	mux.HandleFunc("GET /api/coins/{id}", h.HandleCoin)
	mux.HandleFunc("PUT /api/coins/{id}", h.HandleEdit)
	mux.Handle("GET /pictures/", h.HandlePictures())
}

// SecurityHeaders sets conservative browser security headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; frame-ancestors 'none'")
		header.Set("X-Content-Type-Options", "nosniff")
		header.Set("X-Frame-Options", "DENY")
		header.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message, "status", code)
	} else {
		slog.Warn(message, "status", code)
	}
	http.Error(w, message, code)
}
