package handlers

import (
	"net/http"
	"strings"
)

// HandlePictures serves the coin photographs under /pictures/.
// http.FileServer rejects paths escaping the directory.
func (h *Handler) HandlePictures() http.Handler {
	files := http.StripPrefix("/pictures/", http.FileServer(http.Dir(h.picturesDir)))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// no directory listings
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	})
}
