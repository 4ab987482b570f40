package httpd

import (
	"net/http"
	"strconv"
	"strings"

	"cryogon/rizumu-fetch/store"
)

func (s *Server) handleSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			badRequest(w, "missing q parameter")
			return
		}

		results, err := s.App.Search(r.Context(), q)
		if err != nil {
			s.respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, results)
	}
}

// handleLibrary lists recorded downloads; ?status=Complete|Failed&limit=N.
func (s *Server) handleLibrary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := store.ListOptions{Status: r.URL.Query().Get("status")}
		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n < 0 {
				badRequest(w, "invalid limit")
				return
			}
			opts.Limit = n
		}

		downloads, err := s.App.History(r.Context(), opts)
		if err != nil {
			s.respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, downloads)
	}
}
