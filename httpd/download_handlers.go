package httpd

import (
	"encoding/json"
	"net/http"
	"strings"

	"cryogon/rizumu-fetch/app"
	"cryogon/rizumu-fetch/downloader"
	"cryogon/rizumu-fetch/media"

	"github.com/go-chi/chi/v5"
)

type downloadRequest struct {
	URL        string            `json:"url"`
	Descriptor *media.Descriptor `json:"descriptor"`
	Type       string            `json:"type"`
	Quality    string            `json:"quality"`
}

type downloadResponse struct {
	Job     downloader.JobInfo  `json:"job"`
	Outcome *downloader.Outcome `json:"outcome,omitempty"`
}

// handleCreateDownload queues a download. With ?wait=true it answers only
// once the job is resolved.
func (s *Server) handleCreateDownload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := chi.URLParam(r, "ownerID")

		var req downloadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
		if req.Descriptor == nil && strings.TrimSpace(req.URL) == "" {
			badRequest(w, "url or descriptor is required")
			return
		}
		t, err := media.ParseType(req.Type)
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		job, err := s.App.EnqueueDownload(r.Context(), owner, app.Target{Descriptor: req.Descriptor, URL: req.URL}, app.Options{Type: t, Quality: req.Quality})
		if err != nil {
			s.respondWithError(w, err)
			return
		}

		if r.URL.Query().Get("wait") != "true" {
			respondWithJSON(w, http.StatusAccepted, downloadResponse{Job: job.Info()})
			return
		}

		out, err := job.Wait(r.Context())
		if err != nil {
			s.respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, downloadResponse{Job: job.Info(), Outcome: out})
	}
}

func (s *Server) handleListPending() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pending := s.App.ListPending(chi.URLParam(r, "ownerID"))
		if pending == nil {
			pending = []downloader.Summary{}
		}
		respondWithJSON(w, http.StatusOK, pending)
	}
}

func (s *Server) handleClearPending() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		existed := s.App.ClearPending(chi.URLParam(r, "ownerID"))
		respondWithJSON(w, http.StatusOK, map[string]bool{"cleared": existed})
	}
}

func (s *Server) handleGetJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := s.App.Job(chi.URLParam(r, "jobID"))
		if !ok {
			respondWithJSON(w, http.StatusNotFound, errorResponse{Error: "job not found", Kind: "not_found"})
			return
		}
		respondWithJSON(w, http.StatusOK, job.Info())
	}
}

type removeRequest struct {
	SourceID string `json:"source_id"`
	Title    string `json:"title"`
	Type     string `json:"type"`
}

func (s *Server) handleRemoveDownload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req removeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
		if req.SourceID == "" || req.Title == "" {
			badRequest(w, "source_id and title are required")
			return
		}
		t, err := media.ParseType(req.Type)
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		removed, err := s.App.RemoveDownload(r.Context(), req.SourceID, req.Title, t)
		if err != nil {
			s.respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]bool{"removed": removed})
	}
}

func (s *Server) handleClearMedia() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := media.ParseScope(r.URL.Query().Get("scope"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		if err := s.App.ClearAllDownloads(r.Context(), scope); err != nil {
			s.respondWithError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type batchRequest struct {
	Query    string `json:"query"`
	Owner    string `json:"owner"`
	Type     string `json:"type"`
	Quality  string `json:"quality"`
	MaxItems int    `json:"max_items"`
}

type batchResponse struct {
	Count    int                   `json:"count"`
	Outcomes []*downloader.Outcome `json:"outcomes"`
}

// handleBatch runs the whole batch before answering. Per-item failures are
// visible in the library with status Failed.
func (s *Server) handleBatch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			badRequest(w, "query is required")
			return
		}
		t, err := media.ParseType(req.Type)
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		outcomes, err := s.App.Batch(r.Context(), req.Query, downloader.BatchOptions{
			Owner:    req.Owner,
			Type:     t,
			Quality:  req.Quality,
			MaxItems: req.MaxItems,
		})
		if err != nil {
			s.respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, batchResponse{Count: len(outcomes), Outcomes: outcomes})
	}
}
