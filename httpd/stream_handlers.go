package httpd

import (
	"net/http"
	"path/filepath"

	"cryogon/rizumu-fetch/downloader"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// handleJobFile serves the downloaded file of a finished job, or 202 while
// the job is still queued or downloading.
func (s *Server) handleJobFile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := s.App.Job(chi.URLParam(r, "jobID"))
		if !ok {
			respondWithJSON(w, http.StatusNotFound, errorResponse{Error: "job not found", Kind: "not_found"})
			return
		}

		switch job.Status() {
		case downloader.StatusPending, downloader.StatusDownloading:
			respondWithJSON(w, http.StatusAccepted, job.Info())
			return
		}

		out, err := job.Result()
		if err != nil {
			s.respondWithError(w, err)
			return
		}

		s.log.Debug("serving file", zap.String("job_id", job.ID), zap.String("path", out.Path))
		w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(out.Path)+`"`)
		http.ServeFile(w, r, out.Path)
	}
}
