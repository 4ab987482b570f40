package httpd

import (
	"net/http"
	"time"

	"cryogon/rizumu-fetch/app"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(a *app.App, log *zap.Logger) http.Handler {
	srv := &Server{
		App: a,
		log: log.Named("httpd"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(srv.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/search", srv.handleSearch())
	r.Get("/library", srv.handleLibrary())

	r.Route("/owners/{ownerID}", func(r chi.Router) {
		r.Post("/downloads", srv.handleCreateDownload())
		r.Get("/queue", srv.handleListPending())
		r.Delete("/queue", srv.handleClearPending())
	})

	r.Get("/jobs/{jobID}", srv.handleGetJob())
	r.Get("/jobs/{jobID}/file", srv.handleJobFile())

	r.Delete("/downloads", srv.handleRemoveDownload())
	r.Delete("/media", srv.handleClearMedia())
	r.Post("/batch", srv.handleBatch())

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
