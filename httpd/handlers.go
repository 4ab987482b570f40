package httpd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"cryogon/rizumu-fetch/app"
	"cryogon/rizumu-fetch/downloader"
	"cryogon/rizumu-fetch/resolver"

	"go.uber.org/zap"
)

type Server struct {
	App *app.App
	log *zap.Logger
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, resolver.ErrUnsupportedSource), errors.Is(err, resolver.ErrEmptyQuery):
		return http.StatusBadRequest
	}

	switch downloader.Kind(err) {
	case "invalid_request":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "credentials_required":
		return http.StatusForbidden
	case "transient_fetch", "extraction_failed":
		return http.StatusBadGateway
	case "dropped":
		return http.StatusConflict
	case "closed":
		return http.StatusServiceUnavailable
	case "canceled":
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondWithError sends the error text unchanged; the credentials message
// carries the steps a user needs to follow.
func (s *Server) respondWithError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.Int("status", code), zap.Error(err))
	}
	respondWithJSON(w, code, errorResponse{Error: err.Error(), Kind: downloader.Kind(err)})
}

func badRequest(w http.ResponseWriter, msg string) {
	respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Kind: "bad_request"})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("failed to encode JSON response", zap.Error(err))
	}
}
