package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/traceledger/internal/api"
	"github.com/wolfeidau/traceledger/internal/auth"
	"github.com/wolfeidau/traceledger/internal/logger"
	"github.com/wolfeidau/traceledger/internal/models"
	"github.com/wolfeidau/traceledger/internal/sequencer"
)

// StatusForKind maps a domain error kind to an HTTP status.
func StatusForKind(kind models.Kind) int {
	switch kind {
	case models.KindInvalidInput, models.KindEmptyField:
		return http.StatusBadRequest
	case models.KindPermissionDenied:
		return http.StatusForbidden
	case models.KindNotFound, models.KindNotRegistered:
		return http.StatusNotFound
	case models.KindAlreadyExists, models.KindAlreadyRegistered, models.KindAlreadyActive:
		return http.StatusConflict
	case models.KindNotActive:
		return http.StatusGone
	case models.KindLimitExceeded:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := models.KindOf(err)
	if kind == "" {
		status := http.StatusInternalServerError
		msg := "internal error"
		if errors.Is(err, sequencer.ErrStopped) {
			status = http.StatusServiceUnavailable
			msg = "service is shutting down"
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
		writeJSON(w, status, api.ErrorResponse{Error: msg, Kind: api.KindInternal})
		return
	}
	writeJSON(w, StatusForKind(kind), api.ErrorResponse{Error: err.Error(), Kind: string(kind)})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: msg, Kind: string(models.KindInvalidInput)})
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// caller returns the authenticated caller for a mutation, writing a 401
// when there is none.
func caller(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	id, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{
			Error: "missing caller identity",
			Kind:  api.KindUnauthenticated,
		})
		return "", false
	}
	logger.SetCaller(w, id.String())
	return id, true
}

// orEmpty keeps empty lists as [] rather than null in responses.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
