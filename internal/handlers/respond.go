package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mediatheque/backend/internal/apierror"
	"github.com/mediatheque/backend/internal/logging"
	"github.com/mediatheque/backend/internal/repositories"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
	}
}

// fail writes the error envelope and logs by severity class.
func fail(w http.ResponseWriter, r *http.Request, e *apierror.Error) {
	logger := logging.FromContext(r.Context())
	switch {
	case e.Status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", e.Status, "code", e.Code)
	default:
		logger.Warn("request rejected", "status", e.Status, "code", e.Code, "message", e.Message)
	}
	apierror.Write(w, r, e)
}

// failInternal logs the underlying cause and writes the generic 500
// envelope; internal detail never reaches the client.
func failInternal(w http.ResponseWriter, r *http.Request, op string, err error) {
	logging.FromContext(r.Context()).Error(op, "error", err)
	apierror.Write(w, r, apierror.Internal())
}

// storeFailure maps repository sentinel errors onto the envelope for
// read paths, where a conflict cannot occur.
func storeFailure(w http.ResponseWriter, r *http.Request, op string, err error, resource string, id any) {
	if errors.Is(err, repositories.ErrNotFound) {
		fail(w, r, apierror.NotFound(resource, id))
		return
	}
	failInternal(w, r, op, err)
}
