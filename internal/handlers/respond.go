// Package handlers exposes the garage over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/apperr"
	log "github.com/sirupsen/logrus"
)

// maxJSONBody bounds ordinary JSON request bodies.
const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

// writeError renders err and logs server-side failures with their cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.FromError(err, apperr.CodeInternal)
	if appErr.Status >= http.StatusInternalServerError {
		log.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"code":   appErr.Code,
		}).Error("Request failed")
	}
	apperr.Write(w, appErr)
}

// decodeJSON reads a JSON body of at most limit bytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.InvalidInput("request body too large", err)
		}
		return apperr.InvalidInput("failed to read request body", err)
	}
	if len(body) == 0 {
		return apperr.InvalidInput("request body is empty", nil)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperr.InvalidInput("invalid JSON", err)
	}
	return nil
}
