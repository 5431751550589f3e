package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ordermesh/tokengate/internal/errors"
)

// errorBody is the envelope every error response uses.
type errorBody struct {
	Error          string      `json:"error"`
	Code           errors.Code `json:"code"`
	Timestamp      string      `json:"timestamp"`
	Solution       string      `json:"solution,omitempty"`
	ValidProviders []string    `json:"validProviders,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code errors.Code, message string) {
	writeJSON(w, status, errorBody{
		Error:     message,
		Code:      code,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// writeRotationError maps a rotation failure onto the HTTP surface. The two
// remediable codes carry an operator hint; everything else is a plain 500.
func writeRotationError(w http.ResponseWriter, err error) {
	body := errorBody{
		Error:     err.Error(),
		Code:      errors.CodeOf(err),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	switch body.Code {
	case errors.CodeInitialTokenExpired:
		body.Solution = "renew the initial refresh token in the environment"
		writeJSON(w, http.StatusUnauthorized, body)
	case errors.CodeTokenRotationFailed:
		body.Solution = "check availability of the provider token endpoint"
		writeJSON(w, http.StatusBadGateway, body)
	default:
		writeJSON(w, http.StatusInternalServerError, body)
	}
}
