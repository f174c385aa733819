package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/newtron-network/fabricplan/pkg/util"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// ErrorInfo is the body of every non-2xx response that is not an engine
// result.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// ErrorResponse wraps ErrorInfo on the wire.
type ErrorResponse struct {
	Error ErrorInfo `json:"error"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes an ErrorResponse carrying the request id.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	_ = WriteJSON(w, statusCode, ErrorResponse{Error: ErrorInfo{
		Code:      code,
		Message:   message,
		RequestID: GetRequestID(r.Context()),
	}})
}

// WriteErrorFrom maps err onto a status code using the util sentinels.
func WriteErrorFrom(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, util.ErrProfileNotFound):
		status, code = http.StatusNotFound, "profile_not_found"
	case errors.Is(err, util.ErrValidationFailed), errors.Is(err, util.ErrInvalidConfig):
		status, code = http.StatusBadRequest, "validation_error"
	}
	GetLogger(r.Context()).WithError(err).Debug("request rejected")
	WriteError(w, r, status, code, err.Error())
}

// ParseJSONRequest decodes the request body into v, rejecting unknown fields.
func ParseJSONRequest(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("request body is empty: %w", util.ErrInvalidConfig)
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty: %w", util.ErrInvalidConfig)
		}
		return fmt.Errorf("decoding request: %v: %w", err, util.ErrInvalidConfig)
	}
	return nil
}
