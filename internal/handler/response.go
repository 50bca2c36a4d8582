package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/ticket-inventory/internal/model"
)

// Error codes carried in the response envelope.
const (
	CodeNotFound             = "NOT_FOUND"
	CodeAlreadyRegistered    = "ALREADY_REGISTERED"
	CodeEventFull            = "EVENT_FULL"
	CodeInsufficientCapacity = "INSUFFICIENT_CAPACITY"
	CodeInvalidQuantity      = "INVALID_QUANTITY"
	CodeInvalidPrice         = "INVALID_PRICE"
	CodeEventClosed          = "EVENT_CLOSED"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeTooManyRequests      = "TOO_MANY_REQUESTS"
	CodeInternalError        = "INTERNAL_ERROR"
)

// Response is the envelope of every API response.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo describes a failed request.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, Response{Error: &ErrorInfo{Code: code, Message: msg}})
}

// writeDomainError maps a service error onto a status and code. Unknown
// errors are logged and reported without their text.
func writeDomainError(w http.ResponseWriter, log *zap.Logger, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		writeError(w, status, code, "internal server error")
		return
	}
	writeError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	var capErr *model.CapacityError
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, model.ErrAlreadyRegistered):
		return http.StatusConflict, CodeAlreadyRegistered
	case errors.Is(err, model.ErrEventFull):
		return http.StatusConflict, CodeEventFull
	case errors.As(err, &capErr), errors.Is(err, model.ErrInsufficientCapacity):
		return http.StatusConflict, CodeInsufficientCapacity
	case errors.Is(err, model.ErrInvalidQuantity):
		return http.StatusBadRequest, CodeInvalidQuantity
	case errors.Is(err, model.ErrInvalidPrice):
		return http.StatusBadRequest, CodeInvalidPrice
	case errors.Is(err, model.ErrEventClosed):
		return http.StatusConflict, CodeEventClosed
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, CodeValidationFailed
	default:
		return http.StatusInternalServerError, CodeInternalError
	}
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
