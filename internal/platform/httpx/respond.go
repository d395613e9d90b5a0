// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// Error maps a service error to its stable kind and writes the response.
// Unknown errors collapse to 500 without leaking internals.
func Error(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	title := "unexpected"
	switch {
	case errors.Is(err, shared.ErrNotFound):
		status, title = http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrForbidden):
		status, title = http.StatusForbidden, "forbidden"
	case errors.Is(err, shared.ErrInvalidState):
		status, title = http.StatusConflict, "invalid_state"
	case errors.Is(err, shared.ErrInsufficientStock):
		status, title = http.StatusConflict, "insufficient_stock"
	case errors.Is(err, shared.ErrUnbalanced):
		status, title = http.StatusUnprocessableEntity, "unbalanced"
	case errors.Is(err, shared.ErrConflict):
		status, title = http.StatusConflict, "conflict"
	case errors.Is(err, shared.ErrValidation):
		status, title = http.StatusBadRequest, "validation_error"
	}
	Problem(w, status, title, shared.UserSafeMessage(err))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeValid decodes the JSON request body into target and validates it.
func DecodeValid(r *http.Request, target any) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return err
	}
	return validate.Struct(target)
}

// ValidationProblem writes a field-level validation failure response.
func ValidationProblem(w http.ResponseWriter, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields[fe.Field()] = fe.Tag()
		}
		JSON(w, http.StatusBadRequest, map[string]any{
			"title":  "validation_error",
			"status": http.StatusBadRequest,
			"fields": fields,
		})
		return
	}
	Problem(w, http.StatusBadRequest, "validation_error", "request body is not valid")
}
