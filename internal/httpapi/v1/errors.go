package v1

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/tinoosan/posting/internal/dsl"
	"github.com/tinoosan/posting/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "bad_request") }
func notFound(w http.ResponseWriter)               { writeErr(w, http.StatusNotFound, "not_found", "not_found") }

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// invalidRequest reports struct validation failures field by field.
func invalidRequest(w http.ResponseWriter, err error) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		badRequest(w, err.Error())
		return
	}
	fields := make([]fieldError, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fieldError{Field: fe.Namespace(), Rule: fe.Tag()})
	}
	toJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request", Code: "validation_error", Details: fields})
}

// writeServiceErr maps service errors to status codes and stable error codes.
func writeServiceErr(w http.ResponseWriter, err error) {
	var (
		ce  dsl.CompileErrors
		ee  *dsl.EvalError
		ue  *errs.UnbalancedEntry
		ve  *errs.ValidationErrors
		ist *errs.InvalidStateTransition
	)
	switch {
	case errors.As(err, &ce):
		toJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "template does not compile", Code: "compile_error", Details: toCompileErrorItems(ce)})
	case errors.As(err, &ve):
		toJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "validation_error", Details: ve.Violations})
	case errors.As(err, &ue):
		toJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "unbalanced_entry", Details: ue})
	case errors.As(err, &ist):
		toJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "invalid_state_transition", Details: ist})
	case errors.As(err, &ee):
		code := "evaluation_error"
		if errors.Is(err, errs.ErrFieldNotFound) {
			code = "field_not_found"
		}
		toJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: code, Details: ee})
	case errors.Is(err, errs.ErrNotFound):
		notFound(w)
	case errors.Is(err, errs.ErrConflict):
		writeErr(w, http.StatusConflict, "conflict", "conflict")
	case errors.Is(err, errs.ErrForbidden):
		writeErr(w, http.StatusForbidden, "forbidden", "forbidden")
	case errors.Is(err, errs.ErrUnprocessable):
		writeErr(w, http.StatusUnprocessableEntity, err.Error(), "unprocessable")
	case errors.Is(err, errs.ErrInvalid):
		writeErr(w, http.StatusBadRequest, err.Error(), "invalid")
	default:
		writeErr(w, http.StatusInternalServerError, "internal_error", "internal_error")
	}
}
