package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "vcissuer/pkg/domain-errors"
	"vcissuer/pkg/validation"
)

// maxBodyBytes bounds request bodies. Callback and authorization payloads
// are small JSON objects.
const maxBodyBytes = 64 << 10

// DecodeJSON decodes a JSON request body into T. On failure it writes a
// bad_request response and returns false.
//
//	req, ok := httputil.DecodeJSON[callbackRequest](w, r, h.logger)
//	if !ok {
//	    return
//	}
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	var req T
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode request body",
			"error", err,
			"path", r.URL.Path,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	return &req, true
}

// Normalizable is implemented by request types that trim or canonicalise
// their fields before validation.
type Normalizable interface {
	Normalize()
}

// PrepareRequest normalises req when it supports it and then runs the
// struct tag validator.
func PrepareRequest(req any) error {
	if n, ok := req.(Normalizable); ok {
		n.Normalize()
	}
	return validation.Validate(req)
}

// DecodeAndPrepare is DecodeJSON followed by PrepareRequest.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger)
	if !ok {
		return nil, false
	}
	if err := PrepareRequest(req); err != nil {
		writePrepareError(w, r, logger, err)
		return nil, false
	}
	return req, true
}

// DecodeForm binds an application/x-www-form-urlencoded body through bind
// and validates the result. The token endpoint takes form bodies.
func DecodeForm[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, bind func(get func(string) string) T) (*T, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		logger.WarnContext(r.Context(), "failed to parse form body",
			"error", err,
			"path", r.URL.Path,
		)
		WriteError(w, dErrors.New(dErrors.CodeInvalidRequest, "invalid form body"))
		return nil, false
	}
	req := bind(r.PostForm.Get)
	if err := PrepareRequest(&req); err != nil {
		writePrepareError(w, r, logger, err)
		return nil, false
	}
	return &req, true
}

func writePrepareError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	logger.WarnContext(r.Context(), "invalid request",
		"error", err,
		"path", r.URL.Path,
	)
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		WriteError(w, err)
		return
	}
	WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
}
