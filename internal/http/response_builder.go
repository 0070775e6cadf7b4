package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"kakeibo/internal/auth"
	"kakeibo/internal/core"
	"kakeibo/internal/export"
	applog "kakeibo/internal/log"
	"kakeibo/internal/session"
	ports "kakeibo/internal/sheets"
)

// JSONResponse builds a JSON reply with a fluent API.
type JSONResponse struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse starts a 200 response with no body.
func NewJSONResponse() *JSONResponse {
	return &JSONResponse{statusCode: http.StatusOK, headers: make(map[string]string)}
}

func (b *JSONResponse) Status(code int) *JSONResponse {
	b.statusCode = code
	return b
}

func (b *JSONResponse) Header(name, value string) *JSONResponse {
	b.headers[name] = value
	return b
}

// Body sets the value to encode. A nil body sends no content.
func (b *JSONResponse) Body(v any) *JSONResponse {
	b.body = v
	return b
}

func (b *JSONResponse) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(b.body)
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// ErrorResponse builds {"error": code} with an optional human-readable detail.
func ErrorResponse(statusCode int, code, detail string) *JSONResponse {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: code, Detail: detail})
}

// Error codes clients can branch on.
const (
	codeReauthorize      = "reauthorize"
	codeInvalid          = "invalid_request"
	codeStaleRow         = "stale_row"
	codeSnapshotRequired = "snapshot_required"
	codeNotFound         = "not_found"
	codeRateLimited      = "rate_limited"
	codeInternal         = "internal"
)

// writeError maps err to a status and code. Only validation messages are
// echoed back; everything else is logged and reported generically.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, detail := classify(err)
	if status >= http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldError, err,
			applog.FieldPath, r.URL.Path)
	}
	ErrorResponse(status, code, detail).Write(w)
}

func classify(err error) (status int, code, detail string) {
	switch {
	case errors.Is(err, auth.ErrReauthorize):
		return http.StatusUnauthorized, codeReauthorize, ""
	case errors.Is(err, session.ErrStaleRowPosition), errors.Is(err, ports.ErrRowNotFound):
		return http.StatusConflict, codeStaleRow, "the ledger changed; reload and try again"
	case errors.Is(err, errNoSnapshot):
		return http.StatusPreconditionRequired, codeSnapshotRequired, err.Error()
	case errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrUnknownOption),
		errors.Is(err, core.ErrDescriptionLong),
		errors.Is(err, core.ErrInvalidRowNumber),
		errors.Is(err, core.ErrNotPersisted),
		errors.Is(err, export.ErrUnknownFormat),
		errors.Is(err, errBadMonth),
		errors.Is(err, errBadYear),
		errors.Is(err, errFutureMonth),
		errors.Is(err, errBadRow),
		errors.Is(err, errBadSnapshot):
		return http.StatusBadRequest, codeInvalid, err.Error()
	case errors.Is(err, errBadBody):
		return http.StatusBadRequest, codeInvalid, errBadBody.Error()
	default:
		return http.StatusInternalServerError, codeInternal, ""
	}
}
