package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"kakeibo/internal/auth"
	"kakeibo/internal/core"
	"kakeibo/internal/export"
	"kakeibo/internal/session"
	ports "kakeibo/internal/sheets"
)

func TestJSONResponse(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Test", "1").
		Body(map[string]string{"memo": "<b>&</b>"}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d", w.Code)
	}
	if w.Header().Get("X-Test") != "1" {
		t.Error("custom header missing")
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
	if got := w.Body.String(); got != "{\"memo\":\"<b>&</b>\"}\n" {
		t.Errorf("body = %q", got)
	}
}

func TestJSONResponseWithoutBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 || w.Header().Get("Content-Type") != "" {
		t.Errorf("unexpected response: %d %q %q", w.Code, w.Body.String(), w.Header().Get("Content-Type"))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantDetail bool
	}{
		{"reauthorize", fmt.Errorf("reload: %w", auth.ErrReauthorize), http.StatusUnauthorized, codeReauthorize, false},
		{"stale row", fmt.Errorf("%w: row:9", session.ErrStaleRowPosition), http.StatusConflict, codeStaleRow, true},
		{"row vanished in store", ports.ErrRowNotFound, http.StatusConflict, codeStaleRow, true},
		{"bad amount", core.ErrInvalidAmount, http.StatusBadRequest, codeInvalid, true},
		{"unknown option", fmt.Errorf("%w: category %q", core.ErrUnknownOption, "x"), http.StatusBadRequest, codeInvalid, true},
		{"export format", export.ErrUnknownFormat, http.StatusBadRequest, codeInvalid, true},
		{"body", fmt.Errorf("%w: EOF", errBadBody), http.StatusBadRequest, codeInvalid, true},
		{"future month", errFutureMonth, http.StatusBadRequest, codeInvalid, true},
		{"no snapshot", errNoSnapshot, http.StatusPreconditionRequired, codeSnapshotRequired, true},
		{"bad snapshot", errBadSnapshot, http.StatusBadRequest, codeInvalid, true},
		{"anything else", errors.New("boom"), http.StatusInternalServerError, codeInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, detail := classify(tt.err)
			if status != tt.wantStatus || code != tt.wantCode {
				t.Errorf("classify = %d %q, want %d %q", status, code, tt.wantStatus, tt.wantCode)
			}
			if (detail != "") != tt.wantDetail {
				t.Errorf("detail = %q", detail)
			}
		})
	}
}
