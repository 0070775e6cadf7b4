package http

import (
	"context"
	"errors"
	"net/http"

	applog "kakeibo/internal/log"
	"kakeibo/internal/session"
)

type recordResponse struct {
	Record recordJSON `json:"record"`
	// Warning is set when the change was saved but the ledger could not be
	// reloaded afterwards.
	Warning string `json:"warning,omitempty"`
	// Snapshot is the ledger generation the record's row number belongs to.
	Snapshot uint64 `json:"snapshot"`
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	entry, err := parseEntry(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	rec, err := s.service.Create(ctx, entry)
	if err != nil && !errors.Is(err, session.ErrReloadFailed) {
		writeError(w, r, err)
		return
	}
	gen := s.service.Session().Generation()
	NewJSONResponse().Status(http.StatusCreated).Header("ETag", etag(gen)).Body(recordResponse{
		Record:   toRecordJSON(rec),
		Warning:  reloadWarning(ctx, err),
		Snapshot: gen,
	}).Write(w)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	pos, err := parseRow(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := parseSnapshot(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := parseEntry(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	rec, err := s.service.Update(ctx, snap, pos, entry)
	if err != nil && !errors.Is(err, session.ErrReloadFailed) {
		writeError(w, r, err)
		return
	}
	gen := s.service.Session().Generation()
	NewJSONResponse().Header("ETag", etag(gen)).Body(recordResponse{
		Record:   toRecordJSON(rec),
		Warning:  reloadWarning(ctx, err),
		Snapshot: gen,
	}).Write(w)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	pos, err := parseRow(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := parseSnapshot(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	if err := s.service.Delete(ctx, snap, pos); err != nil {
		if !errors.Is(err, session.ErrReloadFailed) {
			writeError(w, r, err)
			return
		}
		reloadWarning(ctx, err)
	}
	w.Header().Set("ETag", etag(s.service.Session().Generation()))
	w.WriteHeader(http.StatusNoContent)
}

// handleReload rereads the store and serves the session's month.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	if err := s.service.Reload(ctx); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeLedger(w, r, s.service.Session().Cursor())
}

// handleLogout forgets the snapshot and the credentials. The next request
// will need a fresh login.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.service.Session().Reset()
	if s.logout != nil {
		if err := s.logout(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Logged out")
	w.WriteHeader(http.StatusNoContent)
}

func reloadWarning(ctx context.Context, err error) string {
	if err == nil {
		return ""
	}
	applog.FromContext(ctx).WarnContext(ctx, "Change saved without reload", applog.FieldError, err)
	return "saved, but the ledger could not be refreshed"
}
