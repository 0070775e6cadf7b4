package backend

import (
	"context"

	ports "kakeibo/internal/sheets"
)

// CleanupFunc releases whatever the backend holds open.
type CleanupFunc func() error

// BackendResult is a ready store plus the hooks the server needs around it.
type BackendResult struct {
	Store ports.Store

	// Ready reports whether the store can serve requests. Nil means always.
	Ready func(context.Context) error

	// Logout discards stored credentials. Nil when the backend has none.
	Logout func(context.Context) error

	Cleanup CleanupFunc
}

// Close runs Cleanup when there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// BackendType names where records are kept.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
