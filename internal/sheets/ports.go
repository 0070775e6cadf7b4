package sheets

import (
	"context"
	"errors"

	"kakeibo/internal/core"
)

// ErrRowNotFound is returned when a row position is outside the stored rows.
var ErrRowNotFound = errors.New("row not found")

// Ports for outbound adapters.
type (
	// RecordReader returns every stored record, header excluded, each with its
	// current row position.
	RecordReader interface {
		ReadAll(ctx context.Context) ([]core.ExpenseRecord, error)
	}

	RecordAppender interface {
		Append(ctx context.Context, r core.ExpenseRecord) error
	}

	// RecordUpdater rewrites every field of the row at pos.
	RecordUpdater interface {
		Update(ctx context.Context, pos core.RowPosition, r core.ExpenseRecord) error
	}

	// RecordDeleter removes the row at pos. Positions of later rows shift, so
	// callers must reload before using any other position.
	RecordDeleter interface {
		Delete(ctx context.Context, pos core.RowPosition) error
	}

	// Store is the full set of operations a backing store provides.
	Store interface {
		RecordReader
		RecordAppender
		RecordUpdater
		RecordDeleter
	}
)
