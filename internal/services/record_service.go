package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	applog "kakeibo/internal/log"
	"kakeibo/internal/session"
)

// Publisher announces store changes. The AMQP client implements it.
type Publisher interface {
	PublishRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error
}

// RecordService validates form entries, applies them through the session and
// announces each change.
type RecordService struct {
	session   *session.Session
	options   core.Options
	publisher Publisher
	now       func() time.Time
	logger    *applog.Logger
	events    *applog.StructuredLogger
}

// NewRecordService wires a service. publisher may be nil when no broker is
// configured.
func NewRecordService(sess *session.Session, opts core.Options, publisher Publisher, logger *applog.Logger) *RecordService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &RecordService{
		session:   sess,
		options:   opts,
		publisher: publisher,
		now:       time.Now,
		logger:    logger.WithComponent(applog.ComponentLedger),
		events:    applog.NewStructuredLogger(logger),
	}
}

// Options returns the configured choice lists.
func (s *RecordService) Options() core.Options {
	return s.options
}

// Session exposes the underlying session for navigation and views.
func (s *RecordService) Session() *session.Session {
	return s.session
}

// Create validates e, appends it and returns the stored record. The returned
// record has no position; positions are read back on reload.
func (s *RecordService) Create(ctx context.Context, e core.Entry) (core.ExpenseRecord, error) {
	if err := e.Validate(s.options); err != nil {
		return core.ExpenseRecord{}, err
	}
	rec := e.Record(s.now())
	err := s.session.Add(ctx, rec)
	if err != nil && !errors.Is(err, session.ErrReloadFailed) {
		return core.ExpenseRecord{}, err
	}
	s.events.LogRecordChanged(ctx, applog.OpCreate, rec)
	s.publish(ctx, amqp.OpCreated, 0, rec.DateText)
	return rec, err
}

// Update replaces the row at pos with e. pos must come from snapshot
// generation gen. The original creation timestamp is kept.
func (s *RecordService) Update(ctx context.Context, gen uint64, pos core.RowPosition, e core.Entry) (core.ExpenseRecord, error) {
	if err := e.Validate(s.options); err != nil {
		return core.ExpenseRecord{}, err
	}
	existing, err := s.session.Record(ctx, pos)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	rec := e.Record(s.now())
	if existing.CreatedAt != "" {
		rec.CreatedAt = existing.CreatedAt
	}
	rec.Position = pos
	err = s.session.Edit(ctx, gen, pos, rec)
	if err != nil && !errors.Is(err, session.ErrReloadFailed) {
		return core.ExpenseRecord{}, err
	}
	s.events.LogRecordChanged(ctx, applog.OpUpdate, rec)
	s.publish(ctx, amqp.OpUpdated, int(pos), rec.DateText)
	return rec, err
}

// Delete removes the row at pos from snapshot generation gen. Every position
// handed out before the call is invalid afterwards.
func (s *RecordService) Delete(ctx context.Context, gen uint64, pos core.RowPosition) error {
	existing, err := s.session.Record(ctx, pos)
	if err != nil {
		return err
	}
	err = s.session.Remove(ctx, gen, pos)
	if err != nil && !errors.Is(err, session.ErrReloadFailed) {
		return err
	}
	s.events.LogRecordChanged(ctx, applog.OpDelete, existing)
	s.publish(ctx, amqp.OpDeleted, int(pos), existing.DateText)
	return err
}

// Reload rereads the store and asks mirrors to do the same.
func (s *RecordService) Reload(ctx context.Context) error {
	if err := s.session.Reload(ctx); err != nil {
		return err
	}
	s.publish(ctx, amqp.OpReload, 0, "")
	return nil
}

// Ledger is one month's view, its display summary, and the snapshot
// generation its row positions belong to.
type Ledger struct {
	View     core.MonthlyView
	Summary  core.Summary
	Snapshot uint64
}

// Ledger computes the view and its display summary for c.
func (s *RecordService) Ledger(ctx context.Context, c core.Cursor) (Ledger, error) {
	v, gen, err := s.session.ViewMonthAt(ctx, c)
	if err != nil {
		return Ledger{}, fmt.Errorf("ledger %d-%02d: %w", c.Year, int(c.Month), err)
	}
	return Ledger{View: v, Summary: v.Summarize(s.options), Snapshot: gen}, nil
}

// publish never fails the caller; the sheet already holds the change.
func (s *RecordService) publish(ctx context.Context, op string, row int, date string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRecordChanged(ctx, amqp.NewRecordChangedMessage(op, row, date)); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish record change",
			applog.FieldOperation, op,
			applog.FieldRow, row,
			applog.FieldError, err)
	}
}
