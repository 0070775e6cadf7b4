// Package worker keeps the local SQLite mirror in step with the spreadsheet
// and writes month-end archives.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	applog "kakeibo/internal/log"
	ports "kakeibo/internal/sheets"
	"kakeibo/internal/storage"
)

// MirrorStore receives full copies of the spreadsheet.
type MirrorStore interface {
	ReplaceAll(ctx context.Context, recs []core.ExpenseRecord, at time.Time) error
	LastSync(ctx context.Context) (storage.SyncState, bool, error)
}

var _ MirrorStore = (*storage.SQLiteRepository)(nil)

// SyncWorker copies every sheet row into the mirror. It never applies single
// changes: a position in a message may be stale by the time it arrives, so
// each sync rereads the whole sheet.
type SyncWorker struct {
	source ports.RecordReader
	mirror MirrorStore
	now    func() time.Time
	logger *applog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncWorker(source ports.RecordReader, mirror MirrorStore, logger *applog.Logger) *SyncWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &SyncWorker{
		source: source,
		mirror: mirror,
		now:    time.Now,
		logger: logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleRecordChanged is the AMQP handler; any change triggers a full sync.
func (w *SyncWorker) HandleRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error {
	w.logger.InfoContext(ctx, "Processing record change",
		"message_id", msg.ID,
		applog.FieldOperation, msg.Operation,
		applog.FieldRow, msg.Row)
	return w.Sync(ctx)
}

// Sync reads the sheet and replaces the mirror contents.
func (w *SyncWorker) Sync(ctx context.Context) error {
	recs, err := w.source.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("read sheet: %w", err)
	}
	if err := w.mirror.ReplaceAll(ctx, recs, w.now()); err != nil {
		return fmt.Errorf("write mirror: %w", err)
	}
	w.logger.InfoContext(ctx, "Mirror synced", applog.FieldRecordCount, len(recs))
	return nil
}

// StartupSyncCheck syncs when the mirror is empty or older than maxAge. It
// recovers from messages missed while the worker was down.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context, maxAge time.Duration) error {
	state, ok, err := w.mirror.LastSync(ctx)
	if err != nil {
		w.logger.WarnContext(ctx, "Could not read last sync time, syncing", applog.FieldError, err)
		return w.Sync(ctx)
	}
	if !ok {
		w.logger.InfoContext(ctx, "Mirror never synced, loading from sheet")
		return w.Sync(ctx)
	}
	age := w.now().Sub(state.SyncedAt)
	if age > maxAge {
		w.logger.InfoContext(ctx, "Mirror is stale, refreshing",
			"last_sync", state.SyncedAt.Format(time.RFC3339),
			"age", age.Round(time.Minute))
		return w.Sync(ctx)
	}
	w.logger.InfoContext(ctx, "Mirror is fresh",
		applog.FieldRecordCount, state.RowCount,
		"last_sync", state.SyncedAt.Format(time.RFC3339))
	return nil
}

// Start polls the sheet every interval as a backstop for lost messages.
// It returns an error if already running.
func (w *SyncWorker) Start(ctx context.Context, interval time.Duration) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx, interval)
	w.logger.InfoContext(ctx, "Periodic sync started", "interval", interval)
	return nil
}

// Stop ends polling and waits for the loop to exit or ctx to end.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *SyncWorker) runLoop(ctx context.Context, interval time.Duration) {
	defer close(w.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Sync(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic sync failed", applog.FieldError, err)
			}
		}
	}
}
