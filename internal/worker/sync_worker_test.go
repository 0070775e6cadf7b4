package worker

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	applog "kakeibo/internal/log"
	"kakeibo/internal/sheets/memory"
	"kakeibo/internal/storage"
)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Output: &bytes.Buffer{}})
}

func sheetRows() []core.ExpenseRecord {
	return []core.ExpenseRecord{
		{DateText: "2024/2/10", Category: "食費", Spender: "Mom", Amount: "1000"},
		{DateText: "2024/2/11", Category: "交通費", Spender: "Dad", Amount: "300"},
		{DateText: "2024/3/1", Category: "食費", Spender: "Dad", Amount: "50"},
	}
}

func newMirror(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatalf("open mirror: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestHandleRecordChangedMirrorsSheet(t *testing.T) {
	ctx := context.Background()
	sheet := memory.New(sheetRows()...)
	mirror := newMirror(t)
	w := NewSyncWorker(sheet, mirror, quietLogger())

	if err := w.HandleRecordChanged(ctx, amqp.NewRecordChangedMessage(amqp.OpCreated, 0, "2024/3/1")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got, _ := mirror.ReadAll(ctx)
	if len(got) != 3 || got[2].Amount != "50" {
		t.Fatalf("mirror contents %+v", got)
	}

	// A delete upstream shifts rows; the mirror follows after the next message.
	_ = sheet.Delete(ctx, 2)
	if err := w.HandleRecordChanged(ctx, amqp.NewRecordChangedMessage(amqp.OpDeleted, 2, "2024/2/10")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got, _ = mirror.ReadAll(ctx)
	if len(got) != 2 || got[0].Category != "交通費" || got[0].Position != 2 {
		t.Fatalf("mirror after delete %+v", got)
	}
}

type failingReader struct{}

func (failingReader) ReadAll(context.Context) ([]core.ExpenseRecord, error) {
	return nil, errors.New("quota exceeded")
}

func TestSyncErrorLeavesMirror(t *testing.T) {
	ctx := context.Background()
	mirror := newMirror(t)
	_ = mirror.ReplaceAll(ctx, sheetRows(), time.Now())

	w := NewSyncWorker(failingReader{}, mirror, quietLogger())
	if err := w.Sync(ctx); err == nil {
		t.Fatal("expected error")
	}
	got, _ := mirror.ReadAll(ctx)
	if len(got) != 3 {
		t.Errorf("failed sync must not touch the mirror, got %d rows", len(got))
	}
}

func TestStartupSyncCheck(t *testing.T) {
	ctx := context.Background()
	mirror := newMirror(t)
	w := NewSyncWorker(memory.New(sheetRows()...), mirror, quietLogger())
	now := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.StartupSyncCheck(ctx, time.Hour); err != nil {
		t.Fatalf("first check: %v", err)
	}
	state, ok, _ := mirror.LastSync(ctx)
	if !ok || !state.SyncedAt.Equal(now) || state.RowCount != 3 {
		t.Fatalf("unexpected state %+v ok=%v", state, ok)
	}

	// Fresh mirror: no sync, so the recorded time stays the same.
	now = now.Add(30 * time.Minute)
	_ = w.StartupSyncCheck(ctx, time.Hour)
	state, _, _ = mirror.LastSync(ctx)
	if !state.SyncedAt.Equal(now.Add(-30 * time.Minute)) {
		t.Errorf("fresh mirror was resynced")
	}

	now = now.Add(2 * time.Hour)
	_ = w.StartupSyncCheck(ctx, time.Hour)
	state, _, _ = mirror.LastSync(ctx)
	if !state.SyncedAt.Equal(now) {
		t.Errorf("stale mirror was not resynced")
	}
}

func TestSyncWorkerLifecycle(t *testing.T) {
	w := NewSyncWorker(memory.New(), newMirror(t), quietLogger())
	ctx := context.Background()

	if w.IsRunning() {
		t.Fatal("should not be running initially")
	}
	if err := w.Start(ctx, 10*time.Millisecond); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.Start(ctx, 10*time.Millisecond); err == nil {
		t.Error("second start should fail")
	}
	time.Sleep(30 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if w.IsRunning() {
		t.Error("should not be running after stop")
	}
}
