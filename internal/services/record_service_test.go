package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	applog "kakeibo/internal/log"
	"kakeibo/internal/session"
	"kakeibo/internal/sheets/memory"
)

var testOptions = core.Options{
	Categories:     []string{"食費", "交通費", "日用品"},
	PaymentMethods: []string{"現金", "クレジットカード"},
	Users:          []string{"Mom", "Dad"},
}

type fakePublisher struct {
	msgs []*amqp.RecordChangedMessage
	err  error
}

func (f *fakePublisher) PublishRecordChanged(_ context.Context, msg *amqp.RecordChangedMessage) error {
	f.msgs = append(f.msgs, msg)
	return f.err
}

func newTestService(recs ...core.ExpenseRecord) (*RecordService, *memory.Store, *fakePublisher) {
	now := time.Date(2024, time.March, 20, 9, 30, 0, 0, time.UTC)
	store := memory.New(recs...)
	logger := applog.New(applog.Config{Output: &bytes.Buffer{}})
	sess := session.New(store, session.WithClock(func() time.Time { return now }), session.WithLogger(logger))
	pub := &fakePublisher{}
	svc := NewRecordService(sess, testOptions, pub, logger)
	svc.now = func() time.Time { return now }
	return svc, store, pub
}

func entry(date, amount string) core.Entry {
	return core.Entry{Date: date, Category: "食費", PaymentMethod: "現金", Spender: "Mom", Amount: amount, Description: "lunch"}
}

func TestRecordService_Create(t *testing.T) {
	svc, store, pub := newTestService()
	ctx := context.Background()

	rec, err := svc.Create(ctx, entry("2024-03-18", "1,200"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.DateText != "2024/3/18" || rec.CreatedAt != "2024-03-20T09:30:00Z" {
		t.Errorf("unexpected record %+v", rec)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 stored row, got %d", store.Len())
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Operation != amqp.OpCreated {
		t.Fatalf("expected one created event, got %+v", pub.msgs)
	}

	l, err := svc.Ledger(ctx, core.Cursor{Year: 2024, Month: time.March})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if len(l.View.Visible) != 1 || l.Summary.Total.Cents != 120000 {
		t.Errorf("ledger total = %s", l.Summary.Total)
	}
}

func TestRecordService_CreateValidation(t *testing.T) {
	svc, store, pub := newTestService()
	ctx := context.Background()

	tests := []struct {
		name  string
		entry core.Entry
		want  error
	}{
		{"bad date", entry("yesterday", "100"), core.ErrInvalidDate},
		{"bad amount", entry("2024-03-01", "abc"), core.ErrInvalidAmount},
		{"negative amount", entry("2024-03-01", "-5"), core.ErrInvalidAmount},
		{"unknown category", core.Entry{Date: "2024-03-01", Category: "家賃", PaymentMethod: "現金", Spender: "Mom", Amount: "1"}, core.ErrUnknownOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.entry); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
	if store.Len() != 0 || len(pub.msgs) != 0 {
		t.Errorf("invalid entries must not be stored or published")
	}
}

func TestRecordService_UpdateKeepsCreatedAt(t *testing.T) {
	svc, _, pub := newTestService(core.ExpenseRecord{CreatedAt: "2024-03-01T08:00:00Z", DateText: "2024/3/1", Category: "食費", Spender: "Mom", Amount: "100"})
	ctx := context.Background()

	gen := currentSnapshot(t, svc)
	rec, err := svc.Update(ctx, gen, 2, entry("2024/3/2", "300"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if rec.CreatedAt != "2024-03-01T08:00:00Z" {
		t.Errorf("createdAt changed to %q", rec.CreatedAt)
	}
	got, _ := svc.Session().Record(ctx, 2)
	if got.Amount != "300" || got.DateText != "2024/3/2" {
		t.Errorf("stored row not updated: %+v", got)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Operation != amqp.OpUpdated || pub.msgs[0].Row != 2 {
		t.Errorf("unexpected events %+v", pub.msgs)
	}

	if _, err := svc.Update(ctx, currentSnapshot(t, svc), 9, entry("2024/3/2", "1")); !errors.Is(err, session.ErrStaleRowPosition) {
		t.Errorf("expected ErrStaleRowPosition, got %v", err)
	}
	// The update reloaded the snapshot, so gen no longer names it.
	if _, err := svc.Update(ctx, gen, 2, entry("2024/3/2", "1")); !errors.Is(err, session.ErrStaleRowPosition) {
		t.Errorf("expected ErrStaleRowPosition for an old snapshot, got %v", err)
	}
}

func TestRecordService_Delete(t *testing.T) {
	svc, store, pub := newTestService(
		core.ExpenseRecord{DateText: "2024/3/1", Category: "食費", Spender: "Mom", Amount: "100"},
		core.ExpenseRecord{DateText: "2024/3/2", Category: "食費", Spender: "Dad", Amount: "200"},
	)
	ctx := context.Background()

	if err := svc.Delete(ctx, currentSnapshot(t, svc), 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 row left")
	}
	// The old row 3 is now row 2; row 3 no longer exists.
	if err := svc.Delete(ctx, currentSnapshot(t, svc), 3); !errors.Is(err, session.ErrStaleRowPosition) {
		t.Errorf("expected ErrStaleRowPosition, got %v", err)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Operation != amqp.OpDeleted || pub.msgs[0].Date != "2024/3/1" {
		t.Errorf("unexpected events %+v", pub.msgs)
	}
}

func TestRecordService_PublishFailureIsNotFatal(t *testing.T) {
	svc, store, pub := newTestService()
	pub.err = errors.New("broker down")

	if _, err := svc.Create(context.Background(), entry("2024-03-01", "100")); err != nil {
		t.Fatalf("publish failure must not fail create: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("row not stored")
	}
}

func TestRecordService_Reload(t *testing.T) {
	svc, store, pub := newTestService()
	ctx := context.Background()
	_ = store.Append(ctx, core.ExpenseRecord{DateText: "2024/3/3", Category: "食費", Spender: "Mom", Amount: "50"})

	if err := svc.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	l, _ := svc.Ledger(ctx, core.Cursor{Year: 2024, Month: time.March})
	if len(l.View.Visible) != 1 {
		t.Errorf("external append not visible after reload")
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Operation != amqp.OpReload {
		t.Errorf("unexpected events %+v", pub.msgs)
	}
}

// currentSnapshot reads the ledger the way a client would before editing.
func currentSnapshot(t *testing.T, svc *RecordService) uint64 {
	t.Helper()
	l, err := svc.Ledger(context.Background(), core.Cursor{Year: 2024, Month: time.March})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	return l.Snapshot
}
