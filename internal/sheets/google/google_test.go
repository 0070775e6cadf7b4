package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kakeibo/internal/auth"
	"kakeibo/internal/core"
)

type recorded struct {
	method string
	path   string
	body   string
}

// fakeSheets answers the handful of Sheets endpoints the client uses.
type fakeSheets struct {
	mu     sync.Mutex
	calls  []recorded
	values [][]any
	status int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, recorded{method: r.Method, path: r.URL.Path, body: string(b)})
	status := f.status
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"error":{"code":401,"message":"Request had invalid authentication credentials."}}`)
		return
	}
	switch {
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/values/"):
		_ = json.NewEncoder(w).Encode(map[string]any{"range": "data!A1:G10", "majorDimension": "ROWS", "values": f.values})
	case r.Method == http.MethodGet:
		_, _ = io.WriteString(w, `{"sheets":[{"properties":{"sheetId":0,"title":"Sheet1"}},{"properties":{"sheetId":42,"title":"data"}}]}`)
	default:
		_, _ = io.WriteString(w, `{}`)
	}
}

func newTestClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("sheets service: %v", err)
	}
	c, err := New(svc, Config{SpreadsheetID: "sid"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(nil, Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReadAll(t *testing.T) {
	f := &fakeSheets{values: [][]any{
		{"createdAt", "date", "category", "paymentMethod", "spender", "amount", "description"},
		{"2024-03-01T09:00:00Z", "2024/03/01", "食費", "現金", "Mom", "1,200", "lunch"},
		{},
		{"", "2024/3/5", "交通費", "", "Dad", "300"},
	}}
	c := newTestClient(t, f)

	recs, err := c.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Position != 2 || recs[0].Category != "食費" || recs[0].Money().Cents != 120000 {
		t.Errorf("first record: %+v", recs[0])
	}
	// The blank row still occupies row 3.
	if recs[1].Position != 4 || recs[1].Description != "" || recs[1].Date != core.NewDate(2024, 3, 5) {
		t.Errorf("second record: %+v", recs[1])
	}
	if got := f.calls[0].path; !strings.HasSuffix(got, "/v4/spreadsheets/sid/values/data!A:G") {
		t.Errorf("unexpected path %q", got)
	}
}

func TestReadAll_HeaderOnly(t *testing.T) {
	c := newTestClient(t, &fakeSheets{values: [][]any{{"createdAt", "date"}}})
	recs, err := c.ReadAll(context.Background())
	if err != nil || len(recs) != 0 {
		t.Fatalf("expected no records, got %v err=%v", recs, err)
	}
}

func TestReadAll_Unauthorized(t *testing.T) {
	c := newTestClient(t, &fakeSheets{status: http.StatusUnauthorized})
	_, err := c.ReadAll(context.Background())
	if !errors.Is(err, auth.ErrReauthorize) {
		t.Fatalf("expected ErrReauthorize, got %v", err)
	}
}

func TestAppend(t *testing.T) {
	f := &fakeSheets{}
	c := newTestClient(t, f)
	rec := core.ExpenseRecord{CreatedAt: "c", DateText: "2024/3/1", Category: "食費", PaymentMethod: "現金", Spender: "Mom", Amount: "500", Description: "x"}
	if err := c.Append(context.Background(), rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	call := f.calls[0]
	if call.method != http.MethodPost || !strings.HasSuffix(call.path, "/values/data!A1:append") {
		t.Fatalf("unexpected call %s %s", call.method, call.path)
	}
	var vr struct{ Values [][]string }
	if err := json.Unmarshal([]byte(call.body), &vr); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(vr.Values) != 1 || strings.Join(vr.Values[0], "|") != "c|2024/3/1|食費|現金|Mom|500|x" {
		t.Errorf("unexpected row %v", vr.Values)
	}
}

func TestUpdate(t *testing.T) {
	f := &fakeSheets{}
	c := newTestClient(t, f)
	if err := c.Update(context.Background(), 7, core.ExpenseRecord{Amount: "1"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	call := f.calls[0]
	if call.method != http.MethodPut || !strings.HasSuffix(call.path, "/values/data!A7:G7") {
		t.Fatalf("unexpected call %s %s", call.method, call.path)
	}

	if err := c.Update(context.Background(), 1, core.ExpenseRecord{}); !errors.Is(err, core.ErrInvalidRowNumber) {
		t.Errorf("header row must be rejected, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	f := &fakeSheets{}
	c := newTestClient(t, f)
	ctx := context.Background()
	if err := c.Delete(ctx, 5); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.Delete(ctx, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// One metadata lookup, then one batch update per delete.
	if len(f.calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(f.calls))
	}
	call := f.calls[1]
	if !strings.HasSuffix(call.path, "/v4/spreadsheets/sid:batchUpdate") {
		t.Fatalf("unexpected path %q", call.path)
	}
	var req gsheet.BatchUpdateSpreadsheetRequest
	if err := json.Unmarshal([]byte(call.body), &req); err != nil {
		t.Fatalf("body: %v", err)
	}
	dr := req.Requests[0].DeleteDimension.Range
	if dr.SheetId != 42 || dr.Dimension != "ROWS" || dr.StartIndex != 4 || dr.EndIndex != 5 {
		t.Errorf("unexpected range %+v", dr)
	}

	if err := c.Delete(ctx, 0); !errors.Is(err, core.ErrInvalidRowNumber) {
		t.Errorf("expected ErrInvalidRowNumber, got %v", err)
	}
}

func TestQuoteSheet(t *testing.T) {
	tests := map[string]string{
		"data":     "data",
		"Sheet_1":  "Sheet_1",
		"家計簿":      "'家計簿'",
		"my data":  "'my data'",
		"Bob's":    "'Bob''s'",
	}
	for in, want := range tests {
		if got := quoteSheet(in); got != want {
			t.Errorf("quoteSheet(%q) = %q, want %q", in, got, want)
		}
	}
}
