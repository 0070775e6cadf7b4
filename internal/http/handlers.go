package http

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/export"
	applog "kakeibo/internal/log"
	"kakeibo/internal/services"
)

type amountJSON struct {
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
	Display string  `json:"display"`
}

type recordJSON struct {
	Row           int     `json:"row"`
	CreatedAt     string  `json:"createdAt"`
	Date          string  `json:"date"`
	Category      string  `json:"category"`
	PaymentMethod string  `json:"paymentMethod"`
	Spender       string  `json:"spender"`
	Amount        string  `json:"amount"`
	AmountValue   float64 `json:"amountValue"`
	Description   string  `json:"description"`
}

type gridRowJSON struct {
	Category string    `json:"category"`
	Cells    []float64 `json:"cells"`
	Total    float64   `json:"total"`
}

type ledgerJSON struct {
	Year       int           `json:"year"`
	Month      int           `json:"month"`
	CanAdvance bool          `json:"canAdvance"`
	Empty      bool          `json:"empty"`
	Records    []recordJSON  `json:"records"`
	Categories []amountJSON  `json:"categories"`
	Users      []amountJSON  `json:"users"`
	Grid       []gridRowJSON `json:"grid"`
	Total      amountJSON    `json:"total"`
	LoadedAt   *time.Time    `json:"loadedAt,omitempty"`

	// Snapshot must accompany row numbers sent back for edit or delete.
	Snapshot uint64 `json:"snapshot"`
}

type optionsJSON struct {
	Categories     []string `json:"categories"`
	PaymentMethods []string `json:"paymentMethods"`
	Users          []string `json:"users"`
}

func toRecordJSON(r core.ExpenseRecord) recordJSON {
	return recordJSON{
		Row:           int(r.Position),
		CreatedAt:     r.CreatedAt,
		Date:          r.DateText,
		Category:      r.Category,
		PaymentMethod: r.PaymentMethod,
		Spender:       r.Spender,
		Amount:        r.Amount,
		AmountValue:   r.Money().Yen(),
		Description:   r.Description,
	}
}

func toAmounts(in []core.CategoryAmount) []amountJSON {
	out := make([]amountJSON, len(in))
	for i, a := range in {
		out[i] = amountJSON{Name: a.Name, Amount: a.Amount.Yen(), Display: a.Amount.String()}
	}
	return out
}

func (s *Server) toLedgerJSON(l services.Ledger) ledgerJSON {
	v, sum := l.View, l.Summary
	out := ledgerJSON{
		Year:       v.Year,
		Month:      int(v.Month),
		CanAdvance: core.Cursor{Year: v.Year, Month: v.Month}.CanAdvance(s.now()),
		Empty:      v.Empty(),
		Records:    make([]recordJSON, len(v.Visible)),
		Categories: toAmounts(sum.Categories),
		Users:      toAmounts(sum.Users),
		Grid:       make([]gridRowJSON, len(sum.Grid)),
		Total:      amountJSON{Name: "合計", Amount: sum.Total.Yen(), Display: sum.Total.String()},
		Snapshot:   l.Snapshot,
	}
	for i, r := range v.Visible {
		out.Records[i] = toRecordJSON(r)
	}
	for i, row := range sum.Grid {
		cells := make([]float64, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = c.Yen()
		}
		out.Grid[i] = gridRowJSON{Category: row.Category, Cells: cells, Total: row.Total.Yen()}
	}
	if at := s.service.Session().LoadedAt(); !at.IsZero() {
		out.LoadedAt = &at
	}
	return out
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	opts := s.service.Options()
	NewJSONResponse().Body(optionsJSON{
		Categories:     nonNil(opts.Categories),
		PaymentMethods: nonNil(opts.PaymentMethods),
		Users:          nonNil(opts.Users),
	}).Write(w)
}

// handleLedger serves the month in the query, or the session's month when
// the query names none. It never moves the cursor.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	c, err := parseCursor(r.URL.Query(), s.service.Session().Cursor(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeLedger(w, r, c)
}

// handleMove steps the session's cursor and serves the month it lands on.
func (s *Server) handleMove(step int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.service.Session()
		var c core.Cursor
		if step < 0 {
			c = sess.Prev()
		} else {
			c = sess.Next()
		}
		s.writeLedger(w, r, c)
	}
}

func (s *Server) writeLedger(w http.ResponseWriter, r *http.Request, c core.Cursor) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	l, err := s.service.Ledger(ctx, c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Header("ETag", etag(l.Snapshot)).Body(s.toLedgerJSON(l)).Write(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := parseCursor(q, s.service.Session().Cursor(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	l, err := s.service.Ledger(ctx, c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v := l.View

	// Render fully before writing so a failure can still become a JSON error.
	var buf bytes.Buffer
	if err := export.Write(&buf, format, v, l.Summary); err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(ctx).InfoContext(ctx, "Ledger exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldYear, c.Year,
		applog.FieldMonth, int(c.Month),
		applog.FieldRecordCount, len(v.Visible),
		"format", string(format))

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(c.Year, c.Month, format)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
