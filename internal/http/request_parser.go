package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"kakeibo/internal/core"
)

// maxBodyBytes bounds entry submissions; a record is seven short strings.
const maxBodyBytes = 16 << 10

var (
	errBadMonth    = errors.New("month must be 1-12")
	errBadYear     = errors.New("year must be a number")
	errFutureMonth = errors.New("month is in the future")
	errBadRow      = errors.New("row must be a number greater than 1")
	errBadBody     = errors.New("malformed request body")
	errNoSnapshot  = errors.New("If-Match header or snapshot parameter required")
	errBadSnapshot = errors.New("snapshot must be a positive number")
)

// parseCursor reads year and month from the query. Both absent means
// fallback; a partial pair fills the missing half from fallback. Months after
// now's are refused.
func parseCursor(q url.Values, fallback core.Cursor, now time.Time) (core.Cursor, error) {
	c := fallback
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return core.Cursor{}, errBadYear
		}
		c.Year = y
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return core.Cursor{}, errBadMonth
		}
		c.Month = time.Month(m)
	}
	if c.After(now) {
		return core.Cursor{}, errFutureMonth
	}
	return c, nil
}

// parseRow reads the {row} path parameter.
func parseRow(r *http.Request) (core.RowPosition, error) {
	n, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil || n < 2 {
		return 0, errBadRow
	}
	return core.RowPosition(n), nil
}

// parseSnapshot reads the snapshot generation a row number was taken from:
// the ledger's ETag echoed in If-Match, or the snapshot query parameter.
func parseSnapshot(r *http.Request) (uint64, error) {
	v := strings.TrimSpace(r.Header.Get("If-Match"))
	v = strings.Trim(strings.TrimPrefix(v, "W/"), `"`)
	if v == "" {
		v = strings.TrimSpace(r.URL.Query().Get("snapshot"))
	}
	if v == "" {
		return 0, errNoSnapshot
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil || n == 0 {
		return 0, errBadSnapshot
	}
	return n, nil
}

// etag renders a snapshot generation as a strong entity tag.
func etag(gen uint64) string {
	return `"` + strconv.FormatUint(gen, 10) + `"`
}

// entryRequest is the JSON body for creating or replacing a record.
type entryRequest struct {
	Date          string     `json:"date"`
	Category      string     `json:"category"`
	PaymentMethod string     `json:"paymentMethod"`
	Spender       string     `json:"spender"`
	Amount        amountText `json:"amount"`
	Description   string     `json:"description"`
}

// amountText accepts 1500, 1500.5 or "1,500円".
type amountText string

func (a *amountText) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = amountText(n.String())
	return nil
}

// parseEntry decodes a JSON or form-encoded entry.
func parseEntry(w http.ResponseWriter, r *http.Request) (core.Entry, error) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if ct == "application/x-www-form-urlencoded" {
		raw, err := io.ReadAll(body)
		if err != nil {
			return core.Entry{}, fmt.Errorf("%w: %v", errBadBody, err)
		}
		form, err := url.ParseQuery(string(raw))
		if err != nil {
			return core.Entry{}, fmt.Errorf("%w: %v", errBadBody, err)
		}
		return core.Entry{
			Date:          sanitizeInput(form.Get("date")),
			Category:      sanitizeInput(form.Get("category")),
			PaymentMethod: sanitizeInput(form.Get("paymentMethod")),
			Spender:       sanitizeInput(form.Get("spender")),
			Amount:        sanitizeInput(form.Get("amount")),
			Description:   sanitizeInput(form.Get("description")),
		}, nil
	}

	var req entryRequest
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return core.Entry{}, fmt.Errorf("%w: %v", errBadBody, err)
	}
	return core.Entry{
		Date:          sanitizeInput(req.Date),
		Category:      sanitizeInput(req.Category),
		PaymentMethod: sanitizeInput(req.PaymentMethod),
		Spender:       sanitizeInput(req.Spender),
		Amount:        sanitizeInput(string(req.Amount)),
		Description:   sanitizeInput(req.Description),
	}, nil
}

// sanitizeInput trims and drops control characters other than tab and newline.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if (r < 32 && r != '\t' && r != '\n' && r != '\r') || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
