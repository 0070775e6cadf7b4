package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

type (
	// RowPosition locates a record in the backing store. It is only valid
	// until the next insert or delete; the zero value means "not persisted".
	RowPosition int

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	ExpenseRecord struct {
		CreatedAt     string // informational, kept verbatim
		Date          Date   // zero when DateText is missing or unparseable
		DateText      string
		Category      string
		PaymentMethod string
		Spender       string
		Amount        string // raw cell text; parsed on use
		Description   string
		Position      RowPosition
	}

	// Options are the fixed choice lists the surrounding application owns.
	// The ledger only uses them to order summary rows and columns.
	Options struct {
		Categories     []string
		PaymentMethods []string
		Users          []string
	}

	// Entry is what the entry form submits before it becomes a record.
	Entry struct {
		Date          string
		Category      string
		PaymentMethod string
		Spender       string
		Amount        string
		Description   string
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrUnknownOption    = errors.New("unknown option")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
	ErrNotPersisted     = errors.New("record has no row position")
	ErrInvalidRowNumber = errors.New("invalid row position")
)

// Persisted reports whether p refers to a stored row.
func (p RowPosition) Persisted() bool {
	return p > 0
}

func (p RowPosition) String() string {
	return fmt.Sprintf("row:%d", int(p))
}

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// IsEmpty returns true if the date is missing or failed to parse
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// InMonth reports whether d falls in the given calendar month.
func (d Date) InMonth(year int, month time.Month) bool {
	if d.IsZero() {
		return false
	}
	y, m, _ := d.Date()
	return y == year && m == month
}

// Tuple returns the record in store column order:
// createdAt, date, category, paymentMethod, spender, amount, description.
func (r ExpenseRecord) Tuple() []string {
	return []string{
		r.CreatedAt,
		r.DateText,
		r.Category,
		r.PaymentMethod,
		r.Spender,
		r.Amount,
		r.Description,
	}
}

// Money returns the parsed amount, treating unparseable text as zero.
func (r ExpenseRecord) Money() Money {
	m, _ := ParseAmount(r.Amount)
	return m
}

// NewRecord decodes a store row tuple. Missing trailing cells are treated as
// empty. A bad date never fails decoding; it leaves Date zero.
func NewRecord(cols []string, pos RowPosition) ExpenseRecord {
	get := func(i int) string {
		if i < len(cols) {
			return strings.TrimSpace(cols[i])
		}
		return ""
	}
	rec := ExpenseRecord{
		CreatedAt:     get(0),
		DateText:      get(1),
		Category:      get(2),
		PaymentMethod: get(3),
		Spender:       get(4),
		Amount:        get(5),
		Description:   get(6),
		Position:      pos,
	}
	if d, err := ParseDate(rec.DateText); err == nil {
		rec.Date = d
	}
	return rec
}

func (e Entry) Validate(opts Options) error {
	if _, err := ParseDate(e.Date); err != nil {
		return err
	}
	if _, err := ParseDecimalToCents(e.Amount); err != nil {
		return err
	}
	if !opts.HasCategory(e.Category) {
		return fmt.Errorf("%w: category %q", ErrUnknownOption, e.Category)
	}
	if !opts.HasPaymentMethod(e.PaymentMethod) {
		return fmt.Errorf("%w: payment method %q", ErrUnknownOption, e.PaymentMethod)
	}
	if !opts.HasUser(e.Spender) {
		return fmt.Errorf("%w: user %q", ErrUnknownOption, e.Spender)
	}
	if len([]rune(e.Description)) > 200 {
		return ErrDescriptionLong
	}
	return nil
}

// Record builds an unsaved record from a validated entry. The date is
// normalised to the ja-JP short form the sheet has always used.
func (e Entry) Record(now time.Time) ExpenseRecord {
	d, _ := ParseDate(e.Date)
	dateText := strings.TrimSpace(e.Date)
	if !d.IsZero() {
		dateText = FormatDate(d)
	}
	return ExpenseRecord{
		CreatedAt:     now.Format(time.RFC3339),
		Date:          d,
		DateText:      dateText,
		Category:      strings.TrimSpace(e.Category),
		PaymentMethod: strings.TrimSpace(e.PaymentMethod),
		Spender:       strings.TrimSpace(e.Spender),
		Amount:        strings.TrimSpace(e.Amount),
		Description:   strings.TrimSpace(e.Description),
	}
}

func (o Options) HasCategory(v string) bool      { return slices.Contains(o.Categories, strings.TrimSpace(v)) }
func (o Options) HasPaymentMethod(v string) bool { return slices.Contains(o.PaymentMethods, strings.TrimSpace(v)) }
func (o Options) HasUser(v string) bool          { return slices.Contains(o.Users, strings.TrimSpace(v)) }
