package core

import (
	"maps"
	"slices"
	"sort"
	"time"
)

// MonthlyView is the ledger for one calendar month. All totals are computed
// over Visible only; a key with no matching records is absent.
type MonthlyView struct {
	Year                  int
	Month                 time.Month
	Visible               []ExpenseRecord
	CategoryTotals        map[string]Money
	SpenderTotals         map[string]Money
	CategorySpenderTotals map[string]map[string]Money
}

// ComputeMonthlyView filters records to the given month, orders them newest
// first and aggregates amounts by category, by spender, and by both.
//
// Records with a missing or unparseable date are skipped. Amounts that do not
// parse contribute zero but the record stays visible. The result shares no
// slices or maps with the input.
func ComputeMonthlyView(records []ExpenseRecord, year int, month time.Month) MonthlyView {
	view := MonthlyView{
		Year:                  year,
		Month:                 month,
		Visible:               make([]ExpenseRecord, 0),
		CategoryTotals:        make(map[string]Money),
		SpenderTotals:         make(map[string]Money),
		CategorySpenderTotals: make(map[string]map[string]Money),
	}

	for _, r := range records {
		if r.Date.InMonth(year, month) {
			view.Visible = append(view.Visible, r)
		}
	}

	// Ties keep their store order.
	sort.SliceStable(view.Visible, func(i, j int) bool {
		return view.Visible[i].Date.After(view.Visible[j].Date.Time)
	})

	for _, r := range view.Visible {
		amt := r.Money()
		view.CategoryTotals[r.Category] = view.CategoryTotals[r.Category].Add(amt)
		view.SpenderTotals[r.Spender] = view.SpenderTotals[r.Spender].Add(amt)
		bySpender, ok := view.CategorySpenderTotals[r.Category]
		if !ok {
			bySpender = make(map[string]Money)
			view.CategorySpenderTotals[r.Category] = bySpender
		}
		bySpender[r.Spender] = bySpender[r.Spender].Add(amt)
	}

	return view
}

// GrandTotal sums every visible amount.
func (v MonthlyView) GrandTotal() Money {
	var total Money
	for _, m := range v.CategoryTotals {
		total = total.Add(m)
	}
	return total
}

// Empty reports whether the month has no records.
func (v MonthlyView) Empty() bool {
	return len(v.Visible) == 0
}

// Clone returns a deep copy that shares no slices or maps with v.
func (v MonthlyView) Clone() MonthlyView {
	out := MonthlyView{
		Year:                  v.Year,
		Month:                 v.Month,
		Visible:               slices.Clone(v.Visible),
		CategoryTotals:        maps.Clone(v.CategoryTotals),
		SpenderTotals:         maps.Clone(v.SpenderTotals),
		CategorySpenderTotals: make(map[string]map[string]Money, len(v.CategorySpenderTotals)),
	}
	if out.Visible == nil {
		out.Visible = make([]ExpenseRecord, 0)
	}
	if out.CategoryTotals == nil {
		out.CategoryTotals = make(map[string]Money)
	}
	if out.SpenderTotals == nil {
		out.SpenderTotals = make(map[string]Money)
	}
	for cat, bySpender := range v.CategorySpenderTotals {
		out.CategorySpenderTotals[cat] = maps.Clone(bySpender)
	}
	return out
}

// Cell returns the category × spender total, zero when absent.
func (v MonthlyView) Cell(category, spender string) Money {
	return v.CategorySpenderTotals[category][spender]
}
