package core

import "sort"

// CategoryAmount represents an amount aggregated by a category or user name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// CrossRow is one row of the category × user grid.
type CrossRow struct {
	Category string
	Cells    []Money // one per entry of Summary.Users
	Total    Money
}

// Summary is the display-ordered form of a MonthlyView: rows and columns
// follow the configured option sets, and keys outside those sets are
// appended in sorted order so nothing is hidden.
type Summary struct {
	Categories []CategoryAmount
	Users      []CategoryAmount
	Grid       []CrossRow
	Total      Money
}

// Summarize orders v's totals by opts. Options with no records are listed with
// a zero amount.
func (v MonthlyView) Summarize(opts Options) Summary {
	cats := orderedKeys(opts.Categories, v.CategoryTotals)
	users := orderedKeys(opts.Users, v.SpenderTotals)

	s := Summary{Total: v.GrandTotal()}
	for _, c := range cats {
		s.Categories = append(s.Categories, CategoryAmount{Name: c, Amount: v.CategoryTotals[c]})
	}
	for _, u := range users {
		s.Users = append(s.Users, CategoryAmount{Name: u, Amount: v.SpenderTotals[u]})
	}
	for _, c := range cats {
		row := CrossRow{Category: c, Cells: make([]Money, len(users))}
		for i, u := range users {
			row.Cells[i] = v.Cell(c, u)
			row.Total = row.Total.Add(row.Cells[i])
		}
		s.Grid = append(s.Grid, row)
	}
	return s
}

func orderedKeys(order []string, totals map[string]Money) []string {
	out := make([]string, 0, len(order)+len(totals))
	seen := make(map[string]struct{}, len(order))
	for _, k := range order {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	var extra []string
	for k := range totals {
		if _, ok := seen[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
