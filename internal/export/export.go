// Package export renders a monthly ledger as a CSV or XLSX download.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"kakeibo/internal/core"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var ErrUnknownFormat = errors.New("unknown export format (want csv or xlsx)")

// ParseFormat accepts "csv" and "xlsx" in any case; empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", ErrUnknownFormat
	}
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename is e.g. "kakeibo_2024-03.xlsx".
func Filename(year int, month time.Month, f Format) string {
	return fmt.Sprintf("kakeibo_%04d-%02d.%s", year, int(month), f)
}

// Write renders v in format f.
func Write(w io.Writer, f Format, v core.MonthlyView, s core.Summary) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, v, s)
	case FormatXLSX:
		return WriteXLSX(w, v, s)
	default:
		return ErrUnknownFormat
	}
}

var recordHeader = []string{"日付", "カテゴリ", "支払方法", "使用者", "金額", "メモ"}

func recordRow(r core.ExpenseRecord) []string {
	amount := r.Amount
	if m, ok := core.ParseAmount(r.Amount); ok {
		amount = m.String()
	}
	return []string{r.DateText, r.Category, r.PaymentMethod, r.Spender, amount, r.Description}
}

// WriteCSV writes the record table followed by the three summary tables.
// A UTF-8 BOM is written first so spreadsheet apps detect the encoding.
func WriteCSV(w io.Writer, v core.MonthlyView, s core.Summary) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)

	rows := [][]string{
		{"家計簿", fmt.Sprintf("%d年%d月", v.Year, int(v.Month))},
		{"合計", s.Total.String()},
		{},
		recordHeader,
	}
	for _, r := range v.Visible {
		rows = append(rows, recordRow(r))
	}
	rows = append(rows, []string{}, []string{"カテゴリ別", "金額"})
	for _, c := range s.Categories {
		rows = append(rows, []string{c.Name, c.Amount.String()})
	}
	rows = append(rows, []string{}, []string{"使用者別", "金額"})
	for _, u := range s.Users {
		rows = append(rows, []string{u.Name, u.Amount.String()})
	}
	rows = append(rows, []string{}, gridHeader(s))
	for _, g := range s.Grid {
		row := []string{g.Category}
		for _, m := range g.Cells {
			row = append(row, m.String())
		}
		rows = append(rows, append(row, g.Total.String()))
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func gridHeader(s core.Summary) []string {
	h := []string{"カテゴリ＼使用者"}
	for _, u := range s.Users {
		h = append(h, u.Name)
	}
	return append(h, "合計")
}

const (
	sheetRecords = "明細"
	sheetSummary = "集計"
)

// WriteXLSX writes a workbook with a records sheet and a summary sheet.
// Amounts are numeric cells in yen.
func WriteXLSX(w io.Writer, v core.MonthlyView, s core.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetRecords); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeRecordsSheet(f, v); err != nil {
		return err
	}
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeSummarySheet(f, v, s); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeRecordsSheet(f *excelize.File, v core.MonthlyView) error {
	if err := setRow(f, sheetRecords, 1, toAny(recordHeader)); err != nil {
		return err
	}
	for i, r := range v.Visible {
		cells := toAny(recordRow(r))
		if m, ok := core.ParseAmount(r.Amount); ok {
			cells[4] = m.Yen()
		}
		if err := setRow(f, sheetRecords, i+2, cells); err != nil {
			return err
		}
	}
	widths := map[string]float64{"A": 12, "B": 14, "C": 16, "D": 10, "E": 12, "F": 30}
	for col, wd := range widths {
		if err := f.SetColWidth(sheetRecords, col, col, wd); err != nil {
			return fmt.Errorf("set width %s: %w", col, err)
		}
	}
	return nil
}

func writeSummarySheet(f *excelize.File, v core.MonthlyView, s core.Summary) error {
	row := 1
	put := func(cells ...any) error {
		err := setRow(f, sheetSummary, row, cells)
		row++
		return err
	}

	if err := put("家計簿", fmt.Sprintf("%d年%d月", v.Year, int(v.Month))); err != nil {
		return err
	}
	if err := put("合計", s.Total.Yen()); err != nil {
		return err
	}
	row++
	if err := put("カテゴリ別", "金額"); err != nil {
		return err
	}
	for _, c := range s.Categories {
		if err := put(c.Name, c.Amount.Yen()); err != nil {
			return err
		}
	}
	row++
	if err := put("使用者別", "金額"); err != nil {
		return err
	}
	for _, u := range s.Users {
		if err := put(u.Name, u.Amount.Yen()); err != nil {
			return err
		}
	}
	row++
	if err := put(toAny(gridHeader(s))...); err != nil {
		return err
	}
	for _, g := range s.Grid {
		cells := []any{g.Category}
		for _, m := range g.Cells {
			cells = append(cells, m.Yen())
		}
		if err := put(append(cells, g.Total.Yen())...); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
	}
	return nil
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
