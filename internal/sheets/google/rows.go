package google

import (
	"fmt"
	"strings"

	"kakeibo/internal/core"
)

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// decodeRows turns a values matrix starting at the header into records.
func decodeRows(values [][]interface{}) []core.ExpenseRecord {
	if len(values) <= headerRow {
		return nil
	}
	out := make([]core.ExpenseRecord, 0, len(values)-headerRow)
	for i := headerRow; i < len(values); i++ {
		cols := toStrings(values[i])
		if blank(cols) {
			continue
		}
		out = append(out, core.NewRecord(cols, core.RowPosition(i+1)))
	}
	return out
}

func blank(cols []string) bool {
	for _, c := range cols {
		if c != "" {
			return false
		}
	}
	return true
}

func toRow(r core.ExpenseRecord) []any {
	t := r.Tuple()
	row := make([]any, len(t))
	for i, v := range t {
		row[i] = v
	}
	return row
}

// quoteSheet renders a tab name for use in A1 notation.
func quoteSheet(name string) string {
	plain := name != ""
	for _, r := range name {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			plain = false
			break
		}
	}
	if plain {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
