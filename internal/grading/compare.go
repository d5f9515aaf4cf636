// Package grading runs candidate queries and compares their output with a
// problem's expected result.
package grading

import (
	"fmt"
	"strings"

	"github.com/queryproctor/backend/internal/model"
)

// Compare reports whether actual matches expected. Column names are compared
// case-insensitively. When ordered is false rows are compared as a multiset.
// The message explains the first mismatch found.
func Compare(expected, actual model.ResultSet, ordered bool) (bool, string) {
	if len(expected.Columns) != len(actual.Columns) {
		return false, fmt.Sprintf("expected %d columns, got %d", len(expected.Columns), len(actual.Columns))
	}
	for i := range expected.Columns {
		if !strings.EqualFold(strings.TrimSpace(expected.Columns[i]), strings.TrimSpace(actual.Columns[i])) {
			return false, fmt.Sprintf("column %d: expected %q, got %q", i+1, expected.Columns[i], actual.Columns[i])
		}
	}
	if len(expected.Rows) != len(actual.Rows) {
		return false, fmt.Sprintf("expected %d rows, got %d", len(expected.Rows), len(actual.Rows))
	}

	if ordered {
		for i := range expected.Rows {
			if rowKey(expected.Rows[i]) != rowKey(actual.Rows[i]) {
				return false, fmt.Sprintf("row %d differs", i+1)
			}
		}
		return true, ""
	}

	counts := make(map[string]int, len(expected.Rows))
	for _, row := range expected.Rows {
		counts[rowKey(row)]++
	}
	for i, row := range actual.Rows {
		k := rowKey(row)
		if counts[k] == 0 {
			return false, fmt.Sprintf("unexpected row %d", i+1)
		}
		counts[k]--
	}
	return true, ""
}

// rowKey encodes a row so NULL and the empty string stay distinct.
func rowKey(row []*string) string {
	var b strings.Builder
	for _, v := range row {
		if v == nil {
			b.WriteString("\x00N")
		} else {
			b.WriteString("\x01")
			b.WriteString(*v)
		}
		b.WriteByte('\x1f')
	}
	return b.String()
}
