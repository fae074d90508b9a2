package tables

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"maintdesk/internal/schema"
)

// Comparator orders two non-null cell values for ascending sort. Null
// handling lives in Sort, not here, because nulls sort last in both
// directions.
type Comparator func(a, b any) int

var temporalLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// comparatorFor selects comparison semantics by field type.
func comparatorFor(fieldType schema.FieldType) Comparator {
	switch {
	case fieldType.IsNumeric():
		return compareNumeric
	case fieldType == schema.TypeBoolean:
		return compareBool
	case fieldType.IsTemporal():
		return compareTemporal
	default:
		return compareString
	}
}

// isNullFor reports whether a cell value counts as null for sorting under
// the field's type. Unparseable temporal values are nulls, not garbage that
// lands somewhere in the middle of the order.
func isNullFor(fieldType schema.FieldType, v any) bool {
	if v == nil {
		return true
	}
	if fieldType.IsTemporal() {
		_, ok := parseInstant(v)
		return !ok
	}
	return false
}

func compareNumeric(a, b any) int {
	fa, aok := coerceNumber(a)
	fb, bok := coerceNumber(b)
	if !aok || !bok {
		// Non-numeric garbage falls back to string order so the sort stays
		// total.
		return compareString(a, b)
	}
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	}
	return 0
}

// coerceNumber accepts numbers and numeric-looking strings.
func coerceNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// compareBool sorts true before false in ascending order.
func compareBool(a, b any) int {
	ba := truthy(a)
	bb := truthy(b)
	if ba == bb {
		return 0
	}
	if ba {
		return -1
	}
	return 1
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(t)
		return err == nil && b
	}
	return false
}

func compareTemporal(a, b any) int {
	ta, _ := parseInstant(a)
	tb, _ := parseInstant(b)
	switch {
	case ta.Before(tb):
		return -1
	case ta.After(tb):
		return 1
	}
	return 0
}

func parseInstant(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range temporalLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func compareString(a, b any) int {
	return strings.Compare(stringify(a), stringify(b))
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case time.Time:
		return t.Format(time.RFC3339)
	}
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}

// Sort orders rows in place by one column. Null cells — including
// unparseable temporal values — always land at the end, in both ascending
// and descending order.
func Sort(rows []map[string]any, col *ColumnDescriptor, descending bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		a := rows[i][col.Field]
		b := rows[j][col.Field]

		aNull := isNullFor(col.Type, a)
		bNull := isNullFor(col.Type, b)
		if aNull || bNull {
			// A null never wins against a value, regardless of direction.
			return !aNull && bNull
		}

		cmp := col.Compare(a, b)
		if descending {
			return cmp > 0
		}
		return cmp < 0
	})
}
