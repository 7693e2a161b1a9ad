package dataset

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeebo/xxh3"
)

const (
	fieldSep = "\x1f"
	rowSep   = "\x1e"
	nullMark = "\x00"
)

// Fingerprint returns a 64-bit hash of a frame's columns and rows, in order.
// Two frames with the same fingerprint hold the same values in the same order
// with overwhelming probability.
func Fingerprint(f Frame) uint64 {
	h := xxh3.New()

	columns := f.Columns()
	for _, c := range columns {
		_, _ = h.WriteString(c.Name)
		_, _ = h.WriteString(":")
		_, _ = h.WriteString(c.Type.String())
		_, _ = h.WriteString(fieldSep)
	}
	_, _ = h.WriteString(rowSep)

	for i := 0; i < f.Len(); i++ {
		for j, v := range f.Values(i) {
			_, _ = h.WriteString(canonical(columns[j].Type, v))
			_, _ = h.WriteString(fieldSep)
		}
		_, _ = h.WriteString(rowSep)
	}

	return h.Sum64()
}

func canonical(t ColumnType, v any) string {
	switch v := v.(type) {
	case nil:
		return nullMark
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return v
	case decimal.Decimal:
		return v.String()
	case time.Time:
		if t == Date {
			return v.Format(time.DateOnly)
		}
		return v.UTC().Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []byte:
		return string(v)
	default:
		return nullMark + "?"
	}
}
