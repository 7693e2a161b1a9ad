package extract

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pgEdge/pgedge-salesetl/internal/dataset"
)

// columnType maps a driver's database type name to a column type. Unknown
// types are carried as text.
func columnType(dbType string) dataset.ColumnType {
	t := strings.ToUpper(dbType)
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}

	switch t {
	case "INT", "INT2", "INT4", "INT8", "INTEGER", "SMALLINT", "BIGINT", "TINYINT",
		"MEDIUMINT", "SERIAL", "BIGSERIAL":
		return dataset.Integer
	case "NUMERIC", "DECIMAL", "MONEY", "SMALLMONEY", "FLOAT", "FLOAT4", "FLOAT8",
		"REAL", "DOUBLE", "DOUBLE PRECISION":
		return dataset.Decimal
	case "DATE":
		return dataset.Date
	case "DATETIME", "DATETIME2", "SMALLDATETIME", "DATETIMEOFFSET", "TIMESTAMP", "TIMESTAMPTZ":
		return dataset.Timestamp
	default:
		return dataset.Text
	}
}

// normalizeValue converts a scanned driver value to the representation used
// for columns of type t. ok is false when the value does not fit t.
func normalizeValue(t dataset.ColumnType, v any) (any, bool) {
	if v == nil {
		return nil, true
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	switch t {
	case dataset.Integer:
		switch n := v.(type) {
		case int64:
			return n, true
		case int32:
			return int64(n), true
		case string:
			if i, err := strconv.ParseInt(n, 10, 64); err == nil {
				return i, true
			}
		}
	case dataset.Decimal:
		switch n := v.(type) {
		case float64:
			if !math.IsNaN(n) && !math.IsInf(n, 0) {
				return decimal.NewFromFloat(n), true
			}
		case int64:
			return decimal.NewFromInt(n), true
		case string:
			if d, err := decimal.NewFromString(n); err == nil {
				return d, true
			}
		}
	case dataset.Date, dataset.Timestamp:
		if tm, ok := v.(time.Time); ok {
			return tm, true
		}
	case dataset.Text:
		return textValue(v), true
	}

	return v, false
}

func textValue(v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
