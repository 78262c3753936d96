package value

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bgunnarsson/sqlrest/internal/db"
)

// BlobPlaceholder is what a binary column reads back as in BlobPlaceholder mode.
const BlobPlaceholder = "<blob>"

// BlobMode selects how binary column values are rendered.
type BlobMode string

const (
	BlobModePlaceholder BlobMode = "placeholder"
	BlobModeBase64      BlobMode = "base64"
	BlobModeHex         BlobMode = "hex"
	BlobModeText        BlobMode = "text"
)

// ParseBlobMode validates a configured blob mode. Empty means placeholder.
func ParseBlobMode(s string) (BlobMode, error) {
	switch m := BlobMode(s); m {
	case "":
		return BlobModePlaceholder, nil
	case BlobModePlaceholder, BlobModeBase64, BlobModeHex, BlobModeText:
		return m, nil
	}
	return "", fmt.Errorf("unknown blob mode %q", s)
}

// Codec converts between Values and database/sql parameter and column values.
// The zero Codec renders blobs as BlobPlaceholder.
type Codec struct {
	Blob BlobMode
}

// ToParameter maps a scalar Value to a bind parameter. Integer literals
// (signed or unsigned 64-bit) bind as int64, any other finite number binds
// as float64. Unsigned values above math.MaxInt64 wrap into int64.
func ToParameter(v Value) (any, error) {
	switch v.kind {
	case Null:
		return nil, nil
	case Bool:
		return v.b, nil
	case String:
		return v.s, nil
	case Number:
		if i, err := strconv.ParseInt(v.s, 10, 64); err == nil {
			return i, nil
		}
		if u, err := strconv.ParseUint(v.s, 10, 64); err == nil {
			return int64(u), nil
		}
		if f, err := strconv.ParseFloat(v.s, 64); err == nil {
			return f, nil
		}
		return nil, &db.Error{Kind: db.KindUnsupportedValue, Err: fmt.Errorf("number %s out of range", v.s)}
	}
	return nil, db.ErrUnsupportedValue
}

// FromColumn maps a raw value scanned from a column into a Value.
func (c Codec) FromColumn(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return NullValue()
	case int64:
		return IntValue(x)
	case int:
		return IntValue(int64(x))
	case int32:
		return IntValue(int64(x))
	case int16:
		return IntValue(int64(x))
	case int8:
		return IntValue(int64(x))
	case uint64:
		return Value{kind: Number, s: strconv.FormatUint(x, 10)}
	case float64:
		return FloatValue(x)
	case float32:
		return FloatValue(float64(x))
	case bool:
		return BoolValue(x)
	case string:
		return StringValue(x)
	case []byte:
		return StringValue(c.blob(x))
	case time.Time:
		return StringValue(x.Format(time.RFC3339Nano))
	case fmt.Stringer:
		return StringValue(x.String())
	}
	return StringValue(fmt.Sprint(raw))
}

func (c Codec) blob(b []byte) string {
	switch c.Blob {
	case BlobModeBase64:
		return base64.StdEncoding.EncodeToString(b)
	case BlobModeHex:
		return "0x" + hex.EncodeToString(b)
	case BlobModeText:
		return string(b)
	}
	return BlobPlaceholder
}

// FromTypedColumn is FromColumn for a column with declared type declType.
// Integer 0 and 1 read from a column declared BOOLEAN or BOOL decode as
// booleans, since SQLite stores them as integers.
func (c Codec) FromTypedColumn(declType string, raw any) Value {
	if i, ok := raw.(int64); ok && (i == 0 || i == 1) && isBoolType(declType) {
		return BoolValue(i == 1)
	}
	return c.FromColumn(raw)
}

func isBoolType(t string) bool {
	switch strings.ToLower(t) {
	case "boolean", "bool":
		return true
	}
	return false
}

// Row builds a Row from the column names, declared column types and raw
// values of one result row. types may be nil or shorter than raw.
func (c Codec) Row(columns, types []string, raw []any) Row {
	vals := make([]Value, len(raw))
	for i, r := range raw {
		var t string
		if i < len(types) {
			t = types[i]
		}
		vals[i] = c.FromTypedColumn(t, r)
	}
	return Row{columns: columns, values: vals}
}
