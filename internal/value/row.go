package value

import "bytes"

// Row is one result row: column names mapped to values in result order.
type Row struct {
	columns []string
	values  []Value
}

// NewRow pairs columns with values. Both slices must have the same length.
func NewRow(columns []string, values []Value) Row {
	return Row{columns: columns, values: values}
}

func (r Row) Len() int { return len(r.columns) }
func (r Row) Columns() []string { return r.columns }
func (r Row) Values() []Value { return r.values }

// Get returns the value of the named column.
func (r Row) Get(column string) (Value, bool) {
	for i, c := range r.columns {
		if c == column {
			return r.values[i], true
		}
	}
	return Value{}, false
}

// Object converts the row into an Object value, dropping column order.
func (r Row) Object() Value {
	m := make(map[string]Value, len(r.columns))
	for i, c := range r.columns {
		m[c] = r.values[i]
	}
	return ObjectValue(m)
}

// MarshalJSON writes the row as a JSON object in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, c); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := r.values[i].encode(&buf); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
