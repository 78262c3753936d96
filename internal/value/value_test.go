package value

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloatValue(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want string
	}{
		{name: "integral keeps fraction", in: 2, want: "2.0"},
		{name: "negative integral", in: -3, want: "-3.0"},
		{name: "fraction", in: 1.5, want: "1.5"},
		{name: "large uses exponent", in: 1e21, want: "1e+21"},
		{name: "NaN is null", in: math.NaN(), want: "null"},
		{name: "infinity is null", in: math.Inf(1), want: "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FloatValue(tt.in).String())
		})
	}
}

func TestValue_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{name: "nulls", a: NullValue(), b: NullValue(), want: true},
		{name: "same int", a: IntValue(7), b: NumberValue("7"), want: true},
		{name: "int vs float", a: IntValue(1), b: FloatValue(1), want: false},
		{name: "float literals", a: NumberValue("1.50"), b: FloatValue(1.5), want: true},
		{name: "different kinds", a: StringValue("1"), b: IntValue(1), want: false},
		{
			name: "objects",
			a:    ObjectValue(map[string]Value{"a": IntValue(1), "b": ArrayValue(BoolValue(true))}),
			b:    ObjectValue(map[string]Value{"b": ArrayValue(BoolValue(true)), "a": IntValue(1)}),
			want: true,
		},
		{
			name: "arrays differ",
			a:    ArrayValue(IntValue(1), IntValue(2)),
			b:    ArrayValue(IntValue(2), IntValue(1)),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestParse(t *testing.T) {
	v, err := Parse([]byte(`{"name":"Ann","age":30,"score":1.25,"tags":["a"],"ok":true,"x":null}`))
	require.NoError(t, err)
	require.Equal(t, Object, v.Kind())

	age, ok := v.Field("age")
	require.True(t, ok)
	i, ok := age.Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(30), i)

	score, _ := v.Field("score")
	assert.Equal(t, "1.25", score.Literal())

	x, ok := v.Field("x")
	assert.True(t, ok)
	assert.True(t, x.IsNull())

	_, ok = v.Field("missing")
	assert.False(t, ok)
}

func TestParse_Errors(t *testing.T) {
	for _, in := range []string{``, `{`, `{"a":1} {"b":2}`, `1 2`} {
		_, err := Parse([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestValue_MarshalJSON(t *testing.T) {
	v := ObjectValue(map[string]Value{
		"b": NumberValue("12345678901234567890"),
		"a": StringValue("x\"y"),
	})
	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x\"y","b":12345678901234567890}`, string(b))
}

func TestRow_MarshalJSON(t *testing.T) {
	row := NewRow([]string{"id", "name", "age"}, []Value{IntValue(1), StringValue("Ann"), IntValue(0)})
	b, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"name":"Ann","age":0}`, string(b))

	name, ok := row.Get("name")
	require.True(t, ok)
	assert.Equal(t, "Ann", name.Str())
	assert.True(t, row.Object().Equal(ObjectValue(map[string]Value{
		"id": IntValue(1), "name": StringValue("Ann"), "age": IntValue(0),
	})))
}
