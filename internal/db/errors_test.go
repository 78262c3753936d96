package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("insert: %w", MissingValue("name"))

	assert.True(t, errors.Is(err, ErrMissingValue))
	assert.True(t, errors.Is(err, MissingValue("name")))
	assert.False(t, errors.Is(err, MissingValue("age")))
	assert.False(t, errors.Is(err, ErrConstraint))
	assert.Equal(t, KindMissingValue, KindOf(err))
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{TableNotFound("users"), `table "users" not found`},
		{NoPrimaryKey("log"), `table "log" has no primary key`},
		{CompositePrimaryKey("pairs"), `table "pairs" has a composite primary key`},
		{MissingValue("name"), `missing value for column "name"`},
		{ErrExpectingObject, "expecting a JSON object"},
		{ConstraintViolation("email", errors.New("boom")), `constraint violation on "email": boom`},
		{ConstraintViolation("", nil), "constraint violation"},
		{Backend(errors.New("disk I/O error")), "database error: disk I/O error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Field(t *testing.T) {
	var e *Error

	assert.True(t, errors.As(ConstraintViolation("email", nil), &e))
	field, ok := e.Field()
	assert.True(t, ok)
	assert.Equal(t, "email", field)

	assert.True(t, errors.As(ConstraintViolation("", nil), &e))
	_, ok = e.Field()
	assert.False(t, ok)

	assert.True(t, errors.As(MissingValue("email"), &e))
	_, ok = e.Field()
	assert.False(t, ok)
}

func TestBackend(t *testing.T) {
	assert.NoError(t, Backend(nil))

	kinded := TableNotFound("t")
	assert.Same(t, kinded, Backend(kinded))

	cause := errors.New("boom")
	err := Backend(cause)
	assert.True(t, errors.Is(err, ErrDB))
	assert.True(t, errors.Is(err, cause))
}

func TestKind_ClientError(t *testing.T) {
	assert.True(t, KindConstraint.ClientError())
	assert.True(t, KindMissingValue.ClientError())
	assert.False(t, KindDB.ClientError())
	assert.False(t, KindPoolExhausted.ClientError())
	assert.Equal(t, "table_not_found", KindTableNotFound.String())
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"users"`, QuoteIdent("users"))
	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
}
