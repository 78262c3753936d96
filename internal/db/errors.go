package db

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of a data-access operation.
type Kind int

const (
	KindUnknown Kind = iota
	KindDB
	KindPool
	KindPoolExhausted
	KindConstraint
	KindTableNotFound
	KindNoPrimaryKey
	KindCompositePrimaryKey
	KindMissingValue
	KindExpectingObject
	KindUnsupportedValue
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindDB:                  "db",
	KindPool:                "pool",
	KindPoolExhausted:       "pool_exhausted",
	KindConstraint:          "constraint_violation",
	KindTableNotFound:       "table_not_found",
	KindNoPrimaryKey:        "no_primary_key",
	KindCompositePrimaryKey: "composite_primary_key",
	KindMissingValue:        "missing_value",
	KindExpectingObject:     "expecting_object",
	KindUnsupportedValue:    "unsupported_value",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ClientError reports whether the kind is caused by caller input rather than
// by the backend or its environment.
func (k Kind) ClientError() bool {
	switch k {
	case KindConstraint, KindTableNotFound, KindNoPrimaryKey, KindCompositePrimaryKey,
		KindMissingValue, KindExpectingObject, KindUnsupportedValue:
		return true
	}
	return false
}

// Error is the typed failure returned by every data-access operation.
// Name carries the table or field the error is about; it is empty for a
// constraint violation whose field could not be determined.
type Error struct {
	Kind Kind
	Name string
	Err  error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindTableNotFound:
		msg = fmt.Sprintf("table %q not found", e.Name)
	case KindNoPrimaryKey:
		msg = fmt.Sprintf("table %q has no primary key", e.Name)
	case KindCompositePrimaryKey:
		msg = fmt.Sprintf("table %q has a composite primary key", e.Name)
	case KindMissingValue:
		msg = fmt.Sprintf("missing value for column %q", e.Name)
	case KindExpectingObject:
		msg = "expecting a JSON object"
	case KindUnsupportedValue:
		msg = "objects and arrays cannot be stored in a column"
		if e.Name != "" {
			msg = fmt.Sprintf("column %q: %s", e.Name, msg)
		}
	case KindConstraint:
		msg = "constraint violation"
		if e.Name != "" {
			msg = fmt.Sprintf("constraint violation on %q", e.Name)
		}
	case KindPoolExhausted:
		msg = "connection pool exhausted"
	case KindPool:
		msg = "connection pool error"
	default:
		msg = "database error"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind. A target with an empty Name
// matches any name, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Name == "" || t.Name == e.Name)
}

// Field returns the offending field of a constraint violation, if known.
func (e *Error) Field() (string, bool) {
	if e.Kind != KindConstraint || e.Name == "" {
		return "", false
	}
	return e.Name, true
}

var (
	ErrDB                  = &Error{Kind: KindDB}
	ErrPool                = &Error{Kind: KindPool}
	ErrPoolExhausted       = &Error{Kind: KindPoolExhausted}
	ErrConstraint          = &Error{Kind: KindConstraint}
	ErrTableNotFound       = &Error{Kind: KindTableNotFound}
	ErrNoPrimaryKey        = &Error{Kind: KindNoPrimaryKey}
	ErrCompositePrimaryKey = &Error{Kind: KindCompositePrimaryKey}
	ErrMissingValue        = &Error{Kind: KindMissingValue}
	ErrExpectingObject     = &Error{Kind: KindExpectingObject}
	ErrUnsupportedValue    = &Error{Kind: KindUnsupportedValue}
)

// Backend wraps an opaque driver failure. Errors that already carry a Kind
// are returned as is.
func Backend(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindDB, Err: err}
}

func TableNotFound(table string) error       { return &Error{Kind: KindTableNotFound, Name: table} }
func NoPrimaryKey(table string) error        { return &Error{Kind: KindNoPrimaryKey, Name: table} }
func CompositePrimaryKey(table string) error { return &Error{Kind: KindCompositePrimaryKey, Name: table} }
func MissingValue(column string) error       { return &Error{Kind: KindMissingValue, Name: column} }

// ConstraintViolation builds a constraint error; field may be empty.
func ConstraintViolation(field string, err error) error {
	return &Error{Kind: KindConstraint, Name: field, Err: err}
}

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
