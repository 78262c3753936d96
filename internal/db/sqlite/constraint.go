package sqlite

import (
	"errors"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/bgunnarsson/sqlrest/internal/db"
)

const uniquePrefix = "UNIQUE constraint failed: "

// ConstraintField extracts the column from a uniqueness diagnostic of the
// form "UNIQUE constraint failed: <table>.<column>". Driver decoration
// around the message is tolerated. Any other shape, including violations
// that name several columns, reports false.
func ConstraintField(msg string) (string, bool) {
	i := strings.Index(msg, uniquePrefix)
	if i < 0 {
		return "", false
	}
	rest := msg[i+len(uniquePrefix):]
	// modernc appends " (<code>)"
	if j := strings.IndexByte(rest, ' '); j >= 0 {
		rest = rest[:j]
	}
	if strings.Contains(rest, ",") {
		return "", false
	}
	_, column, ok := strings.Cut(rest, ".")
	if !ok || column == "" || strings.Contains(column, ".") {
		return "", false
	}
	return column, true
}

// TranslateError maps a driver error onto the db error kinds. Constraint
// violations become db.ErrConstraint with the field when it can be
// determined; everything else is an opaque db.ErrDB.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	var kinded *db.Error
	if errors.As(err, &kinded) && kinded.Kind != db.KindDB {
		return err
	}
	if isConstraint(err) {
		field, _ := ConstraintField(err.Error())
		return db.ConstraintViolation(field, err)
	}
	return db.Backend(err)
}

func isConstraint(err error) bool {
	var serr *msqlite.Error
	if errors.As(err, &serr) {
		return serr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	// other drivers and test doubles only expose the message
	return strings.Contains(err.Error(), "constraint failed")
}
