package table

import (
	"fmt"
	"strings"

	"github.com/bgunnarsson/sqlrest/internal/catalog"
	"github.com/bgunnarsson/sqlrest/internal/db"
	"github.com/bgunnarsson/sqlrest/internal/value"
)

// InsertPlan is a validated single-row insert.
type InsertPlan struct {
	SQL     string
	Columns []string
	Args    []any
	// PrimaryKey is the single key column, empty when the table has none
	// or a composite one.
	PrimaryKey string
	// KeyArg is the payload value bound to PrimaryKey, nil when the backend
	// assigns the key.
	KeyArg any
}

// PlanInsert validates payload against schema. Columns are bound in schema
// order; a column absent from payload is left to the backend when it has a
// default or is the primary key, and is reported as missing otherwise.
// Payload members that name no column are ignored.
func PlanInsert(schema catalog.Schema, payload value.Value) (InsertPlan, error) {
	if payload.Kind() != value.Object {
		return InsertPlan{}, db.ErrExpectingObject
	}

	var plan InsertPlan
	if pks := schema.PrimaryKeys(); len(pks) == 1 {
		plan.PrimaryKey = pks[0].Name
	}

	for _, col := range schema.Columns {
		v, ok := payload.Field(col.Name)
		if !ok {
			if col.HasDefault || col.PrimaryKey {
				continue
			}
			return InsertPlan{}, db.MissingValue(col.Name)
		}
		arg, err := value.ToParameter(v)
		if err != nil {
			return InsertPlan{}, withColumn(err, col.Name)
		}
		plan.Columns = append(plan.Columns, col.Name)
		plan.Args = append(plan.Args, arg)
		if col.Name == plan.PrimaryKey {
			plan.KeyArg = arg
		}
	}

	table := db.QuoteIdent(schema.Table)
	if len(plan.Columns) == 0 {
		plan.SQL = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", table)
		return plan, nil
	}
	quoted := make([]string, len(plan.Columns))
	for i, c := range plan.Columns {
		quoted[i] = db.QuoteIdent(c)
	}
	plan.SQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(quoted)), ", "),
	)
	return plan, nil
}

// PlanDelete returns the key column for a keyed delete.
func PlanDelete(schema catalog.Schema) (string, error) {
	switch pks := schema.PrimaryKeys(); len(pks) {
	case 0:
		return "", db.NoPrimaryKey(schema.Table)
	case 1:
		return pks[0].Name, nil
	default:
		return "", db.CompositePrimaryKey(schema.Table)
	}
}

func withColumn(err error, column string) error {
	if e, ok := err.(*db.Error); ok && e.Name == "" {
		return &db.Error{Kind: e.Kind, Name: column, Err: e.Err}
	}
	return err
}
