package database

import (
	"github.com/huandu/go-sqlbuilder"
)

// InsertBuilder adds the conflict clauses shared by PostgreSQL and SQLite.
type InsertBuilder struct {
	*sqlbuilder.InsertBuilder
}

func NewInsertBuilder(ib *sqlbuilder.InsertBuilder) *InsertBuilder {
	return &InsertBuilder{ib}
}

// OnConflictDoNothing skips the row when any unique constraint or unique
// index would be violated.
func (b *InsertBuilder) OnConflictDoNothing() *InsertBuilder {
	b.SQL("ON CONFLICT DO NOTHING")
	return b
}

// NewStruct builds a sqlbuilder.Struct for the row type of v in the flavor of
// db. Columns come from the `db` tags.
func NewStruct(db DB, v any) *sqlbuilder.Struct {
	return sqlbuilder.NewStruct(v).For(db.Flavor())
}
