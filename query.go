package infiniteq

import (
	"encoding/json"
	"fmt"
	"slices"

	"gorm.io/gorm"
)

// AllColumns is the projection used when no columns are requested.
const AllColumns = "*"

// Query describes the rows a list displays: the target table, the column
// projection, the filters narrowing it and the ordering. It is a value type,
// builders return a modified copy and never touch the receiver.
type Query struct {
	Table   string    `json:"table"`
	Columns []string  `json:"columns"`
	Filters Filters   `json:"filters,omitempty"`
	Sort    Orderings `json:"sort,omitempty"`
}

// Refinement adds filtering and ordering to a base query. It must be a pure
// function of its input.
type Refinement func(Query) Query

// NewQuery returns the base query over table. With no columns, all columns
// are selected.
func NewQuery(table string, columns ...string) Query {
	if len(columns) == 0 {
		columns = []string{AllColumns}
	}

	return Query{
		Table:   table,
		Columns: slices.Clone(columns),
	}
}

// Where narrows the query by Operator(column, value).
func (q Query) Where(column string, operator Operator, value any) Query {
	q.Filters = append(slices.Clone(q.Filters), Filter{
		Column:   column,
		Operator: operator,
		Value:    value,
	})

	return q
}

// Eq is a shorthand for Where(column, OperatorEq, value).
func (q Query) Eq(column string, value any) Query {
	return q.Where(column, OperatorEq, value)
}

// OrderBy appends sort orderings without overwriting existing ones.
// Order is preserved as if calling:
//
//	OrderBy(o1).ThenBy(o2).ThenBy(o3)...
func (q Query) OrderBy(orderBy ...OrderBy) Query {
	q.Sort = q.Sort.With(orderBy...)
	return q
}

// SubstitutedOrderBy resets previous orderings and applies the provided ones.
func (q Query) SubstitutedOrderBy(orderBy ...OrderBy) Query {
	q.Sort = nil
	return q.OrderBy(orderBy...)
}

// Key returns the canonical serialized form of the query. Two queries are
// structurally equal if and only if their keys are equal.
func (q Query) Key() (string, error) {
	b, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("cannot serialize query: %w", err)
	}

	return string(b), nil
}

// Validate reports whether the query can be sent to a data source.
func (q Query) Validate() error {
	if q.Table == "" {
		return fmt.Errorf("query table is empty")
	}

	if !isSafeColumnName(q.Table) {
		return fmt.Errorf("query table name contains forbidden symbols '%s'", q.Table)
	}

	for _, column := range q.Columns {
		if column != AllColumns && !isSafeColumnName(column) {
			return fmt.Errorf("projection column name contains forbidden symbols '%s'", column)
		}
	}

	if err := q.Filters.validate(); err != nil {
		return err
	}

	return q.Sort.validate()
}

// Apply applies the table, projection, filters and ordering to a gorm query.
func (q Query) Apply(db *gorm.DB) *gorm.DB {
	db = q.applyPredicate(db)
	if len(q.Columns) > 0 {
		db = db.Select(q.Columns)
	}

	return q.Sort.Apply(db)
}

// applyPredicate applies only what determines the set of matching rows.
// Used to count the rows independently of projection and pagination.
func (q Query) applyPredicate(db *gorm.DB) *gorm.DB {
	db = db.Table(q.Table)

	exp := q.Filters.toGORMExpression()
	if exp == nil {
		return db
	}

	return db.Clauses(exp)
}

// Refine applies r to q. A nil refinement leaves the query unchanged.
func (q Query) Refine(r Refinement) Query {
	if r == nil {
		return q
	}

	return r(q)
}

// Chain composes refinements left to right.
func Chain(refinements ...Refinement) Refinement {
	return func(q Query) Query {
		for _, r := range refinements {
			q = q.Refine(r)
		}

		return q
	}
}

// SortRefinement builds a refinement from API-style "column asc|desc"
// strings, resolving aliases via columnMapping.
func SortRefinement(sort []string, columnMapping ColumnMapping) (Refinement, error) {
	orderings, err := ParseSort(sort, columnMapping)
	if err != nil {
		return nil, fmt.Errorf("cannot build sort refinement: %w", err)
	}

	return func(q Query) Query {
		return q.OrderBy(orderings...)
	}, nil
}
