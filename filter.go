package infiniteq

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm/clause"
)

type (
	// Filter is a single condition of the form Operator(Column, Value).
	Filter struct {
		Column   string   `json:"c"`
		Operator Operator `json:"o"`
		Value    any      `json:"v"`
	}

	// Filters is a conjunction of conditions. Every filter added by a refinement
	// narrows the result set:
	//
	//	Filters = F1 AND F2 ... AND Fn
	Filters []Filter
)

// toGORMExpression converts a filter of the form Operator(Column, Value)
// into an SQL condition "Column Operator ?" represented as a clause.Expression.
//
// Example:
//
//	Filter = { Column: "id", Operator: ">", Value: 123}
//
// Result:
//
//	"id > 123"
func (f Filter) toGORMExpression() clause.Expression {
	sqlClause, arg := f.toSQLClause()

	return clause.Expr{
		SQL:  sqlClause,
		Vars: []any{arg},
	}
}

// toSQLClause converts a filter to an SQL condition with a corresponding value.
//
// Example:
//
//	Filter = { Column: "status", Operator: "IN", Value: []string{"a", "b"}}
//
// Result:
//
//	("status IN (?)", []string{"a", "b"})
func (f Filter) toSQLClause() (string, driver.Value) {
	return fmt.Sprintf("%s %s %s", f.Column, f.Operator, f.Operator.placeholder()), parseAnyValue(f.Value)
}

func (f Filter) validate() error {
	if !f.Operator.Valid() {
		return fmt.Errorf("invalid filter operator '%s'", f.Operator)
	}

	if !isSafeColumnName(f.Column) {
		return fmt.Errorf("filter column name contains forbidden symbols '%s'", f.Column)
	}

	return nil
}

func parseAnyValue(v any) any {
	// Values decoded from JSON or query strings lose their time.Time type.
	// Try to restore it, otherwise return the original value.
	fnParseBytesToTimeOrValue := func(vBytes []byte) any {
		dst := time.Time{}
		err := dst.UnmarshalText(vBytes)
		if err == nil {
			return dst
		}

		return v
	}

	switch vt := v.(type) {
	case string:
		return fnParseBytesToTimeOrValue([]byte(vt))
	case []byte:
		return fnParseBytesToTimeOrValue(vt)
	default:
		return v
	}
}

// toGORMExpression converts filters (F1, F2, F3) into a gorm expression
// "F1 AND F2 AND F3". Returns nil for an empty list.
func (fs Filters) toGORMExpression() clause.Expression {
	andExpressions := make([]clause.Expression, 0, len(fs))
	for _, f := range fs {
		andExpressions = append(andExpressions, f.toGORMExpression())
	}

	if len(andExpressions) == 1 {
		return andExpressions[0]
	} else if len(andExpressions) > 1 {
		return clause.And(andExpressions...)
	}

	return nil
}

// ToSQL converts filters into an SQL condition "(F1 AND F2 AND F3)" with the
// values for its placeholders. An empty list yields "TRUE".
//
// Usage:
//
//	where, args := q.Filters.ToSQL()
//	query := fmt.Sprintf("SELECT * FROM table WHERE %s", where)
func (fs Filters) ToSQL() (string, []driver.Value) {
	andClauses := make([]string, 0, len(fs))
	andValues := make([]driver.Value, 0, len(fs))

	for _, f := range fs {
		andClause, andValue := f.toSQLClause()
		andClauses = append(andClauses, andClause)
		andValues = append(andValues, andValue)
	}

	if len(andClauses) >= 1 {
		return fmt.Sprintf("(%s)", strings.Join(andClauses, " AND ")), andValues
	}

	return "TRUE", nil
}

func (fs Filters) validate() error {
	for _, f := range fs {
		if err := f.validate(); err != nil {
			return err
		}
	}

	return nil
}
