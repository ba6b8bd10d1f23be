package infiniteq

// Operator defines a comparison operator for filtering by column.
// Used by refinements to narrow the base query.
type Operator string

const (
	OperatorEq   Operator = "="
	OperatorNeq  Operator = "<>"
	OperatorGT   Operator = ">"
	OperatorGTE  Operator = ">="
	OperatorLT   Operator = "<"
	OperatorLTE  Operator = "<="
	OperatorLike Operator = "LIKE"
	OperatorIn   Operator = "IN"
	OperatorIs   Operator = "IS"
)

func (o Operator) Valid() bool {
	switch o {
	case OperatorEq, OperatorNeq, OperatorGT, OperatorGTE, OperatorLT, OperatorLTE,
		OperatorLike, OperatorIn, OperatorIs:
		return true
	default:
		return false
	}
}

// placeholder returns the right-hand side of the SQL condition for the operator.
// IN expects a slice and gorm expands it into a parenthesized list.
func (o Operator) placeholder() string {
	if o == OperatorIn {
		return "(?)"
	}

	return "?"
}
