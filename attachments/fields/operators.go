package fields

// FieldType classifies a queryable field and determines its operator set.
type FieldType string

const (
	TypeText         FieldType = "text"
	TypeInteger      FieldType = "integer"
	TypeFloat        FieldType = "float"
	TypeDatePast     FieldType = "date_past"
	TypeList         FieldType = "list"
	TypeListOptional FieldType = "list_optional"
	TypeListStatus   FieldType = "list_status"
	TypeTree         FieldType = "tree"
)

// Operator codes. The short forms are part of the wire format carried in
// stored filters and request parameters.
const (
	OpEquals      = "="
	OpContains    = "~"
	OpNotEquals   = "!"
	OpNotContains = "!~"
	OpNone        = "!*"
	OpAny         = "*"
	OpGreaterOrEq = ">="
	OpLessOrEq    = "<="
	OpBetween     = "><"
	OpInLessThan  = ">t-"
	OpInMoreThan  = "<t-"
	OpDaysAgo     = "t-"
	OpToday       = "t"
	OpThisWeek    = "w"
	OpOpen        = "o"
	OpClosed      = "c"
)

// operatorsByType maps each field type to its ordered operator set.
var operatorsByType = map[FieldType][]string{
	TypeText:         {OpEquals, OpContains, OpNotEquals, OpNotContains, OpNone, OpAny},
	TypeInteger:      {OpEquals, OpGreaterOrEq, OpLessOrEq, OpBetween, OpNone, OpAny},
	TypeFloat:        {OpEquals, OpGreaterOrEq, OpLessOrEq, OpBetween, OpNone, OpAny},
	TypeDatePast:     {OpEquals, OpGreaterOrEq, OpLessOrEq, OpBetween, OpInLessThan, OpInMoreThan, OpDaysAgo, OpToday, OpThisWeek, OpNone, OpAny},
	TypeList:         {OpEquals, OpNotEquals},
	TypeListOptional: {OpEquals, OpNotEquals, OpNone, OpAny},
	TypeListStatus:   {OpOpen, OpEquals, OpNotEquals, OpClosed, OpAny},
	TypeTree:         {OpEquals, OpContains, OpNone, OpAny},
}

// operatorsRequiringNoValues holds the operators that are complete
// without a value set.
var operatorsRequiringNoValues = map[string]bool{
	OpNone:     true,
	OpAny:      true,
	OpToday:    true,
	OpThisWeek: true,
	OpOpen:     true,
	OpClosed:   true,
}

// OperatorsFor returns the ordered operator set for a field type.
func OperatorsFor(fieldType FieldType) []string {
	ops := operatorsByType[fieldType]
	out := make([]string, len(ops))
	copy(out, ops)
	return out
}

// SupportsOperator reports whether the field type admits the operator.
func SupportsOperator(fieldType FieldType, operator string) bool {
	for _, op := range operatorsByType[fieldType] {
		if op == operator {
			return true
		}
	}
	return false
}

// RequiresValues reports whether the operator needs a non-empty value set.
func RequiresValues(operator string) bool {
	return !operatorsRequiringNoValues[operator]
}
