package repository

import (
	"time"
)

// ConditionBuilder is the predicate surface shared by sqlbuilder's select,
// update and delete builders.
type ConditionBuilder interface {
	Equal(field string, value interface{}) string
	IsNull(field string) string
	In(field string, values ...interface{}) string
	GreaterEqualThan(field string, value interface{}) string
	LessEqualThan(field string, value interface{}) string
}

// Condition renders one predicate against a builder. A nil Condition means
// the criterion was not supplied and is skipped.
type Condition func(b ConditionBuilder) string

// Filter is a conjunction of conditions. The zero Filter matches every row.
type Filter struct {
	conditions []Condition
}

func Where(conditions ...Condition) Filter {
	return Filter{}.And(conditions...)
}

// And returns a new filter with the non-nil conditions appended.
func (f Filter) And(conditions ...Condition) Filter {
	next := make([]Condition, 0, len(f.conditions)+len(conditions))
	next = append(next, f.conditions...)
	for _, c := range conditions {
		if c != nil {
			next = append(next, c)
		}
	}
	return Filter{conditions: next}
}

// IsEmpty reports whether the filter constrains nothing.
func (f Filter) IsEmpty() bool {
	return len(f.conditions) == 0
}

// Build renders every condition against b.
func (f Filter) Build(b ConditionBuilder) []string {
	exprs := make([]string, 0, len(f.conditions))
	for _, c := range f.conditions {
		exprs = append(exprs, c(b))
	}
	return exprs
}

func Eq(column string, value any) Condition {
	return func(b ConditionBuilder) string {
		return b.Equal(column, value)
	}
}

// OptionalEq constrains column only when value is set.
func OptionalEq[T any](column string, value *T) Condition {
	if value == nil {
		return nil
	}
	return Eq(column, *value)
}

// OptionalString constrains column only when value is non-empty.
func OptionalString(column string, value string) Condition {
	if value == "" {
		return nil
	}
	return Eq(column, value)
}

func IsNull(column string) Condition {
	return func(b ConditionBuilder) string {
		return b.IsNull(column)
	}
}

// EqOrNull matches value, or NULL when value is nil.
func EqOrNull[T any](column string, value *T) Condition {
	if value == nil {
		return IsNull(column)
	}
	return Eq(column, *value)
}

// In matches any of values. An empty list matches nothing.
func In[T any](column string, values []T) Condition {
	return func(b ConditionBuilder) string {
		if len(values) == 0 {
			return "1 = 0"
		}
		args := make([]interface{}, len(values))
		for i, v := range values {
			args[i] = v
		}
		return b.In(column, args...)
	}
}

// Range constrains column to [from, to]. Either bound may be nil; with both
// nil the criterion is skipped.
func Range(column string, from, to *time.Time) Condition {
	if from == nil && to == nil {
		return nil
	}
	return func(b ConditionBuilder) string {
		switch {
		case from != nil && to != nil:
			return "(" + b.GreaterEqualThan(column, *from) + " AND " + b.LessEqualThan(column, *to) + ")"
		case from != nil:
			return b.GreaterEqualThan(column, *from)
		default:
			return b.LessEqualThan(column, *to)
		}
	}
}
