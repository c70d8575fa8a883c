package store

import (
	"fmt"
	"time"

	"lucerna/pkg/models"
)

// Filterable message fields. Predicates on any other name fail the query
// instead of being silently ignored.
const (
	FieldID          = "id"
	FieldUserID      = "user_id"
	FieldAggregateID = "aggregate_id"
	FieldModel       = "model"
	FieldRole        = "role"
	FieldCreatedAt   = "created_at"
	FieldTokenCount  = "token_count"
)

// Op is a comparison operator in a predicate.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpNe:
		return "ne"
	case OpGt:
		return "gt"
	case OpGte:
		return "gte"
	case OpLt:
		return "lt"
	case OpLte:
		return "lte"
	case OpIn:
		return "in"
	}
	return "unknown"
}

// Predicate is one clause of a conjunctive filter over message fields.
// Build predicates with the constructor functions; queries evaluate the
// conjunction of all clauses.
type Predicate struct {
	Field string
	Op    Op
	Value any
	// Values holds the member set for OpIn.
	Values []any
}

func Eq(field string, v any) Predicate  { return Predicate{Field: field, Op: OpEq, Value: v} }
func Ne(field string, v any) Predicate  { return Predicate{Field: field, Op: OpNe, Value: v} }
func Gt(field string, v any) Predicate  { return Predicate{Field: field, Op: OpGt, Value: v} }
func Gte(field string, v any) Predicate { return Predicate{Field: field, Op: OpGte, Value: v} }
func Lt(field string, v any) Predicate  { return Predicate{Field: field, Op: OpLt, Value: v} }
func Lte(field string, v any) Predicate { return Predicate{Field: field, Op: OpLte, Value: v} }
func In(field string, vs ...any) Predicate {
	return Predicate{Field: field, Op: OpIn, Values: vs}
}

func matchAll(m models.Message, preds []Predicate) (bool, error) {
	for _, p := range preds {
		ok, err := match(m, p)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func match(m models.Message, p Predicate) (bool, error) {
	switch p.Field {
	case FieldCreatedAt:
		return matchTime(m.CreatedAt, p)
	case FieldTokenCount:
		return matchInt(int64(m.TokenCount), p)
	case FieldID:
		return matchString(m.ID, p)
	case FieldUserID:
		return matchString(m.UserID, p)
	case FieldAggregateID:
		return matchString(m.AggregateID, p)
	case FieldModel:
		return matchString(m.Model, p)
	case FieldRole:
		return matchString(m.Role, p)
	}
	return false, fmt.Errorf("unknown filter field: %s", p.Field)
}

func matchString(have string, p Predicate) (bool, error) {
	if p.Op == OpIn {
		for _, v := range p.Values {
			s, ok := v.(string)
			if !ok {
				return false, fmt.Errorf("filter %s %s: want string member, got %T", p.Field, p.Op, v)
			}
			if have == s {
				return true, nil
			}
		}
		return false, nil
	}
	want, ok := p.Value.(string)
	if !ok {
		return false, fmt.Errorf("filter %s %s: want string, got %T", p.Field, p.Op, p.Value)
	}
	switch p.Op {
	case OpEq:
		return have == want, nil
	case OpNe:
		return have != want, nil
	case OpGt:
		return have > want, nil
	case OpGte:
		return have >= want, nil
	case OpLt:
		return have < want, nil
	case OpLte:
		return have <= want, nil
	}
	return false, fmt.Errorf("filter %s: unsupported operator %s", p.Field, p.Op)
}

func matchInt(have int64, p Predicate) (bool, error) {
	if p.Op == OpIn {
		for _, v := range p.Values {
			w, err := toInt64(v)
			if err != nil {
				return false, fmt.Errorf("filter %s %s: %w", p.Field, p.Op, err)
			}
			if have == w {
				return true, nil
			}
		}
		return false, nil
	}
	want, err := toInt64(p.Value)
	if err != nil {
		return false, fmt.Errorf("filter %s %s: %w", p.Field, p.Op, err)
	}
	switch p.Op {
	case OpEq:
		return have == want, nil
	case OpNe:
		return have != want, nil
	case OpGt:
		return have > want, nil
	case OpGte:
		return have >= want, nil
	case OpLt:
		return have < want, nil
	case OpLte:
		return have <= want, nil
	}
	return false, fmt.Errorf("filter %s: unsupported operator %s", p.Field, p.Op)
}

func matchTime(have time.Time, p Predicate) (bool, error) {
	if p.Op == OpIn {
		for _, v := range p.Values {
			w, ok := v.(time.Time)
			if !ok {
				return false, fmt.Errorf("filter %s %s: want time member, got %T", p.Field, p.Op, v)
			}
			if have.Equal(w) {
				return true, nil
			}
		}
		return false, nil
	}
	want, ok := p.Value.(time.Time)
	if !ok {
		return false, fmt.Errorf("filter %s %s: want time.Time, got %T", p.Field, p.Op, p.Value)
	}
	switch p.Op {
	case OpEq:
		return have.Equal(want), nil
	case OpNe:
		return !have.Equal(want), nil
	case OpGt:
		return have.After(want), nil
	case OpGte:
		return have.After(want) || have.Equal(want), nil
	case OpLt:
		return have.Before(want), nil
	case OpLte:
		return have.Before(want) || have.Equal(want), nil
	}
	return false, fmt.Errorf("filter %s: unsupported operator %s", p.Field, p.Op)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	}
	return 0, fmt.Errorf("want numeric value, got %T", v)
}
