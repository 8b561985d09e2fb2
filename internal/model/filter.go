package model

// Logical field names accepted in filters. Repositories map them onto columns.
const (
	FieldCustomer         = "customer"
	FieldIdentity         = "user"
	FieldProfile          = "portal_profile"
	FieldEnabled          = "enabled"
	FieldCompanyName      = "company_name"
	FieldTaxID            = "tax_id"
	FieldCommercialNumber = "commercial_number"
	FieldRole             = "role"
)

type Condition struct {
	Field string
	Value any
}

// Filter is a conjunction of equality conditions. A filter with MatchNone set
// admits no record regardless of its conditions.
type Filter struct {
	MatchNone  bool
	Conditions []Condition
}

func MatchAll() Filter {
	return Filter{}
}

func MatchNothing() Filter {
	return Filter{MatchNone: true}
}

func Where(field string, value any) Filter {
	return Filter{Conditions: []Condition{{Field: field, Value: value}}}
}

// And intersects two filters.
func (f Filter) And(other Filter) Filter {
	conds := make([]Condition, 0, len(f.Conditions)+len(other.Conditions))
	conds = append(conds, f.Conditions...)
	conds = append(conds, other.Conditions...)
	return Filter{
		MatchNone:  f.MatchNone || other.MatchNone,
		Conditions: conds,
	}
}

func (f Filter) IsMatchAll() bool {
	return !f.MatchNone && len(f.Conditions) == 0
}

// Value returns the value of the first condition on field.
func (f Filter) Value(field string) (any, bool) {
	for _, c := range f.Conditions {
		if c.Field == field {
			return c.Value, true
		}
	}
	return nil, false
}

// Admits reports whether a record satisfies f. value returns the record's
// value for a field; a condition on a field the record lacks never matches.
func (f Filter) Admits(value func(field string) (any, bool)) bool {
	if f.MatchNone {
		return false
	}
	for _, c := range f.Conditions {
		v, ok := value(c.Field)
		if !ok || v != c.Value {
			return false
		}
	}
	return true
}
