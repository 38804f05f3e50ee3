package schema

import "strings"

// FilterType joins the clauses of a search filter.
type FilterType int

const (
	FilterAnd FilterType = iota
	FilterOr
)

// ParseFilterType resolves a filter type name (case-insensitive).
func ParseFilterType(name string) (FilterType, bool) {
	switch strings.ToLower(name) {
	case "", "and":
		return FilterAnd, true
	case "or":
		return FilterOr, true
	}
	return FilterAnd, false
}

// MissingValueOption controls profile compilation when a bound value is
// absent from the request.
type MissingValueOption int

const (
	// MissingThrowError fails the compilation.
	MissingThrowError MissingValueOption = iota
	// MissingDefault keeps the literal value from the condition.
	MissingDefault
	// MissingIgnore skips the clause.
	MissingIgnore
)

// SearchCondition is one clause of a filter tree: an operator applied to a
// field with values and optional parameters.
type SearchCondition struct {
	FieldName    string             `json:"field"`
	Operator     string             `json:"operator"`
	Values       []string           `json:"values"`
	Parameters   map[string]string  `json:"parameters,omitempty"`
	Boost        int                `json:"boost,omitempty"`
	MissingValue MissingValueOption `json:"missing_value,omitempty"`
}

// SearchFilter is a nested conjunction/disjunction of conditions describing
// a search.
type SearchFilter struct {
	FilterType    FilterType         `json:"filter_type"`
	Conditions    []*SearchCondition `json:"conditions,omitempty"`
	SubFilters    []*SearchFilter    `json:"sub_filters,omitempty"`
	ConstantScore int                `json:"constant_score,omitempty"`
}
