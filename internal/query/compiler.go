// Package query compiles filter trees into executable index queries. Each
// condition resolves through the strategy registry; filters join their
// clauses under a boolean query and nest recursively.
package query

import (
	"strings"

	bquery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/flexsearch/flexsearch/internal/analysis"
	"github.com/flexsearch/flexsearch/internal/errors"
	"github.com/flexsearch/flexsearch/internal/schema"
	"github.com/flexsearch/flexsearch/internal/script"
)

// Compiler compiles filter trees against one index setting.
type Compiler struct {
	setting    *schema.IndexSetting
	resolver   *analysis.Resolver
	strategies *Strategies
	scripts    *script.Registry
}

// NewCompiler creates a compiler for setting. scripts may be nil when
// profile-selector queries are not used.
func NewCompiler(setting *schema.IndexSetting, resolver *analysis.Resolver, strategies *Strategies, scripts *script.Registry) *Compiler {
	return &Compiler{
		setting:    setting,
		resolver:   resolver,
		strategies: strategies,
		scripts:    scripts,
	}
}

// Compile turns a filter tree into an executable query. A nil result with a
// nil error means every clause compiled to nothing.
func (c *Compiler) Compile(filter *schema.SearchFilter) (bquery.Query, error) {
	return c.compile(filter, true, nil)
}

// ProfileQuery selects a stored profile and binds request fields into its
// conditions.
type ProfileQuery struct {
	// Selector names a registered profile-selector script. When set it
	// picks the profile from the request fields.
	Selector string `json:"selector,omitempty"`

	// Profile names the profile directly when no selector is used.
	Profile string `json:"profile,omitempty"`

	// Fields are the request values bound into the profile's conditions.
	Fields map[string]string `json:"fields,omitempty"`
}

// CompileProfile resolves the profile named by pq and compiles it with the
// request fields as bindings.
func (c *Compiler) CompileProfile(pq *ProfileQuery) (bquery.Query, error) {
	name := pq.Profile
	if pq.Selector != "" {
		if c.scripts == nil {
			return nil, errors.Newf(errors.ErrCodeUnknownSearchProfile,
				"no script registry for profile selector %q", pq.Selector)
		}
		fn, err := c.scripts.Selector(pq.Selector)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeUnknownSearchProfile, err)
		}
		name, err = fn(pq.Fields)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeUnknownSearchProfile, err)
		}
	}
	if name == "" {
		return nil, errors.Newf(errors.ErrCodeUnknownSearchProfile,
			"profile query needs a selector or a profile name")
	}

	filter, ok := c.setting.ProfileNamed(name)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnknownSearchProfile,
			"index %q has no search profile %q", c.setting.Name, name)
	}
	return c.compile(filter, true, pq.Fields)
}

func (c *Compiler) compile(filter *schema.SearchFilter, topLevel bool, bindings map[string]string) (bquery.Query, error) {
	bq := bquery.NewBooleanQuery(nil, nil, nil)
	clauses := 0

	add := func(q bquery.Query) {
		if filter.FilterType == schema.FilterOr {
			bq.AddShould(q)
		} else {
			bq.AddMust(q)
		}
		clauses++
	}

	for _, cond := range filter.Conditions {
		q, err := c.compileCondition(cond, bindings)
		if err != nil {
			return nil, err
		}
		if q != nil {
			add(q)
		}
	}

	for _, sub := range filter.SubFilters {
		q, err := c.compile(sub, false, bindings)
		if err != nil {
			return nil, err
		}
		if q != nil {
			add(q)
		}
	}

	if clauses == 0 {
		return nil, nil
	}
	if filter.ConstantScore > 1 && !topLevel {
		bq.SetBoost(float64(filter.ConstantScore))
	}
	return bq, nil
}

func (c *Compiler) compileCondition(cond *schema.SearchCondition, bindings map[string]string) (bquery.Query, error) {
	strategy, err := c.strategies.Named(cond.Operator)
	if err != nil {
		return nil, err
	}

	f, ok := c.setting.QueryField(cond.FieldName)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnknownField,
			"index %q has no field %q", c.setting.Name, cond.FieldName)
	}
	if f.StoreOnly {
		return nil, errors.Newf(errors.ErrCodeStoreOnlyField,
			"field %q is store-only and cannot be queried", f.Name)
	}

	// Profile mode substitutes the bound request value; stored profile
	// trees are shared, so the condition is copied before mutation.
	if bindings != nil {
		bound, found := lookupBinding(bindings, cond.FieldName)
		if found {
			copied := *cond
			values := make([]string, len(cond.Values))
			copy(values, cond.Values)
			if len(values) == 0 {
				values = []string{bound}
			} else {
				values[0] = bound
			}
			copied.Values = values
			cond = &copied
		} else {
			switch cond.MissingValue {
			case schema.MissingIgnore:
				return nil, nil
			case schema.MissingThrowError:
				return nil, errors.Newf(errors.ErrCodeInvalidCondition,
					"no value bound for field %q", cond.FieldName)
			}
			// MissingDefault keeps the literal condition values.
		}
	}

	if len(cond.Values) == 0 || cond.Values[0] == "" {
		return nil, errors.Newf(errors.ErrCodeInvalidCondition,
			"condition on field %q has no values", cond.FieldName)
	}

	q, err := strategy(f, cond, c.resolver)
	if err != nil || q == nil {
		return nil, err
	}
	if cond.Boost > 1 {
		if boostable, ok := q.(bquery.BoostableQuery); ok {
			boostable.SetBoost(float64(cond.Boost))
		}
	}
	return q, nil
}

func lookupBinding(bindings map[string]string, field string) (string, bool) {
	if v, ok := bindings[field]; ok {
		return v, true
	}
	folded := strings.ToLower(field)
	for k, v := range bindings {
		if strings.ToLower(k) == folded {
			return v, true
		}
	}
	return "", false
}
