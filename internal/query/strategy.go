package query

import (
	"strconv"
	"strings"

	bquery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/flexsearch/flexsearch/internal/analysis"
	"github.com/flexsearch/flexsearch/internal/errors"
	"github.com/flexsearch/flexsearch/internal/schema"
)

// Strategy builds the executable query for one condition. A nil query with a
// nil error means the condition compiled to nothing (for example an input
// that tokenized to zero terms) and the clause is skipped.
type Strategy func(f *schema.Field, cond *schema.SearchCondition, res *analysis.Resolver) (bquery.Query, error)

// Strategies is the registry of named condition builders.
type Strategies struct {
	byName map[string]Strategy
}

// NewStrategies returns the registry pre-loaded with the standard operators.
func NewStrategies() *Strategies {
	s := &Strategies{byName: make(map[string]Strategy)}
	s.Register("term_match", termMatch)
	s.Register("fuzzy_match", fuzzyMatch)
	s.Register("phrase_match", phraseMatch)
	s.Register("like", like)
	s.Register("string_range", stringRange)
	s.Register("numeric_range", numericRange)
	return s
}

// Register adds or replaces a strategy under name (case-insensitive).
func (s *Strategies) Register(name string, fn Strategy) {
	s.byName[strings.ToLower(name)] = fn
}

// Named resolves a strategy by operator name.
func (s *Strategies) Named(name string) (Strategy, error) {
	fn, ok := s.byName[strings.ToLower(name)]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnknownQueryOperator,
			"unknown query operator %q", name)
	}
	return fn, nil
}

func tokenize(f *schema.Field, res *analysis.Resolver, text string) ([]string, error) {
	tokens, err := res.Tokenize(analysis.AnalyzerForField(f), text)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidCondition, err)
	}
	return tokens, nil
}

func param(cond *schema.SearchCondition, name string) (string, bool) {
	for k, v := range cond.Parameters {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func intParam(cond *schema.SearchCondition, name string, fallback int) int {
	raw, ok := param(cond, name)
	if !ok {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func boolParam(cond *schema.SearchCondition, name string) bool {
	raw, ok := param(cond, name)
	if !ok {
		return false
	}
	v, err := strconv.ParseBool(strings.ToLower(raw))
	return err == nil && v
}

// termMatch matches a single point for numeric fields and analyzer terms for
// text fields. Multi-token input joins under the clausetype parameter
// ("or" means any term suffices).
func termMatch(f *schema.Field, cond *schema.SearchCondition, res *analysis.Resolver) (bquery.Query, error) {
	if f.Numeric() {
		v, err := f.ParseNumeric(cond.Values[0])
		if err != nil {
			return nil, errors.Newf(errors.ErrCodeInvalidCondition,
				"field %q: cannot parse %q as %s", f.Name, cond.Values[0], f.Kind)
		}
		incl := true
		q := bquery.NewNumericRangeInclusiveQuery(&v, &v, &incl, &incl)
		q.SetField(f.Name)
		return q, nil
	}

	tokens, err := tokenize(f, res, cond.Values[0])
	if err != nil {
		return nil, err
	}
	switch len(tokens) {
	case 0:
		return nil, nil
	case 1:
		q := bquery.NewTermQuery(tokens[0])
		q.SetField(f.Name)
		return q, nil
	}

	or := false
	if v, ok := param(cond, "clausetype"); ok {
		or = strings.EqualFold(v, "or")
	}
	bq := bquery.NewBooleanQuery(nil, nil, nil)
	for _, tok := range tokens {
		tq := bquery.NewTermQuery(tok)
		tq.SetField(f.Name)
		if or {
			bq.AddShould(tq)
		} else {
			bq.AddMust(tq)
		}
	}
	return bq, nil
}

// fuzzyMatch emits one fuzzy query per token; slop controls the edit
// distance and prefixlength the exact prefix.
func fuzzyMatch(f *schema.Field, cond *schema.SearchCondition, res *analysis.Resolver) (bquery.Query, error) {
	tokens, err := tokenize(f, res, cond.Values[0])
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	slop := intParam(cond, "slop", 1)
	prefix := intParam(cond, "prefixlength", 0)

	build := func(tok string) bquery.Query {
		fq := bquery.NewFuzzyQuery(tok)
		fq.SetField(f.Name)
		fq.SetFuzziness(slop)
		fq.SetPrefix(prefix)
		return fq
	}
	if len(tokens) == 1 {
		return build(tokens[0]), nil
	}
	bq := bquery.NewBooleanQuery(nil, nil, nil)
	for _, tok := range tokens {
		bq.AddMust(build(tok))
	}
	return bq, nil
}

// phraseMatch emits an exact phrase query over the analyzed terms. Sloppy
// phrases are not supported by the term index; slop > 0 degrades to a
// conjunction of the terms.
func phraseMatch(f *schema.Field, cond *schema.SearchCondition, res *analysis.Resolver) (bquery.Query, error) {
	tokens, err := tokenize(f, res, cond.Values[0])
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	if intParam(cond, "slop", 0) > 0 {
		bq := bquery.NewBooleanQuery(nil, nil, nil)
		for _, tok := range tokens {
			tq := bquery.NewTermQuery(tok)
			tq.SetField(f.Name)
			bq.AddMust(tq)
		}
		return bq, nil
	}
	return bquery.NewPhraseQuery(tokens, f.Name), nil
}

// like emits wildcard queries over the analyzed terms.
func like(f *schema.Field, cond *schema.SearchCondition, res *analysis.Resolver) (bquery.Query, error) {
	tokens, err := tokenize(f, res, cond.Values[0])
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	build := func(tok string) bquery.Query {
		wq := bquery.NewWildcardQuery(tok)
		wq.SetField(f.Name)
		return wq
	}
	if len(tokens) == 1 {
		return build(tokens[0]), nil
	}
	bq := bquery.NewBooleanQuery(nil, nil, nil)
	for _, tok := range tokens {
		bq.AddMust(build(tok))
	}
	return bq, nil
}

// stringRange emits a term-range query between the analyzed forms of the two
// bounds. Equal bounds are rejected.
func stringRange(f *schema.Field, cond *schema.SearchCondition, res *analysis.Resolver) (bquery.Query, error) {
	if len(cond.Values) < 2 {
		return nil, errors.Newf(errors.ErrCodeInvalidCondition,
			"field %q: string_range needs two values", f.Name)
	}
	lo, err := firstToken(f, res, cond.Values[0])
	if err != nil {
		return nil, err
	}
	hi, err := firstToken(f, res, cond.Values[1])
	if err != nil {
		return nil, err
	}
	if lo == hi {
		return nil, errors.Newf(errors.ErrCodeInvalidCondition,
			"field %q: range bounds must differ", f.Name)
	}

	inclLo := boolParam(cond, "includelower")
	inclHi := boolParam(cond, "includeupper")
	q := bquery.NewTermRangeInclusiveQuery(lo, hi, &inclLo, &inclHi)
	q.SetField(f.Name)
	return q, nil
}

// numericRange emits a numeric range query between the parsed bounds. Equal
// bounds are rejected.
func numericRange(f *schema.Field, cond *schema.SearchCondition, res *analysis.Resolver) (bquery.Query, error) {
	if len(cond.Values) < 2 {
		return nil, errors.Newf(errors.ErrCodeInvalidCondition,
			"field %q: numeric_range needs two values", f.Name)
	}
	lo, err := f.ParseNumeric(cond.Values[0])
	if err != nil {
		return nil, errors.Newf(errors.ErrCodeInvalidCondition,
			"field %q: cannot parse %q as %s", f.Name, cond.Values[0], f.Kind)
	}
	hi, err := f.ParseNumeric(cond.Values[1])
	if err != nil {
		return nil, errors.Newf(errors.ErrCodeInvalidCondition,
			"field %q: cannot parse %q as %s", f.Name, cond.Values[1], f.Kind)
	}
	if lo == hi {
		return nil, errors.Newf(errors.ErrCodeInvalidCondition,
			"field %q: range bounds must differ", f.Name)
	}

	inclLo := boolParam(cond, "includelower")
	inclHi := boolParam(cond, "includeupper")
	q := bquery.NewNumericRangeInclusiveQuery(&lo, &hi, &inclLo, &inclHi)
	q.SetField(f.Name)
	return q, nil
}

func firstToken(f *schema.Field, res *analysis.Resolver, text string) (string, error) {
	tokens, err := tokenize(f, res, text)
	if err != nil {
		return "", err
	}
	if len(tokens) == 0 {
		return "", errors.Newf(errors.ErrCodeInvalidCondition,
			"field %q: range bound %q produced no terms", f.Name, text)
	}
	return tokens[0], nil
}
