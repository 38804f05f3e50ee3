package query

import (
	"testing"

	bquery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexsearch/flexsearch/internal/analysis"
	"github.com/flexsearch/flexsearch/internal/errors"
	"github.com/flexsearch/flexsearch/internal/schema"
	"github.com/flexsearch/flexsearch/internal/script"
)

func testCompiler(t *testing.T, scripts *script.Registry) *Compiler {
	t.Helper()

	builder := schema.NewSettingsBuilder(script.NewRegistry(), analysis.BuiltinAnalyzer)
	setting, err := builder.BuildSetting(&schema.Index{
		Name: "books",
		Fields: []schema.FieldDefinition{
			{Name: "title", Kind: "text"},
			{Name: "tag", Kind: "exacttext"},
			{Name: "pages", Kind: "int"},
			{Name: "blob", Kind: "stored"},
		},
		Profiles: []schema.ProfileDefinition{
			{
				Name: "by_tag",
				Filter: &schema.SearchFilter{
					Conditions: []*schema.SearchCondition{
						{FieldName: "tag", Operator: "term_match", Values: []string{"fallback"}, MissingValue: schema.MissingDefault},
					},
				},
			},
			{
				Name: "optional_tag",
				Filter: &schema.SearchFilter{
					Conditions: []*schema.SearchCondition{
						{FieldName: "title", Operator: "term_match", Values: []string{"always"}},
						{FieldName: "tag", Operator: "term_match", MissingValue: schema.MissingIgnore},
					},
				},
			},
		},
	}, t.TempDir())
	require.NoError(t, err)

	im, err := analysis.BuildMapping(setting)
	require.NoError(t, err)
	return NewCompiler(setting, analysis.NewResolver(im), NewStrategies(), scripts)
}

func singleCondition(cond *schema.SearchCondition) *schema.SearchFilter {
	return &schema.SearchFilter{Conditions: []*schema.SearchCondition{cond}}
}

// mustClauses unwraps the conjunction of a compiled And filter.
func mustClauses(t *testing.T, q bquery.Query) []bquery.Query {
	t.Helper()
	bq, ok := q.(*bquery.BooleanQuery)
	require.True(t, ok)
	conj, ok := bq.Must.(*bquery.ConjunctionQuery)
	require.True(t, ok)
	return conj.Conjuncts
}

func TestCompile_UnknownOperator(t *testing.T) {
	c := testCompiler(t, nil)

	_, err := c.Compile(singleCondition(&schema.SearchCondition{
		FieldName: "title", Operator: "regex_match", Values: []string{"x"},
	}))
	assert.Equal(t, errors.ErrCodeUnknownQueryOperator, errors.GetCode(err))
}

func TestCompile_UnknownField(t *testing.T) {
	c := testCompiler(t, nil)

	_, err := c.Compile(singleCondition(&schema.SearchCondition{
		FieldName: "author", Operator: "term_match", Values: []string{"x"},
	}))
	assert.Equal(t, errors.ErrCodeUnknownField, errors.GetCode(err))
}

func TestCompile_StoreOnlyField(t *testing.T) {
	c := testCompiler(t, nil)

	_, err := c.Compile(singleCondition(&schema.SearchCondition{
		FieldName: "blob", Operator: "term_match", Values: []string{"x"},
	}))
	assert.Equal(t, errors.ErrCodeStoreOnlyField, errors.GetCode(err))
}

func TestCompile_EmptyValues(t *testing.T) {
	c := testCompiler(t, nil)

	_, err := c.Compile(singleCondition(&schema.SearchCondition{
		FieldName: "title", Operator: "term_match",
	}))
	assert.Equal(t, errors.ErrCodeInvalidCondition, errors.GetCode(err))
}

func TestCompile_TermMatchReservedIdField(t *testing.T) {
	c := testCompiler(t, nil)

	q, err := c.Compile(singleCondition(&schema.SearchCondition{
		FieldName: "id", Operator: "term_match", Values: []string{"B1"},
	}))
	require.NoError(t, err)

	clauses := mustClauses(t, q)
	require.Len(t, clauses, 1)
	tq, ok := clauses[0].(*bquery.TermQuery)
	require.True(t, ok)
	assert.Equal(t, "b1", tq.Term)
	assert.Equal(t, schema.FieldId, tq.FieldVal)
}

func TestCompile_TermMatchReservedVersionField(t *testing.T) {
	c := testCompiler(t, nil)

	q, err := c.Compile(singleCondition(&schema.SearchCondition{
		FieldName: "version", Operator: "term_match", Values: []string{"2"},
	}))
	require.NoError(t, err)

	clauses := mustClauses(t, q)
	require.Len(t, clauses, 1)
	nq, ok := clauses[0].(*bquery.NumericRangeQuery)
	require.True(t, ok)
	assert.Equal(t, schema.FieldVersion, nq.FieldVal)
	assert.Equal(t, 2.0, *nq.Min)
	assert.Equal(t, 2.0, *nq.Max)
}

func TestCompile_TermMatchText(t *testing.T) {
	c := testCompiler(t, nil)

	q, err := c.Compile(singleCondition(&schema.SearchCondition{
		FieldName: "title", Operator: "term_match", Values: []string{"Dune"},
	}))
	require.NoError(t, err)

	clauses := mustClauses(t, q)
	require.Len(t, clauses, 1)
	tq, ok := clauses[0].(*bquery.TermQuery)
	require.True(t, ok)
	assert.Equal(t, "dune", tq.Term)
	assert.Equal(t, "title", tq.FieldVal)
}

func TestCompile_TermMatchNumericPoint(t *testing.T) {
	c := testCompiler(t, nil)

	q, err := c.Compile(singleCondition(&schema.SearchCondition{
		FieldName: "pages", Operator: "term_match", Values: []string{"412"},
	}))
	require.NoError(t, err)

	clauses := mustClauses(t, q)
	require.Len(t, clauses, 1)
	nq, ok := clauses[0].(*bquery.NumericRangeQuery)
	require.True(t, ok)
	require.NotNil(t, nq.Min)
	require.NotNil(t, nq.Max)
	assert.Equal(t, float64(412), *nq.Min)
	assert.Equal(t, *nq.Min, *nq.Max)
	assert.True(t, *nq.InclusiveMin)
	assert.True(t, *nq.InclusiveMax)
}

func TestCompile_TermMatchMultiToken(t *testing.T) {
	c := testCompiler(t, nil)

	q, err := c.Compile(singleCondition(&schema.SearchCondition{
		FieldName: "title", Operator: "term_match", Values: []string{"great sandworm"},
	}))
	require.NoError(t, err)

	clauses := mustClauses(t, q)
	require.Len(t, clauses, 1)
	inner, ok := clauses[0].(*bquery.BooleanQuery)
	require.True(t, ok)
	conj, ok := inner.Must.(*bquery.ConjunctionQuery)
	require.True(t, ok)
	assert.Len(t, conj.Conjuncts, 2)
	assert.Nil(t, inner.Should)
}

func TestCompile_TermMatchClauseTypeOr(t *testing.T) {
	c := testCompiler(t, nil)

	q, err := c.Compile(singleCondition(&schema.SearchCondition{
		FieldName:  "title",
		Operator:   "term_match",
		Values:     []string{"great sandworm"},
		Parameters: map[string]string{"clausetype": "or"},
	}))
	require.NoError(t, err)

	clauses := mustClauses(t, q)
	inner, ok := clauses[0].(*bquery.BooleanQuery)
	require.True(t, ok)
	disj, ok := inner.Should.(*bquery.DisjunctionQuery)
	require.True(t, ok)
	assert.Len(t, disj.Disjuncts, 2)
	assert.Nil(t, inner.Must)
}

func TestCompile_TermMatchStopwordOnlyCompilesToNothing(t *testing.T) {
	c := testCompiler(t, nil)

	// The standard analyzer drops stop words, leaving zero terms.
	q, err := c.Compile(singleCondition(&schema.SearchCondition{
		FieldName: "title", Operator: "term_match", Values: []string{"the"},
	}))
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestCompile_FuzzyMatchParameters(t *testing.T) {
	c := testCompiler(t, nil)

	q, err := c.Compile(singleCondition(&schema.SearchCondition{
		FieldName:  "title",
		Operator:   "fuzzy_match",
		Values:     []string{"sandwurm"},
		Parameters: map[string]string{"slop": "2", "prefixlength": "3"},
	}))
	require.NoError(t, err)

	clauses := mustClauses(t, q)
	fq, ok := clauses[0].(*bquery.FuzzyQuery)
	require.True(t, ok)
	assert.Equal(t, 2, fq.Fuzziness)
	assert.Equal(t, 3, fq.Prefix)
	assert.Equal(t, "title", fq.FieldVal)
}

func TestCompile_PhraseMatch(t *testing.T) {
	c := testCompiler(t, nil)

	q, err := c.Compile(singleCondition(&schema.SearchCondition{
		FieldName: "title", Operator: "phrase_match", Values: []string{"Great Sandworm"},
	}))
	require.NoError(t, err)

	clauses := mustClauses(t, q)
	pq, ok := clauses[0].(*bquery.PhraseQuery)
	require.True(t, ok)
	assert.Equal(t, []string{"great", "sandworm"}, pq.Terms)
}

func TestCompile_Like(t *testing.T) {
	c := testCompiler(t, nil)

	q, err := c.Compile(singleCondition(&schema.SearchCondition{
		FieldName: "tag", Operator: "like", Values: []string{"sci*"},
	}))
	require.NoError(t, err)

	clauses := mustClauses(t, q)
	wq, ok := clauses[0].(*bquery.WildcardQuery)
	require.True(t, ok)
	assert.Equal(t, "sci*", wq.Wildcard)
}

func TestCompile_StringRangeEqualBoundsFail(t *testing.T) {
	c := testCompiler(t, nil)

	_, err := c.Compile(singleCondition(&schema.SearchCondition{
		FieldName: "tag", Operator: "string_range", Values: []string{"abc", "ABC"},
	}))
	assert.Equal(t, errors.ErrCodeInvalidCondition, errors.GetCode(err))
}

func TestCompile_NumericRange(t *testing.T) {
	c := testCompiler(t, nil)

	q, err := c.Compile(singleCondition(&schema.SearchCondition{
		FieldName:  "pages",
		Operator:   "numeric_range",
		Values:     []string{"100", "500"},
		Parameters: map[string]string{"includelower": "true"},
	}))
	require.NoError(t, err)

	clauses := mustClauses(t, q)
	nq, ok := clauses[0].(*bquery.NumericRangeQuery)
	require.True(t, ok)
	assert.Equal(t, float64(100), *nq.Min)
	assert.Equal(t, float64(500), *nq.Max)
	assert.True(t, *nq.InclusiveMin)
	assert.False(t, *nq.InclusiveMax)
}

func TestCompile_BoostApplied(t *testing.T) {
	c := testCompiler(t, nil)

	q, err := c.Compile(singleCondition(&schema.SearchCondition{
		FieldName: "title", Operator: "term_match", Values: []string{"dune"}, Boost: 3,
	}))
	require.NoError(t, err)

	clauses := mustClauses(t, q)
	tq, ok := clauses[0].(*bquery.TermQuery)
	require.True(t, ok)
	assert.Equal(t, float64(3), tq.Boost())
}

func TestCompile_NestedSubFilterConstantScore(t *testing.T) {
	c := testCompiler(t, nil)

	q, err := c.Compile(&schema.SearchFilter{
		Conditions: []*schema.SearchCondition{
			{FieldName: "title", Operator: "term_match", Values: []string{"dune"}},
		},
		SubFilters: []*schema.SearchFilter{
			{
				FilterType:    schema.FilterOr,
				ConstantScore: 5,
				Conditions: []*schema.SearchCondition{
					{FieldName: "tag", Operator: "term_match", Values: []string{"scifi"}},
					{FieldName: "tag", Operator: "term_match", Values: []string{"classic"}},
				},
			},
		},
	})
	require.NoError(t, err)

	clauses := mustClauses(t, q)
	require.Len(t, clauses, 2)
	nested, ok := clauses[1].(*bquery.BooleanQuery)
	require.True(t, ok)
	assert.Equal(t, float64(5), nested.Boost())
}

func TestCompileProfile_BindsRequestValues(t *testing.T) {
	c := testCompiler(t, nil)

	q, err := c.CompileProfile(&ProfileQuery{
		Profile: "by_tag",
		Fields:  map[string]string{"tag": "scifi"},
	})
	require.NoError(t, err)

	clauses := mustClauses(t, q)
	tq, ok := clauses[0].(*bquery.TermQuery)
	require.True(t, ok)
	assert.Equal(t, "scifi", tq.Term)
}

func TestCompileProfile_MissingValueDefaultKeepsLiteral(t *testing.T) {
	c := testCompiler(t, nil)

	q, err := c.CompileProfile(&ProfileQuery{Profile: "by_tag", Fields: map[string]string{}})
	require.NoError(t, err)

	clauses := mustClauses(t, q)
	tq, ok := clauses[0].(*bquery.TermQuery)
	require.True(t, ok)
	assert.Equal(t, "fallback", tq.Term)
}

func TestCompileProfile_MissingValueIgnoreSkipsClause(t *testing.T) {
	c := testCompiler(t, nil)

	q, err := c.CompileProfile(&ProfileQuery{
		Profile: "optional_tag",
		Fields:  map[string]string{"title": "always"},
	})
	require.NoError(t, err)

	clauses := mustClauses(t, q)
	assert.Len(t, clauses, 1)
}

func TestCompileProfile_SelectorScript(t *testing.T) {
	scripts := script.NewRegistry()
	scripts.RegisterSelector("pick", func(fields map[string]string) (string, error) {
		return "by_tag", nil
	})
	c := testCompiler(t, scripts)

	q, err := c.CompileProfile(&ProfileQuery{
		Selector: "pick",
		Fields:   map[string]string{"tag": "scifi"},
	})
	require.NoError(t, err)
	require.NotNil(t, q)
}

func TestCompileProfile_UnknownProfile(t *testing.T) {
	c := testCompiler(t, nil)

	_, err := c.CompileProfile(&ProfileQuery{Profile: "ghost"})
	assert.Equal(t, errors.ErrCodeUnknownSearchProfile, errors.GetCode(err))

	_, err = c.CompileProfile(&ProfileQuery{})
	assert.Equal(t, errors.ErrCodeUnknownSearchProfile, errors.GetCode(err))
}
