package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexsearch/flexsearch/internal/script"
)

func testBuilder() *SettingsBuilder {
	scripts := script.NewRegistry()
	scripts.RegisterComputed("fullname", func(fields map[string]string) (string, error) {
		return fields["first"] + " " + fields["last"], nil
	})
	builtins := map[string]bool{"standard": true, "keyword": true, "simple": true}
	return NewSettingsBuilder(scripts, func(name string) bool { return builtins[name] })
}

func validDefinition() *Index {
	return &Index{
		Name: "contacts",
		Fields: []FieldDefinition{
			{Name: "first", Kind: "Text"},
			{Name: "last", Kind: "Text"},
			{Name: "age", Kind: "Int"},
		},
	}
}

func TestBuildSetting_AppliesDefaults(t *testing.T) {
	s, err := testBuilder().BuildSetting(validDefinition(), "/data")
	require.NoError(t, err)

	assert.Equal(t, DefaultShardCount, s.ShardCount)
	assert.Equal(t, DirFileSystem, s.DirKind)
	assert.Equal(t, DefaultRamBufferMB, s.RamBufferMB)
	assert.Equal(t, 60*time.Second, s.CommitPeriod)
	assert.Equal(t, 25*time.Millisecond, s.RefreshPeriod)
	assert.Equal(t, "standard", s.IndexAnalyzer)
	assert.Equal(t, "/data", s.BaseDir)
}

func TestBuildSetting_FieldLookupIsCaseInsensitive(t *testing.T) {
	s, err := testBuilder().BuildSetting(validDefinition(), "/data")
	require.NoError(t, err)

	f, ok := s.FieldNamed("FIRST")
	require.True(t, ok)
	assert.Equal(t, "first", f.Name)
}

func TestBuildSetting_RejectsReservedFieldName(t *testing.T) {
	def := validDefinition()
	def.Fields = append(def.Fields, FieldDefinition{Name: "version", Kind: "Int"})

	_, err := testBuilder().BuildSetting(def, "/data")
	assert.Error(t, err)
}

func TestBuildSetting_RejectsUnknownKind(t *testing.T) {
	def := validDefinition()
	def.Fields[0].Kind = "geo"

	_, err := testBuilder().BuildSetting(def, "/data")
	assert.Error(t, err)
}

func TestBuildSetting_RejectsUnknownAnalyzer(t *testing.T) {
	def := validDefinition()
	def.Fields[0].IndexAnalyzer = "martian"

	_, err := testBuilder().BuildSetting(def, "/data")
	assert.Error(t, err)
}

func TestBuildSetting_CustomAnalyzerResolvesForFields(t *testing.T) {
	def := validDefinition()
	def.Analyzers = []AnalyzerDefinition{
		{Name: "lower_keyword", Tokenizer: "single", Filters: []string{"to_lower"}},
	}
	def.Fields[0].IndexAnalyzer = "lower_keyword"

	s, err := testBuilder().BuildSetting(def, "/data")
	require.NoError(t, err)
	f, _ := s.FieldNamed("first")
	assert.Equal(t, "lower_keyword", f.IndexAnalyzer)
}

func TestBuildSetting_CustomAnalyzerNeedsFilters(t *testing.T) {
	def := validDefinition()
	def.Analyzers = []AnalyzerDefinition{
		{Name: "bare", Tokenizer: "single"},
	}

	_, err := testBuilder().BuildSetting(def, "/data")
	assert.Error(t, err)
}

func TestBuildSetting_RejectsNegativeShardCount(t *testing.T) {
	def := validDefinition()
	def.Configuration.ShardCount = -2

	_, err := testBuilder().BuildSetting(def, "/data")
	assert.Error(t, err)
}

func TestBuildSetting_ResolvesComputedFieldScript(t *testing.T) {
	def := validDefinition()
	def.Fields = append(def.Fields, FieldDefinition{Name: "full", Kind: "Text", Source: "fullname"})

	s, err := testBuilder().BuildSetting(def, "/data")
	require.NoError(t, err)

	f, _ := s.FieldNamed("full")
	require.NotNil(t, f.Source)
	v, err := f.Source(map[string]string{"first": "Jane", "last": "Doe"})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", v)
}

func TestBuildSetting_UnknownScriptFails(t *testing.T) {
	def := validDefinition()
	def.Fields = append(def.Fields, FieldDefinition{Name: "full", Kind: "Text", Source: "missing"})

	_, err := testBuilder().BuildSetting(def, "/data")
	assert.Error(t, err)
}

func TestBuildSetting_DuplicateFieldFails(t *testing.T) {
	def := validDefinition()
	def.Fields = append(def.Fields, FieldDefinition{Name: "First", Kind: "Text"})

	_, err := testBuilder().BuildSetting(def, "/data")
	assert.Error(t, err)
}

func TestBuildSetting_HighlightFieldGetsTermVectors(t *testing.T) {
	def := validDefinition()
	def.Fields = append(def.Fields, FieldDefinition{Name: "body", Kind: "Highlight"})

	s, err := testBuilder().BuildSetting(def, "/data")
	require.NoError(t, err)

	f, _ := s.FieldNamed("body")
	assert.Equal(t, TermVectorWithPositionsOffsets, f.TermVector)
}

func TestBuildSetting_Profiles(t *testing.T) {
	def := validDefinition()
	def.Profiles = []ProfileDefinition{
		{Name: "ByLast", Filter: &SearchFilter{
			Conditions: []*SearchCondition{{FieldName: "last", Operator: "term_match", Values: []string{""}}},
		}},
	}

	s, err := testBuilder().BuildSetting(def, "/data")
	require.NoError(t, err)

	_, ok := s.ProfileNamed("bylast")
	assert.True(t, ok)
}
