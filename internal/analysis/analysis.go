// Package analysis binds the FlexSearch schema onto bleve's analysis chain:
// it builds index mappings from settings, registers custom analyzers, and
// exposes query-time tokenization.
package analysis

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/flexsearch/flexsearch/internal/schema"
)

// ExactAnalyzerName is the built-in analyzer for ExactText fields: the whole
// value as a single lowercased token.
const ExactAnalyzerName = "flex_exact"

var builtinCache = registry.NewCache()

// BuiltinAnalyzer reports whether name resolves to an analyzer shipped with
// the underlying index library.
func BuiltinAnalyzer(name string) bool {
	if name == ExactAnalyzerName {
		return true
	}
	_, err := builtinCache.AnalyzerNamed(name)
	return err == nil
}

// BuildMapping constructs the bleve index mapping for a validated setting.
// Only declared fields (plus the reserved ones) are indexed; unknown input
// fields are dropped by the static document mapping.
func BuildMapping(s *schema.IndexSetting) (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	if err := im.AddCustomAnalyzer(ExactAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("registering exact analyzer: %w", err)
	}

	for _, a := range s.Analyzers {
		if err := im.AddCustomAnalyzer(a.Name, map[string]interface{}{
			"type":          custom.Name,
			"tokenizer":     a.Tokenizer,
			"token_filters": a.Filters,
		}); err != nil {
			return nil, fmt.Errorf("registering analyzer %q: %w", a.Name, err)
		}
	}

	doc := bleve.NewDocumentStaticMapping()

	// Reserved fields.
	doc.AddFieldMappingsAt(schema.FieldId, exactField())
	doc.AddFieldMappingsAt(schema.FieldType, exactField())
	doc.AddFieldMappingsAt(schema.FieldLastModified, numericField())
	doc.AddFieldMappingsAt(schema.FieldVersion, numericField())

	for _, f := range s.Fields {
		doc.AddFieldMappingsAt(f.Name, fieldMapping(f))
	}

	im.DefaultAnalyzer = s.IndexAnalyzer
	im.DefaultMapping = doc
	return im, nil
}

func exactField() *mapping.FieldMapping {
	fm := mapping.NewTextFieldMapping()
	fm.Analyzer = ExactAnalyzerName
	fm.Store = true
	fm.IncludeInAll = false
	return fm
}

func numericField() *mapping.FieldMapping {
	fm := mapping.NewNumericFieldMapping()
	fm.Store = true
	fm.IncludeInAll = false
	return fm
}

func fieldMapping(f *schema.Field) *mapping.FieldMapping {
	var fm *mapping.FieldMapping
	switch {
	case f.Kind.Numeric():
		fm = mapping.NewNumericFieldMapping()
	case f.Kind == schema.KindBool || f.Kind == schema.KindExactText:
		fm = mapping.NewTextFieldMapping()
		fm.Analyzer = ExactAnalyzerName
	default:
		fm = mapping.NewTextFieldMapping()
		fm.Analyzer = f.IndexAnalyzer
	}
	fm.Store = true
	fm.IncludeInAll = false
	fm.IncludeTermVectors = f.TermVector != schema.TermVectorNo
	if f.StoreOnly {
		fm.Index = false
	}
	return fm
}

// Resolver resolves analyzers against one index mapping and tokenizes text
// with them.
type Resolver struct {
	im *mapping.IndexMappingImpl
}

// NewResolver wraps an index mapping built by BuildMapping.
func NewResolver(im *mapping.IndexMappingImpl) *Resolver {
	return &Resolver{im: im}
}

// Named resolves an analyzer by name within the mapping (custom analyzers
// first, then built-ins).
func (r *Resolver) Named(name string) (analysis.Analyzer, error) {
	a := r.im.AnalyzerNamed(name)
	if a == nil {
		return nil, fmt.Errorf("unknown analyzer %q", name)
	}
	return a, nil
}

// Tokenize runs text through the named analyzer and returns the ordered
// terms. The token stream is fully drained before returning.
func (r *Resolver) Tokenize(analyzerName, text string) ([]string, error) {
	a, err := r.Named(analyzerName)
	if err != nil {
		return nil, err
	}
	stream := a.Analyze([]byte(text))
	tokens := make([]string, 0, len(stream))
	for _, tok := range stream {
		tokens = append(tokens, string(tok.Term))
	}
	return tokens, nil
}

// AnalyzerForField returns the search analyzer name for a field, normalizing
// the kinds that always use the exact analyzer.
func AnalyzerForField(f *schema.Field) string {
	switch f.Kind {
	case schema.KindBool, schema.KindExactText:
		return ExactAnalyzerName
	}
	return f.SearchAnalyzer
}
