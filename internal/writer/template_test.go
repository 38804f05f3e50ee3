package writer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexsearch/flexsearch/internal/schema"
)

func templateSetting() *schema.IndexSetting {
	title := &schema.Field{Name: "title", Kind: schema.KindText}
	pages := &schema.Field{Name: "pages", Kind: schema.KindInt}
	upper := &schema.Field{
		Name: "title_upper",
		Kind: schema.KindExactText,
		Source: func(fields map[string]string) (string, error) {
			return strings.ToUpper(fields["title"]), nil
		},
	}
	broken := &schema.Field{
		Name: "broken",
		Kind: schema.KindText,
		Source: func(map[string]string) (string, error) {
			return "", fmt.Errorf("no data")
		},
	}
	return &schema.IndexSetting{
		Name:   "books",
		Fields: []*schema.Field{title, pages, upper, broken},
	}
}

func TestTemplate_RenderWritesReservedFields(t *testing.T) {
	tpl := NewTemplate(templateSetting())

	doc := tpl.Render("b1", 3, map[string]string{"title": "dune"})

	assert.Equal(t, "b1", doc[schema.FieldId])
	assert.Equal(t, "books", doc[schema.FieldType])
	assert.Equal(t, int64(3), doc[schema.FieldVersion])
	require.IsType(t, int64(0), doc[schema.FieldLastModified])
	assert.Positive(t, doc[schema.FieldLastModified].(int64))
}

func TestTemplate_RenderParsesTypedFields(t *testing.T) {
	tpl := NewTemplate(templateSetting())

	doc := tpl.Render("b1", 1, map[string]string{"title": "dune", "pages": "412"})
	assert.Equal(t, "dune", doc["title"])
	assert.Equal(t, int64(412), doc["pages"])

	// A malformed value falls back to the kind default, not an error.
	doc = tpl.Render("b2", 1, map[string]string{"pages": "lots"})
	assert.Equal(t, int64(0), doc["pages"])
}

func TestTemplate_RenderComputesSources(t *testing.T) {
	tpl := NewTemplate(templateSetting())

	doc := tpl.Render("b1", 1, map[string]string{"title": "dune"})
	assert.Equal(t, "DUNE", doc["title_upper"])

	// A failing source resets the cell to its default.
	assert.Equal(t, "", doc["broken"])
}

func TestTemplate_RenderLookupIsCaseInsensitive(t *testing.T) {
	tpl := NewTemplate(templateSetting())

	doc := tpl.Render("b1", 1, map[string]string{"TITLE": "dune"})
	assert.Equal(t, "dune", doc["title"])
}

func TestTemplate_ReuseAcrossDocuments(t *testing.T) {
	tpl := NewTemplate(templateSetting())

	first := tpl.Render("b1", 1, map[string]string{"title": "one"})
	second := tpl.Render("b2", 1, map[string]string{"title": "two"})

	// Rendering must not alias the previously returned document.
	assert.Equal(t, "one", first["title"])
	assert.Equal(t, "two", second["title"])
	assert.Equal(t, "b1", first[schema.FieldId])
}
