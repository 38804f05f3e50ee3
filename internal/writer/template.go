package writer

import (
	"strings"
	"time"

	"github.com/flexsearch/flexsearch/internal/schema"
)

// Template is a reusable document skeleton for one index: a mutable cell per
// schema field plus the reserved cells. A template belongs to exactly one
// write worker and is reset on every command, so no allocation per field is
// needed on the hot path.
type Template struct {
	setting *schema.IndexSetting
	cells   map[string]*schema.Cell // folded field name -> cell
	order   []*schema.Cell
}

// NewTemplate builds the cell set for setting.
func NewTemplate(setting *schema.IndexSetting) *Template {
	t := &Template{
		setting: setting,
		cells:   make(map[string]*schema.Cell, len(setting.Fields)),
		order:   make([]*schema.Cell, 0, len(setting.Fields)),
	}
	for _, f := range setting.Fields {
		c := schema.NewCell(f)
		t.cells[strings.ToLower(f.Name)] = c
		t.order = append(t.order, c)
	}
	return t
}

// Setting returns the setting the template was built from. The pipeline
// rebuilds the template when an index re-opens under a new setting.
func (t *Template) Setting() *schema.IndexSetting { return t.setting }

// Render fills every cell from the input fields and returns the document
// ready for the shard writer. Reserved fields are written first; computed
// fields run their value source; a source failure or missing input resets
// the cell to its kind default.
func (t *Template) Render(id string, version int, input map[string]string) map[string]any {
	doc := make(map[string]any, len(t.order)+4)
	doc[schema.FieldId] = id
	doc[schema.FieldType] = t.setting.Name
	doc[schema.FieldLastModified] = time.Now().UnixMilli()
	doc[schema.FieldVersion] = int64(version)

	for _, c := range t.order {
		f := c.Field()
		if f.Source != nil {
			computed, err := f.Source(input)
			if err != nil {
				c.WriteDefault()
			} else {
				c.Write(computed)
			}
		} else if raw, ok := lookup(input, f.Name); ok {
			c.Write(raw)
		} else {
			c.WriteDefault()
		}
		doc[f.Name] = c.Value()
	}
	return doc
}

// lookup reads a field value case-insensitively: exact key first, then a
// folded scan.
func lookup(input map[string]string, name string) (string, bool) {
	if v, ok := input[name]; ok {
		return v, true
	}
	folded := strings.ToLower(name)
	for k, v := range input {
		if strings.ToLower(k) == folded {
			return v, true
		}
	}
	return "", false
}
