package schema

import "strings"

// Reserved document field names. These are written by the engine and cannot
// be redefined by an index definition.
const (
	FieldId           = "id"
	FieldType         = "type"
	FieldLastModified = "lastmodified"
	FieldVersion      = "version"
	FieldScore        = "score"
)

// IsReserved reports whether name is a reserved field name.
func IsReserved(name string) bool {
	switch strings.ToLower(name) {
	case FieldId, FieldType, FieldLastModified, FieldVersion:
		return true
	}
	return false
}

// Document is the external document representation exchanged over the
// service API.
type Document struct {
	Id        string            `json:"id"`
	Index     string            `json:"index"`
	Version   int               `json:"version"`
	Score     float64           `json:"score,omitempty"`
	Highlight []string          `json:"highlight,omitempty"`
	Fields    map[string]string `json:"fields"`
}
