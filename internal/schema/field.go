// Package schema defines the FlexSearch data model: field descriptors and
// their typed storage cells, document DTOs, filter trees, and the immutable
// per-index setting produced by the settings builder.
package schema

import (
	"strconv"
	"strings"
	"time"
)

// FieldKind enumerates the supported field types.
type FieldKind int

const (
	KindInt FieldKind = iota
	KindLong
	KindDouble
	KindBool
	KindDate
	KindDateTime
	KindExactText
	KindText
	KindHighlight
	KindCustom
	KindStored
)

var kindNames = map[string]FieldKind{
	"int":       KindInt,
	"long":      KindLong,
	"double":    KindDouble,
	"bool":      KindBool,
	"date":      KindDate,
	"datetime":  KindDateTime,
	"exacttext": KindExactText,
	"text":      KindText,
	"highlight": KindHighlight,
	"custom":    KindCustom,
	"stored":    KindStored,
}

// ParseFieldKind resolves a kind name (case-insensitive).
func ParseFieldKind(name string) (FieldKind, bool) {
	k, ok := kindNames[strings.ToLower(name)]
	return k, ok
}

func (k FieldKind) String() string {
	for name, kind := range kindNames {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// Numeric reports whether the kind admits numeric range queries.
func (k FieldKind) Numeric() bool {
	switch k {
	case KindInt, KindLong, KindDouble, KindDate, KindDateTime:
		return true
	}
	return false
}

// PostingsOption controls what the inverted index records per term.
type PostingsOption int

const (
	PostingsDocsOnly PostingsOption = iota
	PostingsDocsAndFreqs
	PostingsDocsAndFreqsAndPositions
	PostingsDocsAndFreqsAndPositionsAndOffsets
)

// TermVectorOption controls per-document term vector storage.
type TermVectorOption int

const (
	TermVectorNo TermVectorOption = iota
	TermVectorYes
	TermVectorWithPositions
	TermVectorWithOffsets
	TermVectorWithPositionsOffsets
)

// SortType maps a field onto the primitive sort codec of the underlying
// index.
type SortType int

const (
	SortString SortType = iota
	SortInt
	SortLong
	SortDouble
)

// ValueSource computes a field value from the other input fields of a
// document. Sources must be pure.
type ValueSource func(fields map[string]string) (string, error)

// Date layouts for the Date and DateTime kinds.
const (
	DateLayout     = "20060102"
	DateTimeLayout = "20060102150405"
)

// Field is a typed field descriptor inside an index setting.
type Field struct {
	Name           string
	Kind           FieldKind
	StoreOnly      bool
	IndexAnalyzer  string
	SearchAnalyzer string
	Postings       PostingsOption
	TermVector     TermVectorOption

	// Source computes the field from the input document when set.
	Source ValueSource
}

// Numeric reports whether the field admits numeric range queries.
func (f *Field) Numeric() bool { return f.Kind.Numeric() }

// SortType returns the primitive sort codec for the field.
func (f *Field) SortType() SortType {
	switch f.Kind {
	case KindInt:
		return SortInt
	case KindLong, KindDate, KindDateTime:
		return SortLong
	case KindDouble:
		return SortDouble
	default:
		return SortString
	}
}

// ParseNumeric parses raw according to the field kind, for use in numeric
// query construction.
func (f *Field) ParseNumeric(raw string) (float64, error) {
	switch f.Kind {
	case KindInt:
		v, err := strconv.ParseInt(raw, 10, 32)
		return float64(v), err
	case KindLong:
		v, err := strconv.ParseInt(raw, 10, 64)
		return float64(v), err
	case KindDouble:
		return strconv.ParseFloat(raw, 64)
	case KindDate:
		if _, err := time.Parse(DateLayout, raw); err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		return float64(v), err
	case KindDateTime:
		if _, err := time.Parse(DateTimeLayout, raw); err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		return float64(v), err
	default:
		return 0, strconv.ErrSyntax
	}
}

// Cell is a mutable storage slot carrying one typed value for a field.
// Cells are confined to a single write worker and reused across documents.
type Cell struct {
	field *Field
	value any
}

// NewCell creates a cell for the field, initialized to the default value.
func NewCell(f *Field) *Cell {
	c := &Cell{field: f}
	c.WriteDefault()
	return c
}

// Field returns the owning field descriptor.
func (c *Cell) Field() *Field { return c.field }

// Value returns the current typed value.
func (c *Cell) Value() any { return c.value }

// Write parses raw per the field kind and stores the result. A parse failure
// resets the cell to its default so a bad field never fails the whole
// document.
func (c *Cell) Write(raw string) {
	switch c.field.Kind {
	case KindInt:
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			c.WriteDefault()
			return
		}
		c.value = v
	case KindLong:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.WriteDefault()
			return
		}
		c.value = v
	case KindDouble:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.WriteDefault()
			return
		}
		c.value = v
	case KindBool:
		v, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			c.WriteDefault()
			return
		}
		// Booleans index as exact text so term_match works uniformly.
		c.value = strconv.FormatBool(v)
	case KindDate:
		c.value = parseDateValue(raw, DateLayout)
	case KindDateTime:
		c.value = parseDateValue(raw, DateTimeLayout)
	default:
		c.value = raw
	}
}

// WriteDefault resets the cell to the default value for its kind.
func (c *Cell) WriteDefault() {
	switch c.field.Kind {
	case KindInt, KindLong, KindDate, KindDateTime:
		c.value = int64(0)
	case KindDouble:
		c.value = float64(0)
	case KindBool:
		c.value = "false"
	default:
		c.value = ""
	}
}

// WriteInt stores a raw integer, bypassing string parsing. Used for the
// reserved lastmodified and version cells.
func (c *Cell) WriteInt(v int64) {
	c.value = v
}

func parseDateValue(raw, layout string) int64 {
	if _, err := time.Parse(layout, raw); err != nil {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
