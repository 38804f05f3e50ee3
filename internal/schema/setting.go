package schema

import (
	"strings"
	"time"
)

// DirectoryKind selects the backing store for shard directories.
type DirectoryKind int

const (
	// DirFileSystem is a disk-backed directory with a native filesystem lock.
	DirFileSystem DirectoryKind = iota
	// DirMemoryMapped is an mmap-backed directory with the same lock.
	DirMemoryMapped
	// DirRam is an in-memory directory without a lock.
	DirRam
)

// ParseDirectoryKind resolves a directory kind name (case-insensitive).
func ParseDirectoryKind(name string) (DirectoryKind, bool) {
	switch strings.ToLower(name) {
	case "", "filesystem":
		return DirFileSystem, true
	case "memorymapped":
		return DirMemoryMapped, true
	case "ram":
		return DirRam, true
	}
	return DirFileSystem, false
}

// Index is the user-supplied index definition, persisted by the settings
// store and validated into an IndexSetting by the builder.
type Index struct {
	Name           string               `json:"name"`
	Online         bool                 `json:"online"`
	IndexAnalyzer  string               `json:"index_analyzer,omitempty"`
	SearchAnalyzer string               `json:"search_analyzer,omitempty"`
	Fields         []FieldDefinition    `json:"fields"`
	Analyzers      []AnalyzerDefinition `json:"analyzers,omitempty"`
	Profiles       []ProfileDefinition  `json:"profiles,omitempty"`
	Scripts        []string             `json:"scripts,omitempty"`
	Configuration  IndexConfiguration   `json:"configuration"`
}

// FieldDefinition describes one field in an index definition.
type FieldDefinition struct {
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	StoreOnly      bool   `json:"store_only,omitempty"`
	IndexAnalyzer  string `json:"index_analyzer,omitempty"`
	SearchAnalyzer string `json:"search_analyzer,omitempty"`
	Postings       string `json:"postings,omitempty"`
	TermVector     string `json:"term_vector,omitempty"`

	// Source names a registered computed-field script. When set the field
	// value is derived from the other input fields.
	Source string `json:"source,omitempty"`
}

// AnalyzerDefinition describes a custom analyzer: a tokenizer plus at least
// one token filter.
type AnalyzerDefinition struct {
	Name      string   `json:"name"`
	Tokenizer string   `json:"tokenizer"`
	Filters   []string `json:"filters"`
}

// ProfileDefinition binds a name to a pre-built filter tree.
type ProfileDefinition struct {
	Name   string        `json:"name"`
	Filter *SearchFilter `json:"filter"`
}

// IndexConfiguration holds the tunable knobs of an index definition.
type IndexConfiguration struct {
	ShardCount          int    `json:"shard_count,omitempty"`
	DirectoryKind       string `json:"directory_kind,omitempty"`
	RamBufferMB         int    `json:"ram_buffer_mb,omitempty"`
	CommitPeriodSeconds int    `json:"commit_period_seconds,omitempty"`
	RefreshPeriodMillis int    `json:"refresh_period_millis,omitempty"`
}

// IndexSetting is the validated, immutable form of an index definition.
// It is fixed for the lifetime of an open index; changing it requires a
// close/open cycle.
type IndexSetting struct {
	Name           string
	Fields         []*Field
	FieldMap       map[string]*Field // folded name -> field
	IndexAnalyzer  string
	SearchAnalyzer string
	Analyzers      []AnalyzerDefinition
	Profiles       map[string]*SearchFilter
	Scripts        []string
	ShardCount     int
	DirKind        DirectoryKind
	RamBufferMB    int
	CommitPeriod   time.Duration
	RefreshPeriod  time.Duration
	BaseDir        string
}

// FieldNamed resolves a field descriptor by case-insensitive name.
func (s *IndexSetting) FieldNamed(name string) (*Field, bool) {
	f, ok := s.FieldMap[strings.ToLower(name)]
	return f, ok
}

// reservedFields describes the engine-written fields with the descriptors
// they are mapped under: id and type as exact text, lastmodified and
// version as numeric.
var reservedFields = map[string]*Field{
	FieldId:           {Name: FieldId, Kind: KindExactText},
	FieldType:         {Name: FieldType, Kind: KindExactText},
	FieldLastModified: {Name: FieldLastModified, Kind: KindLong},
	FieldVersion:      {Name: FieldVersion, Kind: KindLong},
}

// QueryField resolves a field usable in conditions and sorts: the declared
// fields first, then the reserved ones, which are queryable on every index.
func (s *IndexSetting) QueryField(name string) (*Field, bool) {
	if f, ok := s.FieldNamed(name); ok {
		return f, true
	}
	f, ok := reservedFields[strings.ToLower(name)]
	return f, ok
}

// ProfileNamed resolves a search profile by case-insensitive name.
func (s *IndexSetting) ProfileNamed(name string) (*SearchFilter, bool) {
	f, ok := s.Profiles[strings.ToLower(name)]
	return f, ok
}
