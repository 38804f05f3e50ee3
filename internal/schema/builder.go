package schema

import (
	"strings"
	"time"

	"github.com/flexsearch/flexsearch/internal/errors"
	"github.com/flexsearch/flexsearch/internal/script"
)

// Defaults applied by the settings builder.
const (
	DefaultAnalyzer            = "standard"
	DefaultShardCount          = 1
	DefaultRamBufferMB         = 100
	DefaultCommitPeriodSeconds = 60
	DefaultRefreshPeriodMillis = 25
)

// SettingsBuilder validates user index definitions into immutable settings.
type SettingsBuilder struct {
	scripts *script.Registry

	// analyzerExists reports whether a named analyzer is a built-in of the
	// underlying index library.
	analyzerExists func(name string) bool
}

// NewSettingsBuilder creates a builder using the given script registry and
// built-in analyzer check.
func NewSettingsBuilder(scripts *script.Registry, analyzerExists func(string) bool) *SettingsBuilder {
	return &SettingsBuilder{scripts: scripts, analyzerExists: analyzerExists}
}

// BuildSetting validates def and produces the immutable setting for it.
// baseDir is the data root under which the index directory lives.
func (b *SettingsBuilder) BuildSetting(def *Index, baseDir string) (*IndexSetting, error) {
	if def == nil || strings.TrimSpace(def.Name) == "" {
		return nil, errors.ValidationError("index name must not be empty", nil)
	}

	cfg := def.Configuration
	if cfg.ShardCount == 0 {
		cfg.ShardCount = DefaultShardCount
	}
	if cfg.ShardCount < 1 {
		return nil, errors.Newf(errors.ErrCodeValidationFailed,
			"index %q: shard count must be >= 1, got %d", def.Name, cfg.ShardCount)
	}
	dirKind, ok := ParseDirectoryKind(cfg.DirectoryKind)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeValidationFailed,
			"index %q: unknown directory kind %q", def.Name, cfg.DirectoryKind)
	}
	if cfg.RamBufferMB == 0 {
		cfg.RamBufferMB = DefaultRamBufferMB
	}
	if cfg.CommitPeriodSeconds == 0 {
		cfg.CommitPeriodSeconds = DefaultCommitPeriodSeconds
	}
	if cfg.RefreshPeriodMillis == 0 {
		cfg.RefreshPeriodMillis = DefaultRefreshPeriodMillis
	}

	custom := make(map[string]bool, len(def.Analyzers))
	for _, a := range def.Analyzers {
		if strings.TrimSpace(a.Name) == "" {
			return nil, errors.Newf(errors.ErrCodeValidationFailed,
				"index %q: custom analyzer with empty name", def.Name)
		}
		if len(a.Filters) == 0 {
			return nil, errors.Newf(errors.ErrCodeValidationFailed,
				"index %q: custom analyzer %q needs at least one token filter", def.Name, a.Name)
		}
		custom[strings.ToLower(a.Name)] = true
	}

	resolvable := func(name string) bool {
		if name == "" {
			return true
		}
		if custom[strings.ToLower(name)] {
			return true
		}
		return b.analyzerExists != nil && b.analyzerExists(name)
	}

	indexAnalyzer := def.IndexAnalyzer
	if indexAnalyzer == "" {
		indexAnalyzer = DefaultAnalyzer
	}
	searchAnalyzer := def.SearchAnalyzer
	if searchAnalyzer == "" {
		searchAnalyzer = DefaultAnalyzer
	}
	if !resolvable(indexAnalyzer) {
		return nil, errors.Newf(errors.ErrCodeValidationFailed,
			"index %q: unknown index analyzer %q", def.Name, indexAnalyzer)
	}
	if !resolvable(searchAnalyzer) {
		return nil, errors.Newf(errors.ErrCodeValidationFailed,
			"index %q: unknown search analyzer %q", def.Name, searchAnalyzer)
	}

	fields := make([]*Field, 0, len(def.Fields))
	fieldMap := make(map[string]*Field, len(def.Fields))
	for _, fd := range def.Fields {
		f, err := b.buildField(def.Name, fd, indexAnalyzer, searchAnalyzer, resolvable)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(f.Name)
		if _, dup := fieldMap[key]; dup {
			return nil, errors.Newf(errors.ErrCodeValidationFailed,
				"index %q: duplicate field %q", def.Name, f.Name)
		}
		fields = append(fields, f)
		fieldMap[key] = f
	}

	profiles := make(map[string]*SearchFilter, len(def.Profiles))
	for _, p := range def.Profiles {
		if strings.TrimSpace(p.Name) == "" || p.Filter == nil {
			return nil, errors.Newf(errors.ErrCodeValidationFailed,
				"index %q: search profile needs a name and a filter", def.Name)
		}
		profiles[strings.ToLower(p.Name)] = p.Filter
	}

	return &IndexSetting{
		Name:           def.Name,
		Fields:         fields,
		FieldMap:       fieldMap,
		IndexAnalyzer:  indexAnalyzer,
		SearchAnalyzer: searchAnalyzer,
		Analyzers:      def.Analyzers,
		Profiles:       profiles,
		Scripts:        def.Scripts,
		ShardCount:     cfg.ShardCount,
		DirKind:        dirKind,
		RamBufferMB:    cfg.RamBufferMB,
		CommitPeriod:   time.Duration(cfg.CommitPeriodSeconds) * time.Second,
		RefreshPeriod:  time.Duration(cfg.RefreshPeriodMillis) * time.Millisecond,
		BaseDir:        baseDir,
	}, nil
}

func (b *SettingsBuilder) buildField(index string, fd FieldDefinition, indexAnalyzer, searchAnalyzer string, resolvable func(string) bool) (*Field, error) {
	if strings.TrimSpace(fd.Name) == "" {
		return nil, errors.Newf(errors.ErrCodeValidationFailed,
			"index %q: field with empty name", index)
	}
	if IsReserved(fd.Name) {
		return nil, errors.Newf(errors.ErrCodeValidationFailed,
			"index %q: field %q redefines a reserved name", index, fd.Name)
	}
	kind, ok := ParseFieldKind(fd.Kind)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeValidationFailed,
			"index %q: field %q has unknown kind %q", index, fd.Name, fd.Kind)
	}
	postings, ok := parsePostings(fd.Postings)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeValidationFailed,
			"index %q: field %q has unknown postings option %q", index, fd.Name, fd.Postings)
	}
	// Highlight fields need positions and offsets unless told otherwise.
	if kind == KindHighlight && fd.TermVector == "" {
		fd.TermVector = "withpositionsoffsets"
	}
	termVector, ok := parseTermVector(fd.TermVector)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeValidationFailed,
			"index %q: field %q has unknown term vector option %q", index, fd.Name, fd.TermVector)
	}

	f := &Field{
		Name:           fd.Name,
		Kind:           kind,
		StoreOnly:      fd.StoreOnly || kind == KindStored,
		IndexAnalyzer:  fd.IndexAnalyzer,
		SearchAnalyzer: fd.SearchAnalyzer,
		Postings:       postings,
		TermVector:     termVector,
	}
	if f.IndexAnalyzer == "" {
		f.IndexAnalyzer = indexAnalyzer
	}
	if f.SearchAnalyzer == "" {
		f.SearchAnalyzer = searchAnalyzer
	}
	if !resolvable(f.IndexAnalyzer) {
		return nil, errors.Newf(errors.ErrCodeValidationFailed,
			"index %q: field %q: unknown index analyzer %q", index, fd.Name, f.IndexAnalyzer)
	}
	if !resolvable(f.SearchAnalyzer) {
		return nil, errors.Newf(errors.ErrCodeValidationFailed,
			"index %q: field %q: unknown search analyzer %q", index, fd.Name, f.SearchAnalyzer)
	}

	if fd.Source != "" {
		fn, err := b.scripts.Computed(fd.Source)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeValidationFailed, err)
		}
		f.Source = ValueSource(fn)
	}
	return f, nil
}

func parsePostings(name string) (PostingsOption, bool) {
	switch strings.ToLower(name) {
	case "", "docsandfreqsandpositions":
		return PostingsDocsAndFreqsAndPositions, true
	case "docsonly":
		return PostingsDocsOnly, true
	case "docsandfreqs":
		return PostingsDocsAndFreqs, true
	case "docsandfreqsandpositionsandoffsets":
		return PostingsDocsAndFreqsAndPositionsAndOffsets, true
	}
	return PostingsDocsOnly, false
}

func parseTermVector(name string) (TermVectorOption, bool) {
	switch strings.ToLower(name) {
	case "", "no":
		return TermVectorNo, true
	case "yes":
		return TermVectorYes, true
	case "withpositions":
		return TermVectorWithPositions, true
	case "withoffsets":
		return TermVectorWithOffsets, true
	case "withpositionsoffsets":
		return TermVectorWithPositionsOffsets, true
	}
	return TermVectorNo, false
}
