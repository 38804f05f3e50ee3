// Package search executes compiled queries across the shards of an index:
// parallel fan-out, top-k merge, column projection, and highlighting.
package search

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	bsearch "github.com/blevesearch/bleve/v2/search"
	htmlformat "github.com/blevesearch/bleve/v2/search/highlight/format/html"
	simplefrag "github.com/blevesearch/bleve/v2/search/highlight/fragmenter/simple"
	simplehl "github.com/blevesearch/bleve/v2/search/highlight/highlighter/simple"
	bquery "github.com/blevesearch/bleve/v2/search/query"
	"golang.org/x/sync/errgroup"

	"github.com/flexsearch/flexsearch/internal/errors"
	"github.com/flexsearch/flexsearch/internal/index"
	"github.com/flexsearch/flexsearch/internal/schema"
	"github.com/flexsearch/flexsearch/internal/shard"
)

// DefaultCount is the page size used when the query does not specify one.
const DefaultCount = 10

const fragmentSize = 200

// Highlight configures fragment extraction for one field of the results.
type Highlight struct {
	Fields            []string `json:"fields"`
	FragmentsToReturn int      `json:"fragments_to_return,omitempty"`
	PreTag            string   `json:"pre_tag,omitempty"`
	PostTag           string   `json:"post_tag,omitempty"`
}

// SearchQuery shapes the result set of a compiled query.
type SearchQuery struct {
	Columns   []string   `json:"columns,omitempty"`
	Count     int        `json:"count,omitempty"`
	Skip      int        `json:"skip,omitempty"`
	Highlight *Highlight `json:"highlight,omitempty"`
	OrderBy   string     `json:"order_by,omitempty"`
}

// Results is the merged outcome of a search.
type Results struct {
	Documents       []*schema.Document `json:"documents"`
	RecordsReturned int                `json:"records_returned"`
	TotalAvailable  uint64             `json:"total_available"`
}

// Execute fans the query out over every shard of the runtime, merges the
// per-shard hits, and hydrates the requested page. Every acquired searcher
// is released before returning, on error paths included.
func Execute(ctx context.Context, rt *index.Runtime, q bquery.Query, sq *SearchQuery) (*Results, error) {
	if sq == nil {
		sq = &SearchQuery{}
	}
	if q == nil {
		return &Results{Documents: []*schema.Document{}}, nil
	}

	setting := rt.Setting()
	count := sq.Count
	if count <= 0 {
		count = DefaultCount
	}
	k := count + sq.Skip

	searchers := make([]*shard.Searcher, 0, len(rt.Shards()))
	defer func() {
		for _, h := range searchers {
			h.Release()
		}
	}()
	for _, s := range rt.Shards() {
		h, err := s.AcquireSearcher()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeIndexIsOffline, err)
		}
		searchers = append(searchers, h)
	}

	highlightField, err := resolveHighlightField(setting, sq.Highlight)
	if err != nil {
		return nil, err
	}

	fields := requestFields(setting, sq.Columns)

	g, _ := errgroup.WithContext(ctx)
	perShard := make([]*bleve.SearchResult, len(searchers))
	for i, h := range searchers {
		g.Go(func() error {
			req := bleve.NewSearchRequestOptions(q, k, 0, false)
			req.Fields = fields
			req.IncludeLocations = highlightField != ""
			if order := sortOrder(setting, sq.OrderBy); order != nil {
				req.SortByCustom(order)
			}
			res, err := h.Index().Search(req)
			if err != nil {
				return errors.Wrap(errors.ErrCodeSearchFailed, err)
			}
			for _, hit := range res.Hits {
				// The shard number rides along for highlighting.
				hit.Index = strconv.Itoa(h.Shard())
			}
			perShard[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total uint64
	hits := make(bsearch.DocumentMatchCollection, 0, k)
	for _, res := range perShard {
		total += res.Total
		hits = append(hits, res.Hits...)
	}
	mergeSort(setting, sq.OrderBy, hits)
	if len(hits) > k {
		hits = hits[:k]
	}

	page := hits
	if sq.Skip >= len(page) {
		page = nil
	} else {
		page = page[sq.Skip:]
	}

	docs := make([]*schema.Document, 0, len(page))
	for _, hit := range page {
		doc := hydrate(setting, hit, sq.Columns)
		if highlightField != "" {
			doc.Highlight = fragments(searchers, hit, highlightField, sq.Highlight)
		}
		docs = append(docs, doc)
	}

	return &Results{
		Documents:       docs,
		RecordsReturned: len(docs),
		TotalAvailable:  total,
	}, nil
}

// sortOrder builds the custom sort for a known order-by field, reserved
// fields included. A leading '-' flips the direction. Unknown or empty
// fields mean relevance order.
func sortOrder(setting *schema.IndexSetting, orderBy string) bsearch.SortOrder {
	name := strings.TrimPrefix(orderBy, "-")
	f, ok := setting.QueryField(name)
	if !ok {
		return nil
	}

	typ := bsearch.SortFieldAsString
	if f.SortType() != schema.SortString {
		typ = bsearch.SortFieldAsNumber
	}
	return bsearch.SortOrder{&bsearch.SortField{
		Field: f.Name,
		Type:  typ,
		Desc:  strings.HasPrefix(orderBy, "-"),
	}}
}

// mergeSort orders the combined hits the same way each shard ordered its
// own: by the custom sort keys when present, by score otherwise.
func mergeSort(setting *schema.IndexSetting, orderBy string, hits bsearch.DocumentMatchCollection) {
	order := sortOrder(setting, orderBy)
	if order == nil {
		sort.SliceStable(hits, func(i, j int) bool {
			return hits[i].Score > hits[j].Score
		})
		return
	}

	cachedScoring := order.CacheIsScore()
	cachedDesc := order.CacheDescending()
	sort.SliceStable(hits, func(i, j int) bool {
		return order.Compare(cachedScoring, cachedDesc, hits[i], hits[j]) < 0
	})
}

// requestFields lists the stored fields to load per hit: the reserved ones
// plus the projected columns.
func requestFields(setting *schema.IndexSetting, columns []string) []string {
	if wildcard(columns) {
		return []string{"*"}
	}
	fields := []string{schema.FieldVersion, schema.FieldLastModified}
	for _, col := range columns {
		if _, ok := setting.FieldNamed(col); ok {
			fields = append(fields, col)
		}
	}
	return fields
}

func wildcard(columns []string) bool {
	return len(columns) == 1 && columns[0] == "*"
}

// hydrate builds the external document for a merged hit.
func hydrate(setting *schema.IndexSetting, hit *bsearch.DocumentMatch, columns []string) *schema.Document {
	doc := &schema.Document{
		Id:     hit.ID,
		Index:  setting.Name,
		Score:  hit.Score,
		Fields: make(map[string]string),
	}
	if v, ok := hit.Fields[schema.FieldVersion].(float64); ok {
		doc.Version = int(v)
	}
	if lm, ok := hit.Fields[schema.FieldLastModified]; ok {
		doc.Fields[schema.FieldLastModified] = stringify(lm)
	}

	switch {
	case wildcard(columns):
		for _, f := range setting.Fields {
			if v, ok := hit.Fields[f.Name]; ok {
				doc.Fields[f.Name] = stringify(v)
			}
		}
	default:
		for _, col := range columns {
			f, ok := setting.FieldNamed(col)
			if !ok {
				continue
			}
			if v, ok := hit.Fields[f.Name]; ok {
				doc.Fields[f.Name] = stringify(v)
			}
		}
	}
	return doc
}

// stringify renders a stored value. Numeric fields come back as float64;
// integral values drop the fraction.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// resolveHighlightField validates the highlight request: exactly one field,
// resolvable in the index.
func resolveHighlightField(setting *schema.IndexSetting, h *Highlight) (string, error) {
	if h == nil {
		return "", nil
	}
	if len(h.Fields) != 1 {
		return "", errors.Newf(errors.ErrCodeValidationFailed,
			"highlight supports exactly one field, got %d", len(h.Fields))
	}
	f, ok := setting.FieldNamed(h.Fields[0])
	if !ok {
		return "", errors.Newf(errors.ErrCodeUnknownField,
			"index %q has no field %q", setting.Name, h.Fields[0])
	}
	return f.Name, nil
}

// fragments extracts highlighted fragments for a hit from its owning shard.
func fragments(searchers []*shard.Searcher, hit *bsearch.DocumentMatch, field string, h *Highlight) []string {
	shardNo, err := strconv.Atoi(hit.Index)
	if err != nil || shardNo < 0 || shardNo >= len(searchers) {
		return nil
	}

	doc, err := searchers[shardNo].Document(hit.ID)
	if err != nil || doc == nil {
		return nil
	}

	n := h.FragmentsToReturn
	if n <= 0 {
		n = 1
	}
	pre, post := h.PreTag, h.PostTag
	if pre == "" {
		pre = "<em>"
	}
	if post == "" {
		post = "</em>"
	}

	highlighter := simplehl.NewHighlighter(
		simplefrag.NewFragmenter(fragmentSize),
		htmlformat.NewFragmentFormatter(pre, post),
		"…",
	)
	return highlighter.BestFragmentsInField(hit, doc, field, n)
}
