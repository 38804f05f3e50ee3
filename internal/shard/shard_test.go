package shard

import (
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexsearch/flexsearch/internal/analysis"
	"github.com/flexsearch/flexsearch/internal/schema"
)

func ramSetting(name string) *schema.IndexSetting {
	body := &schema.Field{Name: "body", Kind: schema.KindText, IndexAnalyzer: "standard", SearchAnalyzer: "standard"}
	tag := &schema.Field{Name: "tag", Kind: schema.KindExactText, IndexAnalyzer: analysis.ExactAnalyzerName, SearchAnalyzer: analysis.ExactAnalyzerName}
	return &schema.IndexSetting{
		Name:           name,
		Fields:         []*schema.Field{body, tag},
		FieldMap:       map[string]*schema.Field{"body": body, "tag": tag},
		IndexAnalyzer:  "standard",
		SearchAnalyzer: "standard",
		ShardCount:     1,
		DirKind:        schema.DirRam,
	}
}

func openTestShard(t *testing.T) *Shard {
	t.Helper()
	s, err := Open(ramSetting("test"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func doc(id, body string, version int) map[string]any {
	return map[string]any{
		schema.FieldId:           id,
		schema.FieldType:         "test",
		schema.FieldLastModified: time.Now().UnixMilli(),
		schema.FieldVersion:      int64(version),
		"body":                   body,
	}
}

func countHits(t *testing.T, s *Shard, q string) int {
	t.Helper()
	h, err := s.AcquireSearcher()
	require.NoError(t, err)
	defer h.Release()

	mq := bleve.NewMatchQuery(q)
	mq.SetField("body")
	res, err := h.Index().Search(bleve.NewSearchRequest(mq))
	require.NoError(t, err)
	return len(res.Hits)
}

func TestShard_WritesInvisibleUntilRefresh(t *testing.T) {
	s := openTestShard(t)

	require.NoError(t, s.Add("a", doc("a", "hello world", 1)))
	assert.Equal(t, 0, countHits(t, s, "hello"))

	refreshed, err := s.MaybeRefresh()
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, 1, countHits(t, s, "hello"))
}

func TestShard_GenerationAdvances(t *testing.T) {
	s := openTestShard(t)

	g0 := s.Generation()
	require.NoError(t, s.Add("a", doc("a", "one", 1)))
	require.NoError(t, s.Add("b", doc("b", "two", 1)))
	assert.Equal(t, g0+2, s.Generation())
	assert.Equal(t, g0, s.VisibleGeneration())

	_, err := s.MaybeRefresh()
	require.NoError(t, err)
	assert.Equal(t, s.Generation(), s.VisibleGeneration())
}

func TestShard_MaybeRefreshNoopWhenClean(t *testing.T) {
	s := openTestShard(t)

	refreshed, err := s.MaybeRefresh()
	require.NoError(t, err)
	assert.False(t, refreshed)
}

func TestShard_UpdateReplacesById(t *testing.T) {
	s := openTestShard(t)

	require.NoError(t, s.Add("a", doc("a", "first words", 1)))
	require.NoError(t, s.Update("a", doc("a", "second words", 2)))
	_, err := s.MaybeRefresh()
	require.NoError(t, err)

	assert.Equal(t, 0, countHits(t, s, "first"))
	assert.Equal(t, 1, countHits(t, s, "second"))
}

func TestShard_DeleteRemovesAfterRefresh(t *testing.T) {
	s := openTestShard(t)

	require.NoError(t, s.Add("a", doc("a", "doomed", 1)))
	_, err := s.MaybeRefresh()
	require.NoError(t, err)
	require.Equal(t, 1, countHits(t, s, "doomed"))

	require.NoError(t, s.Delete("a"))
	_, err = s.MaybeRefresh()
	require.NoError(t, err)
	assert.Equal(t, 0, countHits(t, s, "doomed"))
}

func TestShard_DeleteAll(t *testing.T) {
	s := openTestShard(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Add(id, doc(id, "bulk content", 1)))
	}
	_, err := s.MaybeRefresh()
	require.NoError(t, err)
	require.Equal(t, 3, countHits(t, s, "bulk"))

	require.NoError(t, s.DeleteAll())
	assert.Equal(t, 0, countHits(t, s, "bulk"))
}

func TestShard_StoredVersion(t *testing.T) {
	s := openTestShard(t)

	require.NoError(t, s.Add("Doc-1", doc("Doc-1", "versioned", 7)))
	_, err := s.MaybeRefresh()
	require.NoError(t, err)

	v, found, err := s.StoredVersion("Doc-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 7, v)

	_, found, err = s.StoredVersion("ghost")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestShard_CommitClearsUncommitted(t *testing.T) {
	s := openTestShard(t)

	require.NoError(t, s.Add("a", doc("a", "durable", 1)))
	assert.True(t, s.HasUncommitted())

	require.NoError(t, s.Commit())
	assert.False(t, s.HasUncommitted())
	assert.Equal(t, 1, countHits(t, s, "durable"))
}

func TestShard_ReopenWorkerRefreshes(t *testing.T) {
	s := openTestShard(t)

	require.NoError(t, s.Add("a", doc("a", "eventually visible", 1)))

	require.Eventually(t, func() bool {
		return countHits(t, s, "eventually") == 1
	}, time.Second, 10*time.Millisecond)
}

func TestShard_SearcherReleaseIsIdempotent(t *testing.T) {
	s := openTestShard(t)

	h, err := s.AcquireSearcher()
	require.NoError(t, err)
	h.Release()
	h.Release() // must not panic or unbalance the refcount
}

func TestShard_CloseWaitsAndRejectsWrites(t *testing.T) {
	s, err := Open(ramSetting("closing"), 0)
	require.NoError(t, err)

	require.NoError(t, s.Add("a", doc("a", "x", 1)))
	require.NoError(t, s.Close())

	assert.Error(t, s.Add("b", doc("b", "y", 1)))
	require.NoError(t, s.Close())
}

func TestShard_AcquireSearcherAfterCloseFails(t *testing.T) {
	s, err := Open(ramSetting("closed-acquire"), 0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	h, err := s.AcquireSearcher()
	assert.Error(t, err)
	assert.Nil(t, h)
}
