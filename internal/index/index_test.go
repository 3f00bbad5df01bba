package index

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-chat/internal/models"
)

// noEmbed is the chromem fallback; all documents carry precomputed
// vectors so it must never fire.
func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding func must not be called")
}

// embedText maps text onto normalized letter frequencies, a cheap
// deterministic stand-in for a real embedding model.
func embedText(s string) []float32 {
	v := make([]float32, 26)
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	n := norm(v)
	if n == 0 {
		v[0] = 1
		return v
	}
	for i := range v {
		v[i] /= n
	}
	return v
}

func buildIndex(t *testing.T, source string, contents []string, vectors [][]float32) *Index {
	t.Helper()
	chunks := make([]models.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = models.Chunk{Content: c, Source: source, PageNumber: 1, ChunkID: i + 1}
	}
	ix, err := Build(context.Background(), source, chunks, vectors, noEmbed)
	require.NoError(t, err)
	return ix
}

func TestQueryNilIndex(t *testing.T) {
	var ix *Index
	chunks, err := ix.Query(context.Background(), []float32{1, 0, 0}, 6, 0.25)
	assert.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Equal(t, 0, ix.Count())
}

func TestQueryMostRelevantFirst(t *testing.T) {
	ix := buildIndex(t, "doc.txt",
		[]string{"alpha", "beta", "gamma"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
	)

	chunks, err := ix.Query(context.Background(), []float32{0, 1, 0}, 1, 0.25)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "beta", chunks[0].Content)
	assert.Equal(t, 2, chunks[0].ChunkID)
}

func TestQueryDiversityReranking(t *testing.T) {
	// Two near-duplicates of the best match plus one distinct chunk.
	// With a diversity-heavy lambda the distinct chunk must beat the
	// duplicate for the second slot.
	ix := buildIndex(t, "doc.txt",
		[]string{"best", "duplicate", "distinct"},
		[][]float32{{1, 0, 0}, {0.99, 0.141, 0}, {0.7, 0.7, 0}},
	)

	chunks, err := ix.Query(context.Background(), []float32{1, 0, 0}, 2, 0.25)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "best", chunks[0].Content)
	assert.Equal(t, "distinct", chunks[1].Content)
}

func TestQueryDeterministic(t *testing.T) {
	ix := buildIndex(t, "doc.txt",
		[]string{"one", "two", "three", "four", "five"},
		[][]float32{{1, 0, 0}, {0.9, 0.3, 0}, {0.5, 0.5, 0}, {0, 1, 0}, {0, 0, 1}},
	)

	query := []float32{0.8, 0.2, 0}
	first, err := ix.Query(context.Background(), query, 3, 0.25)
	require.NoError(t, err)
	second, err := ix.Query(context.Background(), query, 3, 0.25)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestQueryClampsK(t *testing.T) {
	ix := buildIndex(t, "doc.txt",
		[]string{"one", "two"},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
	)

	chunks, err := ix.Query(context.Background(), []float32{1, 0, 0}, 10, 0.25)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestStoreSwapReplacesWholesale(t *testing.T) {
	store := NewStore()
	assert.Nil(t, store.Snapshot())

	first := buildIndex(t, "one.txt",
		[]string{"from the first document"},
		[][]float32{embedText("from the first document")},
	)
	store.Swap(first)

	query := embedText("document")
	chunks, err := store.Snapshot().Query(context.Background(), query, 6, 0.25)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Equal(t, "one.txt", c.Source)
	}

	second := buildIndex(t, "two.txt",
		[]string{"entirely new material"},
		[][]float32{embedText("entirely new material")},
	)
	store.Swap(second)

	chunks, err = store.Snapshot().Query(context.Background(), embedText("material"), 6, 0.25)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Equal(t, "two.txt", c.Source)
	}
}

func TestQueryFindsMarkedRegion(t *testing.T) {
	// A 3000-char document split 1000/100 yields 4 chunks; only the
	// second chunk covers the q-region, so a q-query must rank it first.
	contents := []string{
		strings.Repeat("a", 1000),
		strings.Repeat("a", 100) + strings.Repeat("q", 800) + strings.Repeat("a", 100),
		strings.Repeat("a", 1000),
		strings.Repeat("a", 300),
	}
	vectors := make([][]float32, len(contents))
	for i, c := range contents {
		vectors[i] = embedText(c)
	}
	ix := buildIndex(t, "uniform.txt", contents, vectors)

	chunks, err := ix.Query(context.Background(), embedText("qqqq"), 2, 0.25)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 2, chunks[0].ChunkID)
}

func TestBuildLengthMismatch(t *testing.T) {
	_, err := Build(context.Background(), "doc.txt",
		[]models.Chunk{{Content: "x", Source: "doc.txt", PageNumber: 1, ChunkID: 1}},
		nil, noEmbed)
	assert.Error(t, err)
}

var _ chromem.EmbeddingFunc = noEmbed
