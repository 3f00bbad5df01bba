package index

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"

	"document-chat/internal/errs"
	"document-chat/internal/models"
)

const collectionName = "document"

// Index is an immutable snapshot of one ingested document. It is built
// once and never mutated afterwards; replacement happens by swapping the
// Store pointer, so readers holding a snapshot are never torn.
type Index struct {
	collection *chromem.Collection
	source     string
	count      int
}

// Build creates a fresh in-memory collection from parallel chunk/vector
// slices. embedFn is only chromem's fallback; every document carries its
// precomputed vector.
func Build(ctx context.Context, source string, chunks []models.Chunk, vectors [][]float32, embedFn chromem.EmbeddingFunc) (*Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection(collectionName, map[string]string{"source": source}, embedFn)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:      fmt.Sprintf("%s-p%04d-c%04d", chunk.Source, chunk.PageNumber, chunk.ChunkID),
			Content: chunk.Content,
			Metadata: map[string]string{
				"source": chunk.Source,
				"page":   strconv.Itoa(chunk.PageNumber),
				"chunk":  strconv.Itoa(chunk.ChunkID),
			},
			Embedding: vectors[i],
		}
	}
	if len(docs) > 0 {
		if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return nil, fmt.Errorf("add documents: %w", err)
		}
	}

	return &Index{collection: collection, source: source, count: len(docs)}, nil
}

// Count reports the number of indexed chunks. Safe on a nil index.
func (ix *Index) Count() int {
	if ix == nil {
		return 0
	}
	return ix.count
}

// Source names the document this index was built from.
func (ix *Index) Source() string {
	if ix == nil {
		return ""
	}
	return ix.source
}

// Query returns up to k chunks, most relevant first, re-ranked for
// diversity with maximal marginal relevance. A nil or empty index yields
// no chunks and no error.
func (ix *Index) Query(ctx context.Context, queryEmbedding []float32, k int, lambda float64) ([]models.Chunk, error) {
	if ix == nil || ix.count == 0 || k <= 0 {
		return nil, nil
	}

	// Over-fetch so the re-ranker has candidates to trade off.
	fetch := k * 4
	if fetch > ix.count {
		fetch = ix.count
	}

	results, err := ix.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryEmbedding,
		NResults:       fetch,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrIndexCorrupt, err)
	}

	picked := maximalMarginalRelevance(results, k, float32(lambda))

	chunks := make([]models.Chunk, 0, len(picked))
	for _, r := range picked {
		page, _ := strconv.Atoi(r.Metadata["page"])
		chunkID, _ := strconv.Atoi(r.Metadata["chunk"])
		chunks = append(chunks, models.Chunk{
			Content:    r.Content,
			Source:     r.Metadata["source"],
			PageNumber: page,
			ChunkID:    chunkID,
		})
	}
	return chunks, nil
}

// maximalMarginalRelevance iteratively selects the candidate maximizing
// lambda*relevance - (1-lambda)*maxSimilarityToSelected. Candidates are
// pre-sorted by (similarity desc, id asc) so equal scores resolve the
// same way on every run.
func maximalMarginalRelevance(candidates []chromem.Result, k int, lambda float32) []chromem.Result {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].ID < candidates[j].ID
	})

	if k > len(candidates) {
		k = len(candidates)
	}

	selected := make([]chromem.Result, 0, k)
	remaining := make([]int, len(candidates))
	for i := range remaining {
		remaining[i] = i
	}

	for len(selected) < k && len(remaining) > 0 {
		bestPos := -1
		var bestScore float32
		for pos, ci := range remaining {
			c := candidates[ci]
			var penalty float32
			for _, s := range selected {
				if sim := cosineSimilarity(c.Embedding, s.Embedding); sim > penalty {
					penalty = sim
				}
			}
			score := lambda*c.Similarity - (1-lambda)*penalty
			if bestPos == -1 || score > bestScore {
				bestPos, bestScore = pos, score
			}
		}
		selected = append(selected, candidates[remaining[bestPos]])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}
	return selected
}
