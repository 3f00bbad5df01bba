package rag

import (
	"context"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"document-chat/internal/config"
	"document-chat/internal/embedding"
	"document-chat/internal/index"
	"document-chat/internal/parser"
)

// Pipeline turns a document file into the active vector index. Ingestion
// is all-or-nothing: the previous index stays active until a fully built
// replacement is ready to swap in.
type Pipeline struct {
	store       *index.Store
	embedder    embeddings.Embedder
	cfg         config.RAGConfig
	callTimeout time.Duration
}

func NewPipeline(store *index.Store, embedder embeddings.Embedder, cfg config.RAGConfig, callTimeout time.Duration) *Pipeline {
	if callTimeout <= 0 {
		callTimeout = 60 * time.Second
	}
	return &Pipeline{
		store:       store,
		embedder:    embedder,
		cfg:         cfg,
		callTimeout: callTimeout,
	}
}

// Ingest parses, chunks, embeds and indexes the document at filePath,
// then replaces the active index wholesale. Conversation history is
// deliberately left alone: earlier answers may reference the replaced
// document, matching the original system's behavior.
func (p *Pipeline) Ingest(ctx context.Context, filePath string) error {
	chunks, err := parser.ParseDocument(filePath, &p.cfg)
	if err != nil {
		return err
	}

	ectx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	vectors, err := embedding.EmbedChunks(ectx, p.embedder, chunks)
	if err != nil {
		return err
	}

	ix, err := index.Build(ctx, chunks[0].Source, chunks, vectors, p.embedFunc())
	if err != nil {
		return err
	}

	p.store.Swap(ix)
	log.Info().Str("source", ix.Source()).Int("chunks", ix.Count()).Msg("document indexed, previous index replaced")
	return nil
}

func (p *Pipeline) embedFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return p.embedder.EmbedQuery(ctx, text)
	}
}
