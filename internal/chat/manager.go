package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"document-chat/internal/config"
	"document-chat/internal/index"
	"document-chat/internal/llmservice"
	"document-chat/internal/models"
)

// Manager owns the shared conversation history and turns one user prompt
// into a completed exchange. History is process-wide: every caller sees
// and extends the same conversation.
type Manager struct {
	mu      sync.Mutex
	history []models.Exchange

	store       *index.Store
	embedder    embeddings.Embedder
	client      *llmservice.Client
	cfg         config.RAGConfig
	callTimeout time.Duration
}

func NewManager(store *index.Store, embedder embeddings.Embedder, client *llmservice.Client, cfg config.RAGConfig, callTimeout time.Duration) *Manager {
	if callTimeout <= 0 {
		callTimeout = 60 * time.Second
	}
	return &Manager{
		store:       store,
		embedder:    embedder,
		client:      client,
		cfg:         cfg,
		callTimeout: callTimeout,
	}
}

// Respond retrieves document context for prompt, assembles the message
// sequence and calls the inference gateway. The new exchange is recorded
// only after a successful completion; on failure the history is left
// exactly as it was.
func (m *Manager) Respond(ctx context.Context, prompt string) (string, error) {
	contextText, err := m.retrieveContext(ctx, prompt)
	if err != nil {
		return "", err
	}

	messages := m.buildMessages(contextText, prompt)

	cctx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()
	answer, err := m.client.Complete(cctx, messages, m.cfg.Temperature, m.cfg.MaxTokens)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.history = append(m.history, models.Exchange{UserMessage: prompt, AssistantMessage: answer})
	total := len(m.history)
	m.mu.Unlock()

	log.Debug().Int("exchanges", total).Msg("conversation history updated")
	return answer, nil
}

// retrieveContext embeds the prompt and queries the active index
// snapshot. Without an ingested document there is no context and no
// error. The snapshot is used for the whole retrieval, so a concurrent
// ingest cannot tear the read.
func (m *Manager) retrieveContext(ctx context.Context, prompt string) (string, error) {
	ix := m.store.Snapshot()
	if ix.Count() == 0 {
		return "", nil
	}

	ectx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()
	queryEmbedding, err := m.embedder.EmbedQuery(ectx, prompt)
	if err != nil {
		return "", fmt.Errorf("embed prompt: %w", err)
	}

	chunks, err := ix.Query(ctx, queryEmbedding, m.cfg.TopK, m.cfg.MMRLambda)
	if err != nil {
		return "", err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	return strings.Join(texts, "\n"), nil
}

// buildMessages assembles system context, the windowed history and the
// new prompt. Without document context no system message is sent at all.
func (m *Manager) buildMessages(contextText, prompt string) []llms.MessageContent {
	var messages []llms.MessageContent
	if contextText != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, fmt.Sprintf(models.SystemPromptTemplate, contextText)))
	}
	for _, e := range m.window() {
		messages = append(messages,
			llms.TextParts(schema.ChatMessageTypeHuman, e.UserMessage),
			llms.TextParts(schema.ChatMessageTypeAI, e.AssistantMessage),
		)
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, prompt))
	return messages
}

// window copies the most recent HistoryWindow exchanges, oldest first.
func (m *Manager) window() []models.Exchange {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.cfg.HistoryWindow
	if n > len(m.history) {
		n = len(m.history)
	}
	out := make([]models.Exchange, n)
	copy(out, m.history[len(m.history)-n:])
	return out
}

// HistoryLen reports the full recorded history length, which keeps
// growing past the window.
func (m *Manager) HistoryLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}
