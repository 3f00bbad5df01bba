package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"document-chat/internal/chat"
	"document-chat/internal/config"
	"document-chat/internal/embedding"
	"document-chat/internal/index"
	"document-chat/internal/llmservice"
	"document-chat/internal/rag"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	filePath := flag.String("file", "", "Path to the document file to ingest")
	query := flag.String("query", "", "Question to ask")
	flag.Parse()

	if *filePath == "" && *query == "" {
		log.Fatal().Msg("Please provide a document file using the -file flag, a question using the -query flag, or both")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	client, err := llmservice.New(&cfg.ChatLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing inference client")
	}

	store := index.NewStore()
	ctx := context.Background()

	if *filePath != "" {
		pipeline := rag.NewPipeline(store, embedder, cfg.RAG, cfg.EmbedLLM.Timeout())
		if err := pipeline.Ingest(ctx, *filePath); err != nil {
			log.Fatal().Err(err).Msg("Error ingesting document")
		}
	}

	if *query != "" {
		manager := chat.NewManager(store, embedder, client, cfg.RAG, cfg.ChatLLM.Timeout())
		answer, err := manager.Respond(ctx, *query)
		if err != nil {
			log.Fatal().Err(err).Msg("Error answering query")
		}
		fmt.Printf("%s\n", answer)
	}
}
