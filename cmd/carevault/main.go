// Command carevault is the composition root. It loads configuration,
// wires adapters to core services and hands control to the CLI. The
// serve command starts the HTTP API and, when enabled, the inbox
// watcher.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	blobfs "github.com/custodia-labs/carevault/internal/adapters/driven/blob/filesystem"
	"github.com/custodia-labs/carevault/internal/adapters/driven/blob/gridfs"
	embedollama "github.com/custodia-labs/carevault/internal/adapters/driven/embedding/ollama"
	embedopenai "github.com/custodia-labs/carevault/internal/adapters/driven/embedding/openai"
	llmanthropic "github.com/custodia-labs/carevault/internal/adapters/driven/llm/anthropic"
	llmollama "github.com/custodia-labs/carevault/internal/adapters/driven/llm/ollama"
	llmopenai "github.com/custodia-labs/carevault/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/carevault/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/carevault/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/carevault/internal/adapters/driven/vectorstore/qdrant"
	"github.com/custodia-labs/carevault/internal/adapters/driving/cli"
	"github.com/custodia-labs/carevault/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/carevault/internal/adapters/driving/watcher"
	"github.com/custodia-labs/carevault/internal/chunker"
	"github.com/custodia-labs/carevault/internal/config"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
	"github.com/custodia-labs/carevault/internal/core/ports/driving"
	"github.com/custodia-labs/carevault/internal/core/services"
	"github.com/custodia-labs/carevault/internal/extractors"
	"github.com/custodia-labs/carevault/internal/logger"
)

func main() {
	if err := run(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CAREVAULT_CONFIG"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := sqlite.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	defer embedder.Close()

	vectors, err := newVectorStore(cfg, embedder.Dimensions())
	if err != nil {
		return err
	}
	defer vectors.Close()

	blobs, closeBlobs, err := newBlobStore(cfg)
	if err != nil {
		return err
	}
	if closeBlobs != nil {
		defer closeBlobs()
	}

	llm, err := newCompletionService(cfg)
	if err != nil {
		return err
	}

	identities := services.NewUserService(store.UserStore())
	audit := services.NewAuditService(store.AuditStore(), store.RelationshipStore())
	resolver := services.NewVisibilityResolver(store.RelationshipStore())
	splitter := chunker.New(
		chunker.WithSize(cfg.Ingestion.ChunkSize),
		chunker.WithOverlap(cfg.Ingestion.ChunkOverlap),
	)

	ingestion := services.NewIngestionService(
		extractors.NewDefaultRegistry(nil),
		splitter,
		embedder,
		vectors,
		store.DocumentStore(),
		blobs,
		audit,
		cfg.Ingestion.MaxUploadBytes,
	)
	documents := services.NewDocumentService(store.DocumentStore(), vectors, blobs, resolver, audit)
	retrieval := services.NewRetrievalService(resolver, embedder, vectors, store.DocumentStore(), audit)
	relationships := services.NewRelationshipService(store.RelationshipStore(), store.UserStore(), audit)

	var answers driving.AnswerService
	if llm != nil {
		answers = services.NewAnswerService(retrieval, llm)
	}

	server := httpapi.NewServer(identities, ingestion, documents, retrieval, answers, relationships, audit)

	cli.SetServices(cli.Services{
		Ingestion: ingestion,
		Documents: documents,
		Retrieval: retrieval,
		Answers:   answers,
		Serve: func(addr string) error {
			return serve(cfg, addr, server, ingestion, store.UserStore())
		},
	})

	return cli.Execute()
}

// serve starts the inbox watcher (when enabled) and blocks on the HTTP
// listener.
func serve(cfg *config.Config, addr string, server *httpapi.Server, ingestion driving.IngestionService, users driven.UserStore) error {
	if addr == "" {
		addr = cfg.Server.Addr
	}

	if cfg.Watcher.Enabled {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		w, err := watcher.New(ingestion, cfg.Watcher.Dir, watcher.WithUserLookup(users))
		if err != nil {
			return fmt.Errorf("creating inbox watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("starting inbox watcher: %w", err)
		}
		defer w.Close()
	}

	logger.Info("Listening on %s", addr)
	return http.ListenAndServe(addr, server.Handler(os.Stdout))
}

func newEmbedder(cfg *config.Config) (driven.EmbeddingService, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		return embedopenai.NewEmbeddingService(embedopenai.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	case "ollama", "":
		return embedollama.NewEmbeddingService(embedollama.Config{
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

func newVectorStore(cfg *config.Config, dimensions int) (driven.VectorStore, error) {
	if cfg.Qdrant.URL == "" {
		logger.Warn("No Qdrant URL configured; using in-memory vector store (data is not persisted)")
		return memory.NewVectorStore(), nil
	}

	store := qdrant.NewStore(qdrant.Config{
		URL:        cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.EnsureCollection(ctx, dimensions); err != nil {
		return nil, fmt.Errorf("preparing vector collection: %w", err)
	}
	return store, nil
}

func newBlobStore(cfg *config.Config) (driven.BlobStore, func() error, error) {
	switch cfg.Blob.Backend {
	case "filesystem", "":
		store, err := blobfs.NewBlobStore(cfg.Blob.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening blob store: %w", err)
		}
		return store, nil, nil
	case "gridfs":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		store, err := gridfs.NewBlobStore(ctx, gridfs.Config{
			URI:      cfg.Blob.MongoURI,
			Database: cfg.Blob.MongoDatabase,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to GridFS: %w", err)
		}
		return store, store.Close, nil
	case "none":
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown blob backend %q", cfg.Blob.Backend)
	}
}

func newCompletionService(cfg *config.Config) (driven.CompletionService, error) {
	switch cfg.LLM.Provider {
	case "":
		return nil, nil
	case "openai":
		return llmopenai.NewCompletionService(llmopenai.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})
	case "anthropic":
		return llmanthropic.NewCompletionService(llmanthropic.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})
	case "ollama":
		return llmollama.NewCompletionService(llmollama.Config{
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.LLM.Provider)
	}
}
