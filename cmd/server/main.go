package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/autofixai/autofix-backend/internal/api"
	"github.com/autofixai/autofix-backend/internal/config"
	"github.com/autofixai/autofix-backend/internal/core"
	"github.com/autofixai/autofix-backend/internal/docs"
	"github.com/autofixai/autofix-backend/internal/llm"
	"github.com/autofixai/autofix-backend/internal/store"
	"github.com/autofixai/autofix-backend/internal/vector"
)

// Collections created at startup so diagnosis queries never hit an
// unregistered collection.
var standingCollections = []string{
	"automotive_knowledge",
	"repair_procedures",
	"diagnostic_codes",
}

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Command line flag for knowledge-base ingestion
	ingestPath := flag.String("ingest", "", "Ingest a knowledge file into the automotive_knowledge collection and exit")
	flag.Parse()

	ctx := context.Background()

	// Initialize document store
	dbStore, err := store.NewMongoStore(ctx, config.AppConfig.MongoURI, config.AppConfig.MongoDBName)
	if err != nil {
		log.Fatalf("Failed to initialize document store: %v", err)
	}
	defer dbStore.Close(context.Background())

	// The Ollama client doubles as the embedder for the vector store even
	// when generation runs on Hugging Face.
	ollamaClient := llm.NewOllamaClient(
		config.AppConfig.OllamaBaseURL,
		config.AppConfig.OllamaModel,
		config.AppConfig.OllamaEmbedModel,
	)

	var llmClient llm.Client
	switch config.AppConfig.LLMBackend {
	case "huggingface":
		llmClient = llm.NewHuggingFaceClient("", config.AppConfig.HuggingFaceKey, config.AppConfig.HuggingFaceModel)
		log.Printf("Using Hugging Face backend with model %s", config.AppConfig.HuggingFaceModel)
	default:
		llmClient = ollamaClient
		log.Printf("Using Ollama backend at %s with model %s", config.AppConfig.OllamaBaseURL, config.AppConfig.OllamaModel)
	}

	// Initialize vector store
	vectorStore, err := vector.NewStore(ctx, config.AppConfig.PostgresURL, ollamaClient)
	if err != nil {
		log.Fatalf("Failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	for _, name := range standingCollections {
		if err := vectorStore.EnsureCollection(ctx, name); err != nil {
			log.Fatalf("Failed to ensure collection %q: %v", name, err)
		}
	}

	// Handle knowledge ingestion if requested
	if *ingestPath != "" {
		log.Printf("Ingesting knowledge from %s...", *ingestPath)
		count, err := ingestKnowledge(ctx, vectorStore, *ingestPath)
		if err != nil {
			log.Fatalf("Knowledge ingestion failed: %v", err)
		}
		log.Printf("Ingestion complete. Added %d chunks. Exiting.", count)
		return
	}

	// Initialize services
	diagnosticsService := core.NewDiagnosticsService(dbStore, vectorStore, llmClient)
	conversationService := core.NewConversationService(dbStore, vectorStore, llmClient)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(dbStore, diagnosticsService, conversationService)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give active connections time to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}

// ingestKnowledge chunks the file and indexes it into the
// automotive_knowledge collection.
func ingestKnowledge(ctx context.Context, vectorStore *vector.Store, path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read knowledge file: %w", err)
	}

	chunks := docs.Split(string(content), docs.DefaultChunkSize, docs.DefaultChunkOverlap)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no chunks produced from %s", path)
	}

	ids := make([]string, len(chunks))
	metadatas := make([]map[string]string, len(chunks))
	for i := range chunks {
		ids[i] = uuid.NewString()
		metadatas[i] = map[string]string{"source": path, "chunk": fmt.Sprintf("%d", i)}
	}

	if err := vectorStore.Add(ctx, "automotive_knowledge", chunks, metadatas, ids); err != nil {
		return 0, err
	}
	return len(chunks), nil
}
