package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/kaikaijiang/Instant-RAG/internal/api/handlers"
	"github.com/kaikaijiang/Instant-RAG/internal/config"
	"github.com/kaikaijiang/Instant-RAG/internal/database"
	"github.com/kaikaijiang/Instant-RAG/internal/domain"
	"github.com/kaikaijiang/Instant-RAG/internal/embedding"
	"github.com/kaikaijiang/Instant-RAG/internal/jobs"
	"github.com/kaikaijiang/Instant-RAG/internal/llm"
	"github.com/kaikaijiang/Instant-RAG/internal/repository"
	"github.com/kaikaijiang/Instant-RAG/internal/secrets"
	"github.com/kaikaijiang/Instant-RAG/internal/segment"
	"github.com/kaikaijiang/Instant-RAG/internal/server"
	"github.com/kaikaijiang/Instant-RAG/internal/service"
	"github.com/kaikaijiang/Instant-RAG/internal/storage"
	"github.com/kaikaijiang/Instant-RAG/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the Instant-RAG API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if cfg.HasSentry() {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	projectRepo := repository.NewProjectRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	chatRepo := repository.NewChatRepository(pool)
	emailSettingsRepo := repository.NewEmailSettingsRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	var embedder service.Embedder
	if cfg.HasOpenAI() {
		backend, err := embedding.NewOpenAIBackend(cfg.OpenAIAPIKey, embedding.DefaultModel)
		if err != nil {
			return fmt.Errorf("failed to create embedding backend: %w", err)
		}
		embedder = embedding.New(backend)
	} else {
		log.Println("OPENAI_API_KEY not set, embedding backend disabled")
		embedder = &NoOpEmbedder{}
	}

	var model llm.Client
	switch {
	case cfg.ChatBackend == "gemini" && cfg.HasGemini():
		model, err = llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return fmt.Errorf("failed to create gemini client: %w", err)
		}
		log.Println("chat backend: gemini")
	case cfg.HasOpenAI():
		model = llm.NewOpenAIClient(cfg.OpenAIAPIKey)
		log.Println("chat backend: openai")
	default:
		log.Println("no chat backend configured, chat disabled")
		model = &NoOpLLM{}
	}

	var archiver service.Archiver
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready, archiving raw uploads", cfg.S3Bucket)
		archiver = s3Client
	}

	var sealer service.SecretSealer
	if cfg.SecretPassphrase != "" {
		sealer, err = secrets.NewSealer(cfg.SecretPassphrase)
		if err != nil {
			return fmt.Errorf("failed to create secret sealer: %w", err)
		}
	} else {
		log.Println("SECRET_PASSPHRASE not set, email settings disabled")
		sealer = &NoOpSealer{}
	}

	segmenter := segment.New(segment.TesseractOCR{})
	fetcher := segment.NewWebFetcher(segment.DefaultFetchTimeout)

	projectSvc := service.NewProjectService(projectRepo)
	ingestSvc := service.NewIngestService(documentRepo, chunkRepo, txRunner, segmenter, embedder, fetcher, archiver)
	chatSvc := service.NewChatService(chunkRepo, chatRepo, embedder, model, service.ChatConfig{
		Model:         cfg.ChatModel,
		Temperature:   cfg.ChatTemperature,
		MaxTokens:     cfg.ChatMaxTokens,
		TopP:          cfg.ChatTopP,
		TopK:          cfg.ChatTopK,
		TopKChunks:    cfg.RetrievalTopK,
		ContextBudget: cfg.ContextBudget,
	})
	emailSvc := service.NewEmailService(emailSettingsRepo, documentRepo, chunkRepo, embedder, model, sealer, &NoOpMailSource{})

	router := server.NewRouter(server.RouterConfig{
		ProjectHandler:  handlers.NewProjectHandler(projectSvc),
		DocumentHandler: handlers.NewDocumentHandler(ingestSvc),
		ChatHandler:     handlers.NewChatHandler(chatSvc),
		EmailHandler:    handlers.NewEmailHandler(emailSvc),
	})

	janitor := jobs.NewJanitor(documentRepo, cfg.JanitorMaxAge)
	worker := jobs.NewWorker(janitor, cfg.JanitorInterval)
	go worker.Start(ctx)
	log.Println("janitor worker started")

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	worker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// golang-migrate drives a database/sql connection, separate from the
	// pgx pool used at runtime.
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}

// NoOpEmbedder stands in when no embedding backend is configured. Ingestion
// and retrieval surface the failure instead of crashing at startup.
type NoOpEmbedder struct{}

func (e *NoOpEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, domain.NewDomainError(domain.ErrCodeBackendFailure, "embedding backend not configured: INSTARAG_OPENAI_API_KEY required")
}

func (e *NoOpEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, domain.NewDomainError(domain.ErrCodeBackendFailure, "embedding backend not configured: INSTARAG_OPENAI_API_KEY required")
}

// NoOpLLM stands in when no chat backend is configured.
type NoOpLLM struct{}

func (c *NoOpLLM) Complete(ctx context.Context, messages []llm.Message, params llm.Params) (string, error) {
	return "", domain.NewDomainError(domain.ErrCodeBackendFailure, "chat backend not configured: set INSTARAG_OPENAI_API_KEY or INSTARAG_GEMINI_API_KEY")
}

// NoOpSealer stands in when no passphrase is configured. Email settings
// cannot be stored without one.
type NoOpSealer struct{}

func (s *NoOpSealer) Seal(plaintext string) (string, string, error) {
	return "", "", domain.NewDomainError(domain.ErrCodeInvalidOperation, "email settings disabled: INSTARAG_SECRET_PASSPHRASE required")
}

func (s *NoOpSealer) Open(sealed, salt string) (string, error) {
	return "", domain.NewDomainError(domain.ErrCodeInvalidOperation, "email settings disabled: INSTARAG_SECRET_PASSPHRASE required")
}

// NoOpMailSource stands in until a mailbox connector is wired in. Settings
// can be saved and listed, ingestion reports the missing connector.
type NoOpMailSource struct{}

func (s *NoOpMailSource) FetchMessages(ctx context.Context, settings *domain.EmailSettings, password string) ([]domain.MailMessage, error) {
	return nil, domain.NewDomainError(domain.ErrCodeBackendFailure, "mail source not configured")
}
