package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arashthr/lodekeep/internal/ai"
	"github.com/arashthr/lodekeep/internal/ai/gemini"
	"github.com/arashthr/lodekeep/internal/ai/openai"
	"github.com/arashthr/lodekeep/internal/config"
	"github.com/arashthr/lodekeep/internal/db"
	"github.com/arashthr/lodekeep/internal/jobs"
	"github.com/arashthr/lodekeep/internal/logging"
	"github.com/arashthr/lodekeep/internal/models"
	"github.com/arashthr/lodekeep/internal/scraper"
	"github.com/arashthr/lodekeep/internal/service"
	"github.com/mmcdole/gofeed"
	"google.golang.org/genai"
)

const (
	sweepInterval   = 5 * time.Minute
	feedStaleAfter  = 7 * 24 * time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.LoadEnvConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.Environment, cfg.Logging.LogLevel)
	defer logging.Sync()

	if err := run(cfg); err != nil {
		logging.Logger.Fatalw("server exited", "error", err)
	}
}

func run(cfg *config.AppConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := db.Migrate(cfg.PSQL.PgConnectionString()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	pool, err := db.Open(cfg.PSQL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer pool.Close()

	genaiClient, err := genai.NewClient(ctx, nil)
	if err != nil {
		return fmt.Errorf("creating genai client: %w", err)
	}
	geminiClient := gemini.New(genaiClient, cfg.AI.GeminiModel)
	descriptor := ai.WithDescriptorRetry(geminiClient, cfg.AI.RequestTimeout)
	parser := ai.WithParserRetry(geminiClient, cfg.AI.RequestTimeout)

	rawEmbedder, err := openai.NewEmbedder(openai.Config{
		BaseURL: cfg.AI.EmbeddingBaseURL,
		Token:   os.Getenv("EMBEDDING_API_TOKEN"),
		Model:   cfg.AI.EmbeddingModel,
		Dims:    cfg.AI.EmbeddingDims,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	embedder := ai.WithEmbedderRetry(rawEmbedder, cfg.AI.RequestTimeout)

	bookmarkModel := &models.BookmarkModel{Pool: pool}
	jobModel := &models.JobModel{Pool: pool}
	feedModel := &models.FeedArticleModel{Pool: pool}

	ingest := &service.IngestService{
		Store:      bookmarkModel,
		Fetcher:    scraper.New(cfg.Ingest.FetchTimeout),
		Descriptor: descriptor,
		Embedder:   embedder,
		PendingTTL: cfg.Ingest.PendingTTL,
	}
	search := &service.SearchService{
		Store:            bookmarkModel,
		Parser:           parser,
		Embedder:         embedder,
		DefaultLimit:     cfg.Search.DefaultLimit,
		DefaultThreshold: cfg.Search.DefaultThreshold,
	}

	engine, err := jobs.NewEngine(jobModel, cfg.Jobs.Workers, cfg.Jobs.PollInterval)
	if err != nil {
		return fmt.Errorf("creating job engine: %w", err)
	}
	engine.Register(&jobs.CategoryRefreshHandler{
		Store:      bookmarkModel,
		Descriptor: descriptor,
	})
	engine.Register(&jobs.FeedRefreshHandler{
		Bookmarks:  bookmarkModel,
		Articles:   feedModel,
		Embedder:   embedder,
		Parser:     gofeed.NewParser(),
		HN:         &jobs.HNClient{},
		StaleAfter: feedStaleAfter,
	})
	engine.Start(ctx)
	defer engine.Stop()

	sweeper := &service.Sweeper{
		Bookmarks: bookmarkModel,
		Jobs:      jobModel,
		Interval:  sweepInterval,
	}
	go sweeper.Run(ctx)

	api := &service.Api{
		Ingest:    ingest,
		Search:    search,
		Bookmarks: bookmarkModel,
		JobModel:  jobModel,
		Feed:      feedModel,
		Engine:    engine,
	}

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: service.NewRouter(api),
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Logger.Infow("server listening", "address", cfg.Server.Address)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logging.Logger.Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
	}
	return nil
}
