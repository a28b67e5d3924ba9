package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quirehq/quire/internal/ai"
	"github.com/quirehq/quire/internal/config"
	"github.com/quirehq/quire/internal/embedcache"
	"github.com/quirehq/quire/internal/filestore"
	"github.com/quirehq/quire/internal/handler"
	"github.com/quirehq/quire/internal/job"
	"github.com/quirehq/quire/internal/middleware"
	"github.com/quirehq/quire/internal/pkg/logutil"
	"github.com/quirehq/quire/internal/rag"
	"github.com/quirehq/quire/internal/repo"
	"github.com/quirehq/quire/internal/schedule"
	"github.com/quirehq/quire/internal/service"
	"github.com/quirehq/quire/internal/vectorstore"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "quire",
		Short: "quire notebook generation server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run quire server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logutil.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				cfg.LogConfig.FileCount,
				cfg.LogConfig.FileSize,
				cfg.LogConfig.KeepDays,
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			db, err := repo.Open(cfg.DBDsn)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := repo.ApplyMigrations(db, cfg.MigrationsDir); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, db)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, db *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("embed_provider", cfg.AI.EmbedProvider),
		zap.String("file_store", cfg.FileStore.Type),
	)

	notebookRepo := repo.NewNotebookRepo(db)
	sourceRepo := repo.NewSourceRepo(db)
	outputRepo := repo.NewOutputRepo(db)
	templateRepo := repo.NewTemplateRepo(db)

	llm, err := ai.NewLlmProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init llm provider: %w", err)
	}
	embedder, err := ai.NewEmbedProvider(cfg.AI.EmbedProvider, cfg.AI.EmbedData)
	if err != nil {
		return fmt.Errorf("init embed provider: %w", err)
	}
	embedder = embedcache.Wrap(embedder,
		cfg.Vector.EmbedCacheSize,
		time.Duration(cfg.Vector.EmbedCacheTTLMinutes)*time.Minute,
	)

	index := vectorstore.New(db, embedder, vectorstore.Config{
		EmbedRatePerSec: cfg.Vector.EmbedRatePerSec,
		QueryCacheSize:  cfg.Vector.QueryCacheSize,
		QueryCacheTTL:   time.Duration(cfg.Vector.QueryCacheTTLMinutes) * time.Minute,
	})

	indexer := rag.NewIndexer(index, rag.ChunkOptions{
		ChunkSize: cfg.Rag.ChunkSize,
		Overlap:   cfg.Rag.Overlap,
	})
	retrieval := rag.NewEngine(index)
	resolver := rag.NewTemplateResolver(templateRepo)
	assembler := rag.NewAssembler(llm, rag.AssemblerConfig{
		ReservedCompletion: cfg.Rag.ReservedCompletion,
		DefaultMaxTokens:   cfg.Rag.DefaultMaxTokens,
	})
	orchestratorCfg := rag.OrchestratorConfig{
		MaxAttempts:       cfg.Rag.MaxAttempts,
		BackoffBase:       time.Duration(cfg.Rag.BackoffMs) * time.Millisecond,
		CallTimeout:       time.Duration(cfg.Rag.CallTimeoutSeconds) * time.Second,
		DefaultMaxSources: cfg.Rag.DefaultMaxSources,
		RetrievalFan:      cfg.Rag.RetrievalFan,
	}
	orchestrator := rag.NewOrchestrator(outputRepo, sourceRepo, retrieval, resolver, assembler, llm, orchestratorCfg)
	synthesizer := rag.NewSynthesizer(retrieval, assembler, llm, orchestratorCfg)

	store, err := filestore.New(cfg.FileStore.Type, cfg.FileStore.Data)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	notebookService := service.NewNotebookService(notebookRepo, index)
	sourceService := service.NewSourceService(notebookRepo, sourceRepo, index, store)
	outputService := service.NewOutputService(notebookRepo, sourceRepo, outputRepo, indexer, retrieval, orchestrator, synthesizer)
	templateService := service.NewTemplateService(templateRepo)

	deps := handler.RouterDeps{
		Notebooks: handler.NewNotebookHandler(notebookService),
		Sources:   handler.NewSourceHandler(sourceService),
		Outputs:   handler.NewOutputHandler(outputService),
		Qa:        handler.NewQaHandler(outputService),
		Templates: handler.NewTemplateHandler(templateService),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestLog(),
		middleware.CORS(cfg.CORSOrigins),
		middleware.RateLimit(time.Duration(cfg.RateLimitMs)*time.Millisecond),
		gzip.Gzip(gzip.DefaultCompression),
	)
	handler.RegisterRoutes(engine.Group("/api/v1"), deps)

	scheduler := schedule.NewCronScheduler()
	reconcile := job.NewGenerationReconcileJob(outputRepo, cfg.Jobs.GeneratingTimeoutSeconds)
	if err := scheduler.AddJob(reconcile, cfg.Jobs.ReconcileSpec); err != nil {
		return fmt.Errorf("schedule reconcile job: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	scheduler.Start(ctx)

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: engine}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
