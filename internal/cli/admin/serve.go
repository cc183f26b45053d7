package admin

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/vocabtool/internal/api/handlers"
	"github.com/cloo-solutions/vocabtool/internal/api/middleware"
	"github.com/cloo-solutions/vocabtool/internal/config"
	"github.com/cloo-solutions/vocabtool/internal/database"
	"github.com/cloo-solutions/vocabtool/internal/jobs"
	"github.com/cloo-solutions/vocabtool/internal/loader"
	"github.com/cloo-solutions/vocabtool/internal/lookupclient"
	"github.com/cloo-solutions/vocabtool/internal/openai"
	"github.com/cloo-solutions/vocabtool/internal/oracle"
	"github.com/cloo-solutions/vocabtool/internal/oracle/langchain"
	"github.com/cloo-solutions/vocabtool/internal/registry"
	"github.com/cloo-solutions/vocabtool/internal/repository"
	"github.com/cloo-solutions/vocabtool/internal/server"
	"github.com/cloo-solutions/vocabtool/internal/service"
	"github.com/cloo-solutions/vocabtool/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the vocabulary lookup and resolution API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-load", false, "Skip building missing indexes on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(cfg)

	if cfg.SentryDSN != "" {
		// 10% sampling in production, everything in development
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
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

	reg, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	defer reg.Close()

	l, err := newLoader(ctx, cfg)
	if err != nil {
		return err
	}

	reloader := jobs.NewReloadProcessor(reg, l)
	noLoad, _ := cmd.Flags().GetBool("no-load")
	if !noLoad {
		loadMissing(ctx, reg, l, reloader)
	}

	var reloadWorker *jobs.Worker
	if cfg.ReloadInterval > 0 {
		reloadWorker = jobs.NewWorker(reloader, cfg.ReloadInterval)
		go reloadWorker.Start(ctx)
		log.Printf("vocabulary reloader started (every %s)", cfg.ReloadInterval)
	}

	lookupSvc := service.NewLookupService(reg, service.LookupConfig{
		DefaultLimit: cfg.DefaultPageSize,
		MaxLimit:     cfg.MaxPageSize,
		Cutoff:       cfg.RelevanceCutoff,
	})

	var lookuper service.Lookuper = lookupSvc
	if cfg.HasRemoteLookup() {
		lookuper = lookupclient.New(cfg.LookupURL, cfg.LookupToken, cfg.LookupTimeout)
		log.Printf("resolution uses remote lookup at %s", cfg.LookupURL)
	}

	var resolutionLog service.ResolutionLogRepository
	if cfg.HasDatabase() {
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
		log.Println("connected to database")

		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate {
			if _, err := database.Migrate(cfg.DatabaseURL); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		resolutionLog = repository.NewResolutionLogRepository(pool)
	}

	evaluator, err := newOracle(cfg)
	if err != nil {
		return err
	}

	grades, err := cfg.Grades()
	if err != nil {
		return err
	}
	candidateGrades, err := cfg.CandidateGradeList()
	if err != nil {
		return err
	}
	resolutionSvc := service.NewResolutionService(lookuper, evaluator, resolutionLog, service.ResolutionConfig{
		MaxAttempts:         cfg.MaxAttempts,
		AcceptableGrades:    grades,
		CandidateGrades:     candidateGrades,
		LookupTimeout:       cfg.LookupTimeout,
		OracleTimeout:       cfg.OracleTimeout,
		PageSize:            cfg.DefaultPageSize,
		RequireDisplayMatch: cfg.RequireDisplayMatch,
	})

	var batch handlers.BatchResolver
	if evaluator != nil {
		batchResolver, err := service.NewBatchResolver(resolutionSvc, cfg.BatchConcurrency)
		if err != nil {
			return fmt.Errorf("failed to create batch resolver: %w", err)
		}
		defer batchResolver.Release()
		batch = batchResolver
	}

	routerCfg := server.RouterConfig{
		LookupHandler:  handlers.NewLookupHandler(lookupSvc),
		ResolveHandler: handlers.NewResolveHandler(resolutionSvc, batch, cfg.MaxBatch),
	}
	if cfg.APIToken != "" {
		routerCfg.TokenValidator = middleware.StaticToken(cfg.APIToken)
	}

	router := server.NewRouter(routerCfg)

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

	if reloadWorker != nil {
		reloadWorker.Stop()
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// loadMissing builds every unbuilt index that has a source and seeds the
// reloader with the fingerprint each ready index stands for.
func loadMissing(ctx context.Context, reg *registry.Registry, l *loader.Loader, reloader *jobs.ReloadProcessor) {
	for _, v := range reg.Vocabularies() {
		name := v.System.Name
		if v.System.Source == "" {
			continue
		}
		if v.Index.Ready() {
			fp, err := l.Fingerprint(ctx, v)
			if err != nil {
				log.Printf("%s: cannot fingerprint source: %v", name, err)
				continue
			}
			reloader.Seed(name, fp)
			continue
		}

		result, err := l.Load(ctx, v)
		if err != nil {
			log.Printf("%s: initial load failed (index unavailable): %v", name, err)
			continue
		}
		reloader.Seed(name, result.Fingerprint)
		log.Printf("%s: indexed %d entries", name, result.Index.Entries)
	}
}

// newOracle returns the configured oracle, rate limited, or nil when none is.
func newOracle(cfg *config.Config) (oracle.Oracle, error) {
	var o oracle.Oracle
	switch cfg.Oracle() {
	case config.OracleOpenAI:
		o = openai.NewClientWithConfig(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
		log.Println("oracle: openai")
	case config.OracleLangchain:
		lc, err := langchain.New(cfg.LLMHost, cfg.LLMModel, cfg.LLMToken)
		if err != nil {
			return nil, fmt.Errorf("failed to create oracle: %w", err)
		}
		o = lc
		log.Printf("oracle: %s at %s", cfg.LLMModel, cfg.LLMHost)
	default:
		log.Println("no oracle configured, /resolve disabled")
		return nil, nil
	}
	return oracle.NewRateLimited(o, cfg.OracleRPS, cfg.OracleBurst), nil
}
