// File: cmd/app/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-agent-pipeline/internal/config"
	"ai-agent-pipeline/internal/domain/ports/adapter"
	"ai-agent-pipeline/internal/domain/ports/repository"
	ports "ai-agent-pipeline/internal/domain/ports/usecase"
	aiAdapters "ai-agent-pipeline/internal/infra/adapters/ai"
	"ai-agent-pipeline/internal/infra/adapters/retrieval"
	"ai-agent-pipeline/internal/infra/checkpoint"
	pg "ai-agent-pipeline/internal/infra/db/postgres"
	"ai-agent-pipeline/internal/infra/logging"
	"ai-agent-pipeline/internal/infra/metrics"
	red "ai-agent-pipeline/internal/infra/redis"
	"ai-agent-pipeline/internal/infra/sched"
	"ai-agent-pipeline/internal/infra/web"
	"ai-agent-pipeline/internal/infra/worker"
	"ai-agent-pipeline/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI provider)")
	workflow := flag.String("workflow", "", "run this workflow once and exit")
	topic := flag.String("topic", "", "topic for the one-shot workflow run")
	ingestPath := flag.String("ingest", "", "directory of documents for the research agent")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()

	// ---- AI providers (ollama -> gemini -> openai) ----
	var providers []adapter.ProviderAdapter
	limiters := make(map[string]*aiAdapters.SlidingWindowLimiter)
	addProvider := func(p adapter.ProviderAdapter, rpm int) {
		if rpm <= 0 {
			rpm = 60
		}
		providers = append(providers, p)
		limiters[p.Name()] = aiAdapters.NewSlidingWindowLimiter(p.Name(), rpm, cfg.AI.MaxWait, logger)
	}
	if cfg.Runtime.Dev {
		addProvider(aiAdapters.NewNoopProvider(), 600)
	} else {
		if cfg.AI.Ollama.Enabled {
			p, err := aiAdapters.NewOllamaAdapter(cfg.AI.Ollama)
			if err != nil {
				log.Fatalf("ollama adapter: %v", err)
			}
			addProvider(p, cfg.AI.Ollama.RequestsPerMinute)
		}
		if cfg.AI.Gemini.Enabled {
			p, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.Gemini)
			if err != nil {
				log.Fatalf("gemini adapter: %v", err)
			}
			addProvider(p, cfg.AI.Gemini.RequestsPerMinute)
		}
		if cfg.AI.OpenAI.Enabled {
			p, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAI)
			if err != nil {
				log.Fatalf("openai adapter: %v", err)
			}
			addProvider(p, cfg.AI.OpenAI.RequestsPerMinute)
		}
	}

	cache := aiAdapters.NewResponseCache(cfg.AI.Cache.Path, cfg.AI.Cache.TTL, logger)
	llm := aiAdapters.NewResilientClient(providers, cfg.AI.PreferredProvider, limiters, cache, logger)
	logger.Info().Strs("providers", llm.Providers()).Msg("AI client ready")

	// ---- Checkpoint store ----
	var store repository.CheckpointStore
	switch cfg.Checkpoints.Backend {
	case "redis":
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
		store = checkpoint.NewRedisStore(redisClient, logger)
	default:
		fs, err := checkpoint.NewFileStore(cfg.Checkpoints.Dir, logger)
		if err != nil {
			log.Fatalf("checkpoint store: %v", err)
		}
		store = fs
	}
	manager := usecase.NewCheckpointManager(store, logger)

	// ---- Retrieval ----
	retriever := retrieval.NewLocalRetriever(logger)
	if *ingestPath != "" {
		if _, err := retriever.Ingest(ctx, *ingestPath); err != nil {
			log.Fatalf("ingest: %v", err)
		}
	}

	// ---- Agents and engines ----
	factory := usecase.NewAgentFactory(usecase.AgentDeps{
		LLM:       llm,
		Retrieval: retriever,
		Log:       logger,
	})
	usecase.RegisterBuiltinAgents(factory)

	pool := worker.NewPool(cfg.Engine.Workers, logger)
	pool.Start(ctx)
	defer pool.Stop()

	seq := usecase.NewPipelineUseCase(factory, llm, manager, cfg.Engine.StepTimeout, logger)
	var engine ports.PipelineRunner
	switch cfg.Engine.Mode {
	case "parallel":
		engine = usecase.NewParallelUseCase(seq, pool, logger)
	case "mesh":
		// no external mesh router is wired here; the use case falls back
		engine = usecase.NewMeshUseCase(nil, seq, logger)
	default:
		engine = seq
	}

	// ---- Optional job archive ----
	var archive repository.JobArchive
	if cfg.Database.URL != "" {
		dbPool, err := pg.Connect(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer dbPool.Close()
		archive = pg.NewJobArchiveRepo(dbPool)
	}

	// ---- One-shot mode ----
	if *workflow != "" {
		runOnce(ctx, engine, archive, cfg, *workflow, *topic)
		return
	}

	// ---- Janitor ----
	go func() {
		janitor := sched.NewCheckpointJanitor(cfg.Checkpoints.JanitorInterval, cfg.Checkpoints.KeepLast, manager, logger)
		_ = janitor.Run(ctx)
	}()

	// ---- Ops server ----
	port := cfg.Admin.Port
	if port == 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: web.NewServer(manager, archive, cfg.Admin.APIKey, logger).Router(),
	}
	go func() {
		logger.Info().Int("port", port).Msg("ops server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("ops server error")
			cancel()
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

func runOnce(ctx context.Context, engine ports.PipelineRunner, archive repository.JobArchive, cfg *config.Config, workflow, topic string) {
	steps, ok := cfg.Workflows[workflow]
	if !ok {
		log.Fatalf("unknown workflow %q (configured: %d)", workflow, len(cfg.Workflows))
	}

	job, err := engine.Run(ctx, ports.RunRequest{
		WorkflowName: workflow,
		Steps:        steps,
		InitialInput: map[string]any{"topic": topic},
	})
	if err != nil {
		log.Fatalf("run: %v", err)
	}
	if archive != nil {
		if err := archive.Save(ctx, job); err != nil {
			log.Printf("archive: %v", err)
		}
	}
	out, _ := json.MarshalIndent(job, "", "  ")
	fmt.Println(string(out))
}
