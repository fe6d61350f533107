package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"minerva/backend/go/internal/api"
	"minerva/backend/go/internal/config"
	"minerva/backend/go/internal/database/kafka"
	"minerva/backend/go/internal/database/minio"
	"minerva/backend/go/internal/database/redis"
	"minerva/backend/go/internal/database/sqldb"
	"minerva/backend/go/internal/embedding"
	"minerva/backend/go/internal/history"
	"minerva/backend/go/internal/llm"
	"minerva/backend/go/internal/memory/consumer"
	"minerva/backend/go/internal/memory/extractor"
	"minerva/backend/go/internal/memory/service"
	"minerva/backend/go/internal/memory/store"
	"minerva/backend/go/internal/prompts"
	"minerva/backend/go/internal/rag/archive"
	"minerva/backend/go/internal/rag/catalog"
	"minerva/backend/go/internal/rag/pipeline"
	"minerva/backend/go/internal/rag/splitters"
	"minerva/backend/go/internal/router"
	"minerva/backend/go/internal/vectorstore"
	"minerva/backend/go/internal/websearch"
	"minerva/backend/go/pkg/logger"

	goredis "github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// app holds every wired component of one process.
type app struct {
	cfg     *config.AppConfig
	log     *logger.Logger
	db      *gorm.DB
	llm     *llm.Guarded
	prompts prompts.Store
	history history.Store
	engine  *pipeline.Engine
	memory  *service.MemoryService
	router  *router.Router

	queue    consumer.Queue
	kafka    *kafka.Client
	consumer *consumer.KafkaConsumer
	inproc   *consumer.InProcessQueue
	closers  []func() error
	// checks back /healthz, one per backend in use.
	checks []api.Check
}

type logMode int

const (
	logStdout logMode = iota
	// logQuiet keeps stdout for the user or the MCP protocol.
	logQuiet
)

// newApp loads the configuration and builds the full dependency graph.
// Background fact extraction starts only after startWorkers.
func newApp(ctx context.Context, mode logMode) (*app, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}
	if err := a.initLogger(mode); err != nil {
		return nil, err
	}
	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// checkLLM fails fast when the completion backend cannot be reached. Commands
// that never generate skip it.
func (a *app) checkLLM(ctx context.Context) error {
	if a.cfg.LLM.SkipStartupPing {
		return nil
	}
	if err := llm.CheckReachable(ctx, a.llm, 5*time.Second); err != nil {
		return fmt.Errorf("%s provider at startup: %w", a.cfg.LLM.Provider, err)
	}
	return nil
}

func (a *app) initLogger(mode logMode) error {
	logger.Init(logger.ParseLevel(a.cfg.Logger.Level))
	if mode == logQuiet {
		var out io.Writer = os.Stderr
		if path := a.cfg.Logger.File; path != "" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("create log directory: %w", err)
			}
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			a.closers = append(a.closers, f.Close)
			out = f
		}
		logger.SetOutput(out)
	}
	a.log = logger.New(a.cfg.App.Name, "", "")
	return nil
}

func (a *app) wire(ctx context.Context) error {
	cfg, log := a.cfg, a.log

	db, err := sqldb.Open(cfg.Databases.SQL, log)
	if err != nil {
		return err
	}
	a.db = db
	a.closers = append(a.closers, func() error { return sqldb.Close(db) })
	a.addCheck("sql", func(ctx context.Context) error { return sqldb.HealthCheck(ctx, db) })

	ps, err := prompts.New(ctx, cfg.Prompts, db, log.WithComponent("prompts"))
	if err != nil {
		return err
	}
	if err := prompts.Require(ctx, ps, prompts.Required); err != nil {
		return err
	}
	a.prompts = ps

	hs, err := history.NewGormStore(db)
	if err != nil {
		return err
	}
	a.history = hs

	provider, err := llm.NewProvider(ctx, cfg.LLM, log.WithComponent("llm"))
	if err != nil {
		return err
	}
	a.llm = provider
	a.addCheck("llm", func(ctx context.Context) error { return llm.CheckReachable(ctx, provider, 5*time.Second) })

	var rdb *goredis.Client
	if cfg.Embedding.Cache.Enabled && cfg.Embedding.Cache.Redis {
		rdb, err = redis.New(ctx, cfg.Databases.Redis, log)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, rdb.Close)
		a.addCheck("redis", func(ctx context.Context) error { return redis.HealthCheck(ctx, rdb) })
	}
	emb, err := embedding.NewEmbedder(ctx, cfg.Embedding, rdb, cfg.Databases.Redis.KeyPrefix, log.WithComponent("embedding"))
	if err != nil {
		return err
	}

	index, err := vectorstore.New(ctx, cfg, log.WithComponent("vectorstore"))
	if err != nil {
		return err
	}
	a.addCheck("vectorstore", func(ctx context.Context) error { return vectorstore.HealthCheck(ctx, index) })

	if err := a.wireEngine(ctx, emb, index); err != nil {
		return err
	}
	if err := a.wireMemory(emb, index); err != nil {
		return err
	}

	web, err := websearch.New(cfg.WebSearch, cfg.Location(), log.WithComponent("websearch"))
	if err != nil {
		return err
	}

	options := []router.Option{router.WithWebSearch(web), router.WithLogger(log)}
	if a.memory != nil {
		options = append(options, router.WithMemory(a.memory), router.WithQueue(a.queue))
	}
	a.router = router.New(provider, ps, hs, a.engine, router.OptionsFromConfig(cfg), options...)
	return nil
}

func (a *app) addCheck(name string, run func(ctx context.Context) error) {
	a.checks = append(a.checks, api.Check{Name: name, Run: run})
}

func (a *app) wireEngine(ctx context.Context, emb embedding.Embedder, index vectorstore.Index) error {
	cfg, log := a.cfg, a.log.WithComponent("rag")

	splitter, err := splitters.NewCharSplitter(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		return err
	}
	cat, err := catalog.New(a.db)
	if err != nil {
		return err
	}
	options := []pipeline.Option{pipeline.WithCatalog(cat), pipeline.WithLogger(log)}
	if cfg.Databases.MinIO.Enabled {
		mc, err := minio.New(ctx, cfg.Databases.MinIO, log)
		if err != nil {
			return err
		}
		options = append(options, pipeline.WithArchive(archive.NewMinIO(mc, cfg.Databases.MinIO.Bucket, log)))
		a.addCheck("minio", func(ctx context.Context) error { return minio.HealthCheck(ctx, mc) })
	}
	a.engine = pipeline.NewEngine(splitter, emb, index, pipeline.OptionsFromConfig(cfg), options...)
	return nil
}

func (a *app) wireMemory(emb embedding.Embedder, index vectorstore.Index) error {
	cfg := a.cfg
	if !cfg.Memory.Enabled {
		return nil
	}
	log := a.log.WithComponent("memory")

	facts, err := store.NewVectorStore(index, cfg.VectorStore.Collections.Facts, a.db, log)
	if err != nil {
		return err
	}
	ext := extractor.NewLLMExtractor(a.llm, a.prompts,
		extractor.WithTemperature(cfg.Memory.Temperature),
		extractor.WithTimeout(config.Duration(cfg.Memory.Timeout, 30*time.Second)),
		extractor.WithLogger(log),
	)
	a.memory = service.NewMemoryService(ext, emb, facts, service.Options{
		ExtractionInterval: cfg.Memory.ExtractionInterval,
		MinScore:           cfg.Memory.MinScore,
	}, log)

	q := cfg.Memory.Queue
	switch q.Backend {
	case "kafka":
		client, err := kafka.New(cfg.Databases.Kafka, log)
		if err != nil {
			return err
		}
		a.kafka = client
		a.addCheck("kafka", client.HealthCheck)
		kq := consumer.NewKafkaQueue(client, q.Topic)
		a.queue = kq
		a.closers = append(a.closers, kq.Close, client.Close)
	default:
		a.inproc = consumer.NewInProcessQueue(q.Size, q.Workers, log)
		a.queue = a.inproc
	}
	return nil
}

// startWorkers runs fact extraction until ctx is done.
func (a *app) startWorkers(ctx context.Context) {
	if a.memory == nil {
		return
	}
	if a.inproc != nil {
		a.inproc.Start(ctx, a.memory)
		return
	}
	if a.kafka != nil {
		a.consumer = consumer.NewKafkaConsumer(a.kafka, a.cfg.Memory.Queue.Topic, a.memory, a.log.WithComponent("memory"))
		a.consumer.Start(ctx)
	}
}

// stopWorkers waits for the workers stopped by ctx cancellation and extracts
// whatever exchanges are still buffered.
func (a *app) stopWorkers(timeout time.Duration) {
	if a.memory == nil {
		return
	}
	if a.inproc != nil {
		a.inproc.Wait()
	}
	if a.consumer != nil {
		<-a.consumer.Done()
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.memory.Flush(ctx); err != nil {
		a.log.WithErr(err).Warn("pending exchanges not extracted on shutdown")
	}
}

func (a *app) close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil && a.log != nil {
		a.log.WithErr(err).Warn("shutdown finished with errors")
	}
}
