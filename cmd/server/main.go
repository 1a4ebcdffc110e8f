// Package main runs the live analysis service: ticks from a websocket or
// kafka feed are aggregated into bars, stored, optionally republished, and
// every flush refreshes the cached multi-timeframe snapshot per symbol.
// HTTP endpoints expose health, prometheus metrics, status and the latest
// analysis.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"drummond-lab/internal/aggregator"
	"drummond-lab/internal/cache"
	"drummond-lab/internal/config"
	"drummond-lab/internal/feed"
	"drummond-lab/internal/observability"
	"drummond-lab/internal/pipeline"
	"drummond-lab/internal/storage"
	chstore "drummond-lab/internal/storage/clickhouse"
	"drummond-lab/internal/storage/memory"
	"drummond-lab/internal/storage/migrations"
)

// Server wires the feed, aggregator, pipeline and HTTP surface together.
type Server struct {
	cfg  *config.Config
	pipe *pipeline.Pipeline
	agg  *aggregator.Aggregator
	log  zerolog.Logger

	mu            sync.Mutex
	started       time.Time
	lastFlush     time.Time
	flushes       int
	ticksAccepted int64
	feedErrors    int
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	source := flag.String("source", "websocket", "Tick source (websocket, kafka)")
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if cfg.Environment == "development" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout}).Level(zerolog.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	barStore, stateStore, cleanupStores, err := buildStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create stores")
	}
	defer cleanupStores()

	snapshotCache, err := buildCache(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create cache")
	}
	defer snapshotCache.Close()

	var sink pipeline.BarSink
	if cfg.Kafka.Enabled {
		publisher, err := feed.NewBarPublisher(kafkaConfig(cfg))
		if err != nil {
			log.Fatal().Err(err).Msg("create bar publisher")
		}
		defer publisher.Close()
		sink = publisher
	}

	agg, err := aggregator.New(cfg.Aggregation.Interval)
	if err != nil {
		log.Fatal().Err(err).Msg("create aggregator")
	}

	pipeCfg := pipeline.DefaultConfig()
	pipeCfg.BaseInterval = cfg.Aggregation.Interval
	pipeCfg.TradingInterval = cfg.Analysis.TradingInterval
	pipeCfg.HigherInterval = cfg.Analysis.HigherInterval

	server := &Server{
		cfg:     cfg,
		pipe:    pipeline.New(pipeCfg, agg, barStore, stateStore, snapshotCache, sink, log),
		agg:     agg,
		log:     log,
		started: time.Now(),
	}

	tickSource, err := buildTickSource(cfg, *source, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create tick source")
	}
	defer tickSource.Close()

	httpServer := server.startHTTP()

	runErr := server.Run(ctx, tickSource)

	// Drain whatever is still pending before exiting.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if _, err := server.pipe.Flush(shutdownCtx, math.MaxInt64); err != nil {
		log.Error().Err(err).Msg("final flush")
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Fatal().Err(runErr).Msg("server stopped")
	}
	log.Info().Msg("shutdown complete")
}

// Run consumes the tick source until the context is cancelled, flushing
// completed buckets on the configured interval and reconnecting the feed
// on read failures.
func (s *Server) Run(ctx context.Context, source feed.TickSource) error {
	if err := source.Connect(ctx); err != nil {
		return fmt.Errorf("connect feed: %w", err)
	}
	s.log.Info().Strs("symbols", s.cfg.Feed.Symbols).Msg("feed connected")

	ticker := time.NewTicker(s.cfg.Aggregation.FlushInterval)
	defer ticker.Stop()

	ticks, errs := source.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case tick, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			if err := s.pipe.HandleTick(tick); err != nil {
				s.log.Warn().Err(err).Str("symbol", tick.Symbol).Msg("tick rejected")
				continue
			}
			s.mu.Lock()
			s.ticksAccepted++
			s.mu.Unlock()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.mu.Lock()
			s.feedErrors++
			s.mu.Unlock()
			observability.RecordFeedError("read")
			s.log.Warn().Err(err).Msg("feed error, reconnecting")

			if err := s.reconnect(ctx, source); err != nil {
				return err
			}
			ticks, errs = source.Read(ctx)

		case <-ticker.C:
			cutoff := s.agg.AlignToInterval(time.Now().UnixMilli())
			if _, err := s.pipe.Flush(ctx, cutoff); err != nil {
				s.log.Error().Err(err).Msg("flush failed")
				continue
			}
			s.mu.Lock()
			s.lastFlush = time.Now()
			s.flushes++
			s.mu.Unlock()
		}
	}
}

// reconnect re-dials the feed with the configured delay until it succeeds
// or the context ends.
func (s *Server) reconnect(ctx context.Context, source feed.TickSource) error {
	for {
		_ = source.Close()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.Feed.ReconnectDelay):
		}
		if err := source.Connect(ctx); err != nil {
			observability.RecordReconnect()
			s.log.Warn().Err(err).Msg("reconnect failed, retrying")
			continue
		}
		observability.RecordReconnect()
		s.log.Info().Msg("feed reconnected")
		return nil
	}
}

// startHTTP starts the health/metrics/status endpoints.
func (s *Server) startHTTP() *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.cfg.Metrics.Enabled {
		mux.Handle(s.cfg.Metrics.Path, observability.Handler())
	}
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/analysis", s.handleAnalysis)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("http server")
		}
	}()
	return srv
}

// StatusResponse is the JSON payload of /status.
type StatusResponse struct {
	Status        string    `json:"status"`
	Uptime        string    `json:"uptime"`
	Symbols       []string  `json:"symbols"`
	TicksAccepted int64     `json:"ticks_accepted"`
	PendingBars   int       `json:"pending_bars"`
	Flushes       int       `json:"flushes"`
	LastFlush     time.Time `json:"last_flush,omitempty"`
	FeedErrors    int       `json:"feed_errors"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	stats := s.agg.GetStats()

	s.mu.Lock()
	resp := StatusResponse{
		Status:        "running",
		Uptime:        time.Since(s.started).String(),
		Symbols:       s.cfg.Feed.Symbols,
		TicksAccepted: s.ticksAccepted,
		PendingBars:   stats.PendingBars,
		Flushes:       s.flushes,
		LastFlush:     s.lastFlush,
		FeedErrors:    s.feedErrors,
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleAnalysis serves the latest cached snapshot for ?symbol=X.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(w, "symbol query parameter is required", http.StatusBadRequest)
		return
	}

	analysis, err := s.pipe.LatestAnalysis(r.Context(), symbol)
	if errors.Is(err, cache.ErrCacheMiss) {
		http.Error(w, "no analysis available", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(analysis)
}

// buildStores selects clickhouse-backed stores when a DSN is configured,
// in-memory stores otherwise.
func buildStores(ctx context.Context, cfg *config.Config) (storage.BarStore, storage.StateStore, func(), error) {
	if cfg.Clickhouse.DSN == "" {
		return memory.NewBarStore(), memory.NewStateStore(), func() {}, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Clickhouse.DSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	return chstore.NewBarStore(conn), chstore.NewStateStore(conn), func() { conn.Close() }, nil
}

// buildCache selects redis when enabled, in-process memory otherwise.
func buildCache(cfg *config.Config) (cache.Cache, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	return cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// buildTickSource selects the configured tick source.
func buildTickSource(cfg *config.Config, source string, log zerolog.Logger) (feed.TickSource, error) {
	switch source {
	case "websocket":
		return feed.NewWSClient(feed.WSConfig{
			URL:            cfg.Feed.WebSocketURL,
			APIKey:         cfg.Feed.APIKey,
			Symbols:        cfg.Feed.Symbols,
			ReconnectDelay: cfg.Feed.ReconnectDelay,
			PingInterval:   cfg.Feed.PingInterval,
		}, log), nil
	case "kafka":
		if !cfg.Kafka.Enabled {
			return nil, fmt.Errorf("kafka source requires kafka.enabled")
		}
		return feed.NewKafkaTickSource(kafkaConfig(cfg), log)
	default:
		return nil, fmt.Errorf("unknown tick source %q", source)
	}
}

func kafkaConfig(cfg *config.Config) feed.KafkaConfig {
	return feed.KafkaConfig{
		Brokers:   cfg.Kafka.Brokers,
		TickTopic: cfg.Kafka.TickTopic,
		BarTopic:  cfg.Kafka.BarTopic,
		GroupID:   cfg.Kafka.GroupID,
	}
}
