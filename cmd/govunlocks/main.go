// Package main provides the entry point of the governance unlocks service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"governance-unlocks/internal/api"
	"governance-unlocks/internal/cache"
	"governance-unlocks/internal/chainhead"
	"governance-unlocks/internal/config"
	"governance-unlocks/internal/governance"
	"governance-unlocks/internal/logger"
	"governance-unlocks/internal/metrics"
	"governance-unlocks/internal/scheduler"
	"governance-unlocks/internal/snapshot"
	"governance-unlocks/internal/tracks"
	"governance-unlocks/internal/tui"

	dbpkg "governance-unlocks/internal/db"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	tuiChannelBufferSize = 256
	tuiCloseDelay        = time.Second
)

func main() {
	// Try to load .env from CWD if present; otherwise use environment as-is
	if _, statErr := os.Stat(".env"); statErr == nil {
		_ = godotenv.Load(".env")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	// With the TUI on, debug logs go to a file so they do not garble the screen
	var logWriter io.Writer = os.Stderr
	if cfg.Debug && cfg.TUI {
		logFile, err := os.OpenFile("govunlocks.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			logWriter = logFile
			fmt.Fprintf(os.Stderr, "Debug logs written to govunlocks.log\n")
		} else {
			fmt.Fprintf(os.Stderr, "Warning: failed to open log file, logs will go to stderr (may interfere with TUI): %v\n", err)
		}
	}
	log := logger.NewWithWriter(cfg.Debug, logWriter)

	fmt.Printf("Governance unlocks starting...\n")
	fmt.Printf("Config loaded: %s\n", cfg.DebugString())

	gormDB, err := dbpkg.Open(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if gormDB != nil {
		log.Printf("DB connected")
		if err := dbpkg.AutoMigrate(gormDB); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		log.Printf("Migrations applied")
	} else {
		log.Printf("DATABASE_URL not provided – persistence disabled")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scheduleCache := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.CacheTTL)
	if err := scheduleCache.Ping(ctx); err != nil {
		log.Printf("redis unreachable, continuing without cache: %v", err)
		_ = scheduleCache.Close()
		scheduleCache = nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	follower := chainhead.NewFollower(cfg, log.With("component", "chainhead"))

	opts := scheduler.Options{
		Source:          newSource(cfg),
		Tracks:          tracks.NewResolver(cfg.TracksURL, 0, log.With("component", "tracks")),
		Store:           dbpkg.NewStore(gormDB),
		Cache:           scheduleCache,
		Metrics:         metrics.New(reg),
		Log:             log.With("component", "scheduler"),
		Accounts:        cfg.Accounts,
		RefreshInterval: cfg.RefreshInterval,
	}
	if follower != nil {
		opts.Head = follower
	}
	svc := scheduler.New(opts)
	follower.OnHead(svc.OnHead)

	var srv *http.Server
	if cfg.HTTPAddr != "" {
		srv = &http.Server{
			Addr: cfg.HTTPAddr,
			Handler: api.NewServer(svc, api.Options{
				Gatherer:      reg,
				Log:           log.With("component", "api"),
				TokenDecimals: cfg.TokenDecimals,
				TokenSymbol:   cfg.TokenSymbol,
				BlockTime:     cfg.BlockTime,
			}).Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Printf("HTTP API listening on %s", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("http server stopped: %v", err)
				cancel()
			}
		}()
	}

	var tuiDone chan struct{}
	if cfg.TUI {
		tuiDone = make(chan struct{})
		tuiUpdateCh := make(chan interface{}, tuiChannelBufferSize)
		results := svc.Subscribe()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case res := <-results:
					select {
					case tuiUpdateCh <- res:
					default:
					}
				}
			}
		}()
		follower.OnHead(func(h governance.BlockNumber) {
			select {
			case tuiUpdateCh <- h:
			default:
			}
		})

		go func() {
			defer close(tuiDone)
			if err := tui.Run(ctx, tuiUpdateCh, tui.Options{
				TokenDecimals: cfg.TokenDecimals,
				TokenSymbol:   cfg.TokenSymbol,
				BlockTime:     cfg.BlockTime,
			}); err != nil {
				log.Printf("TUI error: %v", err)
			}
			// TUI exited, cancel context to trigger shutdown
			cancel()
		}()
	}

	if follower != nil {
		go func() {
			if err := follower.Run(ctx); err != nil {
				log.Printf("chain head follower stopped: %v", err)
			}
		}()
	} else {
		log.Printf("RPC_URL not provided – using snapshot block heights")
	}

	go func() {
		if err := svc.Run(ctx); err != nil {
			log.Printf("scheduler stopped: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	if srv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown error: %v", err)
		}
		stop()
	}
	if err := follower.Close(); err != nil {
		log.Printf("close error: %v", err)
	}
	if err := scheduleCache.Close(); err != nil {
		log.Printf("cache close error: %v", err)
	}

	if tuiDone != nil {
		// Give the TUI a moment to restore the terminal
		select {
		case <-tuiDone:
		case <-time.After(tuiCloseDelay):
		}
	}

	_ = log.Sync()
	_ = os.Stderr.Sync()
	_ = os.Stdout.Sync()
}

func newSource(cfg config.Config) snapshot.Source {
	if cfg.SnapshotDir != "" {
		return snapshot.NewFileSource(cfg.SnapshotDir)
	}
	return snapshot.NewHTTPSource(cfg.SnapshotURL, &http.Client{Timeout: 10 * time.Second})
}
