package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/formcheck/formcheck/agent/internal/config"
	"github.com/formcheck/formcheck/agent/internal/security"
	"github.com/formcheck/formcheck/agent/internal/session"
	"github.com/formcheck/formcheck/agent/internal/shipper"
	"github.com/formcheck/formcheck/agent/internal/source"
	"github.com/formcheck/formcheck/pkg/pose"
)

// flushTimeout bounds how long the agent waits for buffered records once
// every session has ended.
const flushTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "log level: debug | info | warn | error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("formcheck-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"sessions", len(cfg.Agent.Sessions),
	)

	poseCfg, err := cfg.Analysis.Build()
	if err != nil {
		slog.Error("invalid analysis config", "err", err)
		os.Exit(1)
	}
	analyzer, err := pose.NewAnalyzer(poseCfg)
	if err != nil {
		slog.Error("failed to build analyzer", "err", err)
		os.Exit(1)
	}
	engine := pose.NewEngine(analyzer)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Certificate problems are reported, not fatal.
	go security.Audit(ctx, cfg.Agent)

	ship := shipper.New(cfg.Agent)
	shipCtx, stopShip := context.WithCancel(context.Background())
	defer stopShip()
	go ship.Run(shipCtx)

	runners := make(map[string]*session.Runner, len(cfg.Agent.Sessions))
	for _, sess := range cfg.Agent.Sessions {
		src, err := source.New(sess, cfg.Agent.PollInterval)
		if err != nil {
			slog.Error("skipping session, could not open source", "session", sess.ID, "err", err)
			continue
		}
		runners[sess.ID] = session.New(sess, src, engine, ship)
		slog.Info("registered session",
			"id", sess.ID,
			"exercise", sess.Exercise,
			"source", sess.Source.Type,
			"zones", len(sess.Zones),
		)
	}

	if len(runners) == 0 {
		slog.Warn("no sessions configured, agent will idle")
	}

	// Hot reload: thresholds, tables and per-session zones apply to the next
	// frame. Adding or removing sessions needs a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			reload(engine, runners, updated)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	var wg sync.WaitGroup
	for _, r := range runners {
		wg.Add(1)
		go func(r *session.Runner) {
			defer wg.Done()
			if err := r.Run(ctx); err != nil {
				slog.Error("session ended with error", "session", r.ID(), "err", err)
			}
		}(r)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		slog.Info("formcheck-agent shutting down")
	case <-done:
		if len(runners) == 0 {
			<-ctx.Done()
			break
		}
		slog.Info("all sessions ended, flushing records")
		flush(ctx, ship)
	}

	stats := ship.Stats()
	slog.Info("formcheck-agent stopped",
		"delivered", stats.Delivered,
		"dropped", stats.Dropped,
		"unsent", stats.Buffered,
	)
}

// reload applies a new configuration to the running engine and sessions.
func reload(engine *pose.Engine, runners map[string]*session.Runner, cfg *config.Config) {
	poseCfg, err := cfg.Analysis.Build()
	if err != nil {
		slog.Error("config reload: invalid analysis config, keeping previous", "err", err)
		return
	}
	analyzer, err := pose.NewAnalyzer(poseCfg)
	if err != nil {
		slog.Error("config reload: keeping previous analyzer", "err", err)
		return
	}
	engine.SetAnalyzer(analyzer)

	for _, sess := range cfg.Agent.Sessions {
		r, ok := runners[sess.ID]
		if !ok {
			slog.Warn("config reload: new session ignored until restart", "session", sess.ID)
			continue
		}
		r.Update(sess)
	}
	slog.Info("config hot-reloaded", "sessions", len(cfg.Agent.Sessions))
}

// flush waits until the shipper buffer is empty, ctx is cancelled or
// flushTimeout passes.
func flush(ctx context.Context, ship *shipper.Shipper) {
	deadline := time.NewTimer(flushTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for ship.Stats().Buffered > 0 {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			slog.Warn("flush timed out", "unsent", ship.Stats().Buffered)
			return
		case <-tick.C:
		}
	}
}
