package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/formcheck/formcheck/pkg/rpc"
	"github.com/formcheck/formcheck/server/internal/alerts"
	"github.com/formcheck/formcheck/server/internal/api"
	"github.com/formcheck/formcheck/server/internal/auth"
	"github.com/formcheck/formcheck/server/internal/config"
	"github.com/formcheck/formcheck/server/internal/receiver"
	"github.com/formcheck/formcheck/server/internal/store"
	"github.com/formcheck/formcheck/server/internal/ws"
)

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

	slog.Info("formcheck-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	srv := cfg.Server
	slog.Info("config loaded",
		"grpc_port", srv.GRPCPort,
		"http_port", srv.HTTPPort,
		"auth_mode", srv.Auth.Mode,
		"store_ttl", srv.Store.TTL,
		"broadcast_interval", srv.BroadcastInterval,
		"alert_rules", len(srv.Alerts.Rules),
	)
	if srv.Auth.Mode == "apikey" && srv.Auth.Key() == "" {
		slog.Warn("auth mode is apikey but no key is set; accepting all clients", "key_env", srv.Auth.KeyEnv)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Session store with background TTL eviction.
	st := store.New(srv.Store.TTL)
	go st.Run(ctx)

	// Alerts engine evaluates rules on every analyzed record.
	alertEngine := alerts.New(srv.Alerts)

	header, key := srv.Auth.EffectiveHeader(), srv.Auth.Key()

	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(auth.APIKeyInterceptor(srv.Auth.Mode, header, key)))
	rpc.RegisterResultServiceServer(grpcSrv, receiver.New(st, alertEngine))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", srv.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port", "port", srv.GRPCPort, "err", err)
		os.Exit(1)
	}

	go func() {
		slog.Info("gRPC receiver listening", "port", srv.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	apiHandler := api.New(st, alertEngine)

	// WebSocket hub pushes the session snapshot to dashboards.
	hub := ws.New(apiHandler, srv.BroadcastInterval)
	go hub.Run(ctx)

	// Combined HTTP server: REST API, metrics and WebSocket hub on HTTPPort.
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", apiHandler)
	httpMux.Handle("/metrics", apiHandler)
	httpMux.Handle("/ws/stream", hub)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", srv.HTTPPort),
		Handler:           auth.HTTPMiddleware(srv.Auth.Mode, header, key, httpMux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", srv.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("formcheck-server shutting down")
	grpcSrv.GracefulStop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	alertEngine.Wait()
}
