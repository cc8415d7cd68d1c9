// Command yachtsy-mcp serves the Yachtsy marketplace agent as an MCP tool
// over stdin/stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/yachtsy/yachtsy-mcp-go/internal/config"
	"github.com/yachtsy/yachtsy-mcp-go/internal/logctx"
	"github.com/yachtsy/yachtsy-mcp-go/stdio"
	"github.com/yachtsy/yachtsy-mcp-go/storage"
	"github.com/yachtsy/yachtsy-mcp-go/storage/memory"
	redisstore "github.com/yachtsy/yachtsy-mcp-go/storage/redis"
	"github.com/yachtsy/yachtsy-mcp-go/yachtsy"
	"github.com/yachtsy/yachtsy-mcp-go/yachtsyserver"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	envFile := os.Getenv("YACHTSY_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := config.LoadEnvFiles(envFile); err != nil {
		return err
	}

	cfg, err := config.LoadServer()
	if err != nil {
		return fmt.Errorf("%w\nset YACHTSY_API_KEY or run 'env YACHTSY_API_KEY=your_key yachtsy-mcp'", err)
	}

	log := logctx.NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logctx.ParseLevel(cfg.LogLevel)}))
	slog.SetDefault(log)
	if config.IsPlaceholder(cfg.APIKey) {
		log.WarnContext(ctx, "yachtsy.config.placeholder_key",
			slog.String("hint", "set YACHTSY_API_KEY; upstream calls will be rejected"))
	}

	agent, err := yachtsy.NewAgent(cfg.APIKey,
		yachtsy.WithBaseURL(cfg.BaseURL),
		yachtsy.WithModel(cfg.Model),
		yachtsy.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	var asker yachtsy.Asker = agent
	if cfg.CacheEnabled() {
		store, err := openCache(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = store.Close()
		}()
		cached, err := yachtsy.NewCachedAsker(agent, store, cfg.CacheTTL, yachtsy.WithCacheLogger(log))
		if err != nil {
			return fmt.Errorf("create answer cache: %w", err)
		}
		asker = cached
	}

	srv, err := yachtsyserver.New(asker, yachtsyserver.WithLogger(log))
	if err != nil {
		return err
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	go func() {
		reload := yachtsyserver.CredentialReloader(agent, cfg.CheckAPIKey, log)
		if err := config.Watch(watchCtx, cfg.EnvFile, reload, config.WithWatchLogger(log)); err != nil {
			log.DebugContext(watchCtx, "config.watch.disabled", slog.String("err", err.Error()))
		}
	}()

	log.InfoContext(ctx, "yachtsy.serve.start",
		slog.String("version", yachtsy.Version),
		slog.String("model", cfg.Model),
		slog.Bool("cache", cfg.CacheEnabled()),
	)
	err = stdio.NewHandler(srv, stdio.WithLogger(log)).Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func openCache(ctx context.Context, cfg *config.Server) (storage.Storage, error) {
	if cfg.CacheRedisAddr != "" {
		s, err := redisstore.Dial(ctx, cfg.CacheRedisAddr)
		if err != nil {
			return nil, fmt.Errorf("connect answer cache: %w", err)
		}
		return s, nil
	}
	s, err := memory.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create answer cache: %w", err)
	}
	return s, nil
}
