// Command yachtsy-example launches yachtsy-mcp as a child process, lists its
// tools and asks the yachtsy-agent tool four sample questions.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/yachtsy/yachtsy-mcp-go/driver"
	"github.com/yachtsy/yachtsy-mcp-go/internal/config"
	"github.com/yachtsy/yachtsy-mcp-go/internal/logctx"
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
	if err := config.LoadEnvFiles(".env"); err != nil {
		return err
	}
	params, cfg, err := driver.Configure()
	if err != nil {
		return err
	}

	log := logctx.NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logctx.ParseLevel(cfg.LogLevel)}))
	slog.SetDefault(log)

	_, err = driver.Run(ctx, driver.NewSDKBackend(), params,
		driver.WithLogger(log),
		driver.WithCallTimeout(cfg.CallTimeout),
		driver.WithContinueOnError(cfg.ContinueOnError),
	)
	return err
}
