// Command demo runs one batch and one streaming completion against the
// configured backend, printing snapshots as they arrive. Point it at
// cmd/mock-backend for an offline round trip:
//
//	ZAI_API_KEY=demo ZAI_HOST=http://localhost:9090 demo -prompt "count from 1 to 5"
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/glmkit/glmkit/pkg/api"
	"github.com/glmkit/glmkit/pkg/config"
	"github.com/glmkit/glmkit/pkg/credentials"
	"github.com/glmkit/glmkit/pkg/provider"
	"github.com/glmkit/glmkit/pkg/provider/zai"
	"github.com/glmkit/glmkit/pkg/recorder"
	recorderpg "github.com/glmkit/glmkit/pkg/recorder/postgres"
	"github.com/glmkit/glmkit/pkg/retry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("demo failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (optional)")
	prompt := flag.String("prompt", "Say OK and nothing else.", "user prompt")
	system := flag.String("system", "You are a concise assistant.", "system prompt")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9091)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	rec, cleanup, err := buildRecorder(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	creds, err := buildCredentials(cfg)
	if err != nil {
		return err
	}

	prov, err := zai.New(zai.Config{
		Host:        cfg.Provider.Host,
		APIKey:      cfg.Provider.APIKey,
		Credentials: creds,
		Model:       cfg.Provider.Model,
		Timeout:     cfg.Provider.Timeout,
		Retry:       retryPolicy(cfg.Provider.MaxRetries),
		Recorder:    rec,
	})
	if err != nil {
		return err
	}
	defer prov.Close()

	if *metricsAddr != "" && cfg.Observability.Metrics.Enabled {
		serveMetrics(*metricsAddr, cfg.Observability.Metrics.Path)
	}

	ctx := context.Background()
	req := &provider.Request{
		System:   *system,
		Messages: []api.Message{api.NewTextMessage(api.RoleUser, *prompt)},
	}

	// Batch completion.
	fmt.Println("=== batch completion ===")
	msg, usage, err := prov.Complete(ctx, prov.ModelConfig(), req)
	if err != nil {
		return fmt.Errorf("batch completion: %w", err)
	}
	fmt.Printf("%s\n", msg.Text())
	printUsage(usage)

	// Streaming completion.
	fmt.Println("\n=== streaming completion ===")
	ch, err := prov.Stream(ctx, req)
	if err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}

	var final provider.StreamSnapshot
	for snap := range ch {
		if snap.Err != nil {
			return fmt.Errorf("stream: %w", snap.Err)
		}
		final = snap
		fmt.Printf("\rsnapshot: %q", snap.Message.Text())
	}
	fmt.Println()
	if final.Usage != nil {
		printUsage(*final.Usage)
	}

	return nil
}

func buildRecorder(cfg *config.Config) (recorder.Recorder, func(), error) {
	switch cfg.Recorder.Type {
	case "none":
		return recorder.Nop{}, func() {}, nil
	case "slog":
		return recorder.Slog{Logger: slog.Default()}, func() {}, nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pg, err := recorderpg.New(ctx, recorderpg.Config{
			DSN:            cfg.Recorder.Postgres.DSN,
			MaxConns:       cfg.Recorder.Postgres.MaxConns,
			MigrateOnStart: cfg.Recorder.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting recorder database: %w", err)
		}
		return pg, func() { pg.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown recorder type %q", cfg.Recorder.Type)
	}
}

func buildCredentials(cfg *config.Config) (credentials.Method, error) {
	if cfg.Provider.Auth != "jwt" {
		return nil, nil
	}
	// Legacy Zhipu keys ("id.secret") authenticate with a signed
	// assertion instead of the raw key.
	return credentials.NewZhipuJWT(cfg.Provider.APIKey)
}

func retryPolicy(maxRetries int) retry.Policy {
	p := retry.DefaultPolicy()
	if maxRetries > 0 {
		p.MaxAttempts = maxRetries
	}
	return p
}

func serveMetrics(addr, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	go func() {
		slog.Info("metrics listening", "addr", addr, "path", path)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server failed", "error", err)
		}
	}()
}

func printUsage(u api.Usage) {
	in, out, total := 0, 0, 0
	if u.InputTokens != nil {
		in = *u.InputTokens
	}
	if u.OutputTokens != nil {
		out = *u.OutputTokens
	}
	if t := u.Total(); t != nil {
		total = *t
	}
	fmt.Printf("usage: %d in / %d out / %d total\n", in, out, total)
}
