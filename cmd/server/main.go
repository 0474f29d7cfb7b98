package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"lectoria/internal/api"
	"lectoria/internal/blob"
	"lectoria/internal/config"
	"lectoria/internal/db"
	"lectoria/internal/email"
	"lectoria/internal/metrics"
	"lectoria/internal/rewrite"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting server", "name", cfg.Server.Name)

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.Info("database opened", "path", cfg.Database.Path)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	mailer := email.NewSMTPMailer(
		cfg.Email.SMTP.Host,
		cfg.Email.SMTP.Port,
		cfg.Email.SMTP.Username,
		cfg.Email.SMTP.Password,
		cfg.Email.SMTP.From,
	)
	slog.Info("email configured", "host", cfg.Email.SMTP.Host, "port", cfg.Email.SMTP.Port)

	blobs, err := blob.NewService(cfg.Uploads.Dir, cfg.Uploads.MaxBytes)
	if err != nil {
		slog.Error("failed to set up upload storage", "error", err)
		os.Exit(1)
	}

	var rewriter rewrite.Rewriter
	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()
	if cfg.Rewrite.Enabled {
		client := rewrite.NewClient(cfg.Rewrite.BaseURL, cfg.Rewrite.APIKey, cfg.Rewrite.Model, cfg.Rewrite.MaxChars)
		rewriter = client

		scheduler := rewrite.NewScheduler(
			db.NewLectureRepository(database),
			client,
			recorder,
			cfg.Rewrite.StartDelay,
			cfg.Rewrite.StaleAfter,
		)
		go scheduler.Start(jobCtx)
	}

	server := api.NewServer(cfg, database, mailer, rewriter, blobs, registry, recorder)

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server,
	}

	go func() {
		slog.Info("server listening", "addr", addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")

	jobCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
