package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"farmcopilot/internal/chunker"
	"farmcopilot/internal/completion/openai"
	"farmcopilot/internal/config"
	"farmcopilot/internal/domain"
	"farmcopilot/internal/embedding/hashing"
	embedopenai "farmcopilot/internal/embedding/openai"
	"farmcopilot/internal/extractor/pdf"
	"farmcopilot/internal/httpapi"
	"farmcopilot/internal/service"
	"farmcopilot/internal/summarizer"
	"farmcopilot/internal/vectorstore"
	"farmcopilot/internal/vectorstore/file"
	"farmcopilot/internal/vectorstore/redis"
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func serve(ctx context.Context, cfg *config.AppConfig) error {
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	svc, closeFn, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := svc.Restore(ctx); err != nil {
		logger.Warn("could not restore stored corpus, starting empty", "error", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(svc, httpapi.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
	}, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "embedder", cfg.Embedder.Type, "storage", cfg.Storage.Type)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func buildService(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*service.RAGService, func(), error) {
	ch, err := chunker.NewWindowChunker(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap)
	if err != nil {
		return nil, nil, err
	}

	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "hashing":
		h, err := hashing.NewEmbedder(cfg.Embedder.Dimension)
		if err != nil {
			return nil, nil, err
		}
		emb = h
	case "openai":
		o := cfg.Embedder.OpenAI
		client, err := embedopenai.NewClient(embedopenai.Config{
			BaseURL:   o.BaseURL,
			APIKeyEnv: o.APIKeyEnv,
			Model:     o.Model,
			Timeout:   o.Timeout(),
			BatchSize: cfg.Embedder.BatchSize,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	default:
		return nil, nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	completer, err := openai.NewClient(openai.Config{
		BaseURL:     cfg.Completion.BaseURL,
		APIKeyEnv:   cfg.Completion.APIKeyEnv,
		Model:       cfg.Completion.Model,
		Temperature: cfg.Completion.Temperature,
		MaxTokens:   cfg.Completion.MaxTokens,
		Timeout:     cfg.Completion.Timeout(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("completion client init failed: %w", err)
	}

	var store vectorstore.Storage
	closeFn := func() {}
	switch cfg.Storage.Type {
	case "none":
	case "file":
		s, err := file.NewStorage(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		store = s
	case "redis":
		r := cfg.Storage.Redis
		s, err := redis.NewStorage(ctx, redis.Config{
			Addr:      r.Addr,
			Password:  os.Getenv(r.PasswordEnv),
			DB:        r.DB,
			KeyPrefix: r.KeyPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		store = s
		closeFn = func() { _ = s.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown storage: %s", cfg.Storage.Type)
	}

	svc := service.NewRAGService(service.Deps{
		Extractor:  pdf.NewExtractor(),
		Chunker:    ch,
		Embedder:   emb,
		Completer:  completer,
		Summarizer: summarizer.NewFrequencySummarizer(),
		Storage:    store,
		Logger:     logger,
	}, service.Options{
		Mode:             cfg.Ingest.Mode,
		SummarySentences: cfg.Ingest.SummarySentences,
		PreviewRunes:     cfg.Ingest.PreviewRunes,
	})
	return svc, closeFn, nil
}
