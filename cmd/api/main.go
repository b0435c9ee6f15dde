package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/pipeline"
	"server/internal/providers/copywriter"
	"server/internal/providers/genai"
	"server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewFileStore(cfg.MediaRoot)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage init failed")
	}

	client, err := genai.NewClient(genai.Options{
		APIKey:            cfg.GeminiAPIKey,
		BaseURL:           cfg.GeminiBaseURL,
		TextModel:         cfg.GeminiTextModel,
		ImageModel:        cfg.GeminiImageModel,
		VideoModel:        cfg.GeminiVideoModel,
		Logger:            &logger,
		VideoPollInterval: cfg.VideoPollInterval,
		VideoPollTimeout:  cfg.VideoPollTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("gemini client init failed")
	}

	fontPaths := cfg.FontPaths
	if len(fontPaths) == 0 {
		fontPaths = pipeline.DefaultFontPaths()
	}
	fonts := pipeline.NewFontCatalog(fontPaths, &logger)

	loader := pipeline.NewLoader(cfg.MediaRoot, nil)
	compositor := pipeline.NewCompositor(fonts, &logger)
	texts := copywriter.NewGenerator(client, &logger)
	selector := pipeline.NewStrategySelector(client)
	orchestrator := pipeline.NewOrchestrator(texts, selector, loader, compositor, store, &logger)
	moods := pipeline.NewMoodService(client, client, loader, store, cfg.GeminiImageModel, cfg.GeminiVideoModel, &logger)

	app := &handlers.App{
		Logger:    logger,
		Posts:     orchestrator,
		Moods:     moods,
		MediaRoot: cfg.MediaRoot,
		BrandDir:  cfg.BrandDir,
	}

	// The database is optional: without it the service still generates and
	// serves assets, it just keeps no metadata history.
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		app.PostRepo = repo.NewPostRepository(pool)
		app.MoodRepo = repo.NewMoodRepository(pool)
	} else {
		logger.Warn().Msg("DATABASE_URL not set, metadata persistence disabled")
	}

	router := httpapi.NewRouter(app, logger, cfg.MediaRoot)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("API listening")
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
