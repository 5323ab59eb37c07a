package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"platewatch-service/internal/capture"
	"platewatch-service/internal/client"
	"platewatch-service/internal/config"
	"platewatch-service/internal/db"
	"platewatch-service/internal/domain/recognition"
	"platewatch-service/internal/domain/registry"
	httphandler "platewatch-service/internal/http"
	"platewatch-service/internal/repository"
	"platewatch-service/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log.Level)
	log.Info().Str("strategy", cfg.Recognition.Strategy).Msg("starting platewatch service")

	gormDB, err := db.Connect(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	registryRepo := repository.NewRegistryRepository(gormDB)
	records, err := registryRepo.LoadRecords(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load vehicle registry")
	}
	reg := registry.New(records)
	log.Info().Int("records", reg.Size()).Msg("vehicle registry loaded")

	timeout := cfg.RecognitionTimeout()
	ocrClient := client.NewOCRClient(cfg.OCR.URL, cfg.OCR.Token, timeout, log)
	visionClient := client.NewVisionClient(cfg.Vision.URL, timeout, log)
	gateway := service.NewGateway(ocrClient, visionClient, cfg.Recognition.Strategy, log)

	eventRepo := repository.NewEventRepository(gormDB)
	recognitionService := service.NewRecognitionService(gateway, reg, eventRepo, log)

	var controller *capture.Controller
	if cfg.Capture.SnapshotURL != "" {
		source := capture.NewHTTPSnapshotSource(cfg.Capture.SnapshotURL, timeout)
		processor := capture.ProcessorFunc(func(ctx context.Context, frame recognition.Frame, captureID string) (*recognition.Result, recognition.Verdict, error) {
			return recognitionService.ProcessFrame(ctx, frame, service.SourceStream, captureID)
		})
		controller = capture.NewController(source, processor, cfg.CaptureInterval(), log)
		defer controller.Close()
	} else {
		log.Warn().Msg("no camera snapshot URL configured, stream endpoints disabled")
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	handler := httphandler.NewHandler(recognitionService, controller, cfg, log)
	handler.Register(router, httphandler.JWTAuthMiddleware(cfg.Auth.JWTSecret))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}
