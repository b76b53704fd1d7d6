package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asr-api/backend/internal/api"
	"github.com/asr-api/backend/internal/api/handlers"
	"github.com/asr-api/backend/internal/api/middleware"
	"github.com/asr-api/backend/internal/auth"
	"github.com/asr-api/backend/internal/config"
	"github.com/asr-api/backend/internal/db"
	"github.com/asr-api/backend/internal/engine"
	"github.com/asr-api/backend/internal/events"
	"github.com/asr-api/backend/internal/ffmpeg"
	"github.com/asr-api/backend/internal/gpu"
	"github.com/asr-api/backend/internal/job"
	"github.com/asr-api/backend/internal/media"
	"github.com/asr-api/backend/internal/pipeline"
	"github.com/asr-api/backend/internal/scratch"
	"github.com/asr-api/backend/internal/telemetry"
)

func main() {
	configPath := flag.String("config", os.Getenv("ASR_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.Storage.DataPath, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Initialize database
	database, err := db.NewSQLite(cfg.Storage.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// Ensure admin user exists
	if err := database.EnsureAdmin(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}
	log.Printf("Admin user ensured: %s", cfg.Auth.AdminUsername)

	if days := cfg.Storage.HistoryRetentionDays; days > 0 {
		removed, err := database.PruneRequests(time.Now().AddDate(0, 0, -days))
		if err != nil {
			log.Printf("WARNING: failed to prune request history: %v", err)
		} else if removed > 0 {
			log.Printf("Pruned %d history records older than %d days", removed, days)
		}
	}

	tel, err := telemetry.Setup(context.Background(), telemetry.Settings{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: handlers.Version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
		Metrics:        cfg.Telemetry.Metrics,
	})
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	// Detect accelerators and media tools
	devices := gpu.Detect()
	log.Printf("GPU detection: %d device(s)", len(devices))

	tool := ffmpeg.New(cfg.Media.FFmpegPath, cfg.Media.FFprobePath)
	if !tool.Detect().Ready() {
		log.Printf("WARNING: transcription requests will fail until ffmpeg and ffprobe are installed")
	}

	scratchDir, err := scratch.NewManager(cfg.Storage.ScratchPath)
	if err != nil {
		log.Fatalf("Failed to prepare scratch directory: %v", err)
	}

	recognizer, err := engine.NewRecognizer(engine.Settings{
		Backend: cfg.Recognizer.Backend,
		URL:     cfg.Recognizer.URL,
		Command: cfg.Recognizer.Command,
		Timeout: cfg.Recognizer.Timeout(),
	})
	if err != nil {
		log.Fatalf("Failed to initialize recognizer: %v", err)
	}
	if recognizer == nil {
		log.Printf("WARNING: no recognizer configured, /health will report 503")
	}
	diarizer, err := engine.NewDiarizer(engine.Settings{
		Backend: cfg.Diarizer.Backend,
		URL:     cfg.Diarizer.URL,
		Command: cfg.Diarizer.Command,
		Timeout: cfg.Diarizer.Timeout(),
	})
	if err != nil {
		log.Fatalf("Failed to initialize diarizer: %v", err)
	}

	svc := pipeline.NewService(pipeline.Config{
		Scratch: scratchDir,
		Ingestor: media.NewIngestor(tool, media.Options{
			MaxUploadBytes:   cfg.Media.MaxUploadBytes,
			MaxDownloadBytes: cfg.Media.MaxDownloadBytes,
			DownloadTimeout:  cfg.DownloadTimeout(),
		}),
		Recognizer:    recognizer,
		Diarizer:      diarizer,
		EngineTimeout: cfg.EngineTimeout(),
	})

	var publisher events.Publisher = events.Noop{}
	var broker handlers.BrokerStatus
	if cfg.Events.NATSURL != "" {
		nc, err := events.ConnectNATS(events.NATSConfig{
			URL:            cfg.Events.NATSURL,
			Subject:        cfg.Events.Subject,
			Token:          cfg.Events.Token,
			ConnectTimeout: time.Duration(cfg.Events.ConnectTimeout) * time.Millisecond,
		})
		if err != nil {
			log.Printf("WARNING: event publishing disabled: %v", err)
		} else {
			publisher = nc
			broker = nc
		}
	}

	tracker := job.NewTracker(cfg.Transcription.MaxConcurrent, publisher, database)

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimit, time.Minute)
	}

	// Initialize JWT service
	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret)

	// Create router
	router := api.NewRouter(api.Deps{
		Config:      cfg,
		Database:    database,
		JWT:         jwtService,
		Transcriber: svc,
		Tracker:     tracker,
		Limiter:     limiter,
		Broker:      broker,
		Metrics:     tel.MetricsHandler,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		tracker.Stop()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}
		if limiter != nil {
			limiter.Close()
		}
		publisher.Close()
		if err := tel.Shutdown(ctx); err != nil {
			log.Printf("Telemetry shutdown: %v", err)
		}
	}()

	log.Printf("Starting server on %s", srv.Addr)
	log.Printf("Scratch path: %s", scratchDir.Root())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
	<-done
}
