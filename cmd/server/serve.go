package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"encounter-assistant/internal/agent"
	"encounter-assistant/internal/config"
	"encounter-assistant/internal/encounter"
	"encounter-assistant/internal/platform/kv"
	"encounter-assistant/internal/platform/logging"
	"encounter-assistant/internal/platform/telegram"
	"encounter-assistant/internal/records"
	"encounter-assistant/internal/report"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the encounter API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// openStore connects the configured key/value backend. The returned closer
// is nil for the in-memory store.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (kv.Store, io.Closer, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		r, err := kv.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	case config.BackendPostgres:
		if err := kv.Migrate(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		logger.Info().Msg("migrations applied")
		s, err := kv.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.BackendSQLite:
		s, err := kv.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return kv.NewMemory(), nil, nil
	}
}

func loadRecords(dir string, logger zerolog.Logger) encounter.RecordSource {
	src, err := records.LoadDir(dir, records.DefaultUnits)
	if err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("patient records unavailable, every patient will be empty")
		return nil
	}
	logger.Info().Str("dir", dir).Int("patients", len(src.PatientIDs())).Msg("patient records loaded")
	return src
}

func newReportService(cfg *config.Config, logger zerolog.Logger) *report.Service {
	var fonts []string
	if cfg.FontPath != "" {
		fonts = append([]string{cfg.FontPath}, report.DefaultFontPaths...)
	}
	if !cfg.ReportsEnabled() {
		logger.Warn().Msg("TELEGRAM_BOT_TOKEN or DOCTOR_CHAT_ID not set, reports will not be sent")
		return report.NewService(nil, 0, fonts, logger)
	}
	return report.NewService(telegram.NewClient(cfg.TelegramToken), cfg.DoctorChatID, fonts, logger)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-Request-ID, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func newRouter(h *encounter.Handler, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logging.Requests(logger))
	r.Use(cors)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Route("/api", func(r chi.Router) {
		encounter.RegisterRoutes(r, h)
	})
	return r
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New("encounter-assistant", cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx := context.Background()
	store, closer, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open session store")
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	logger.Info().Str("backend", cfg.StoreBackend).Msg("session store ready")

	var stt encounter.Transcriber
	if cfg.STTURL != "" {
		stt = agent.NewWhisperClient(cfg.STTURL, cfg.HTTPTimeout).WithLanguage(cfg.STTLanguage)
	}

	svc := encounter.NewService(
		store,
		agent.NewExtractionClient(cfg.ExtractorURL, cfg.HTTPTimeout),
		stt,
		loadRecords(cfg.RecordsDir, logger),
		newReportService(cfg, logger),
		logger,
		encounter.Options{DefaultPatientID: cfg.DefaultPatientID},
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(encounter.NewHandler(svc, logger), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
