package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mediscan/mediscan-backend/internal/verification/consumers"
	"github.com/mediscan/mediscan-backend/internal/verification/events"
	"github.com/mediscan/mediscan-backend/internal/verification/handler"
	"github.com/mediscan/mediscan-backend/internal/verification/lookup"
	"github.com/mediscan/mediscan-backend/internal/verification/processor"
	"github.com/mediscan/mediscan-backend/internal/verification/repository"
	"github.com/mediscan/mediscan-backend/internal/verification/service"
	"github.com/mediscan/mediscan-backend/internal/verification/storage"
	"github.com/mediscan/mediscan-backend/pkg/auth"
	"github.com/mediscan/mediscan-backend/pkg/config"
	"github.com/mediscan/mediscan-backend/pkg/database"
	"github.com/mediscan/mediscan-backend/pkg/httputil"
	"github.com/mediscan/mediscan-backend/pkg/i18n"
	"github.com/mediscan/mediscan-backend/pkg/logger"
	"github.com/mediscan/mediscan-backend/pkg/messaging"
)

const serviceName = "verification-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Verification Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// History and the regulatory alert cache need the database
	var (
		db        *database.DB
		store     service.VerificationStore
		alertRepo *repository.AlertRepository
	)
	if cfg.Database.Enabled {
		db, err = database.New(&cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		store = repository.NewVerificationRepository(db)
		alertRepo = repository.NewAlertRepository(db)
	} else {
		log.Warn().Msg("database disabled, verdicts will not be stored")
	}

	var (
		rmq       *messaging.RabbitMQ
		publisher service.VerificationPublisher
	)
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()
		go rmq.Watch(ctx)

		eventPublisher, err := events.NewVerificationEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		publisher = eventPublisher

		if alertRepo != nil {
			alertConsumer, err := consumers.NewRegulatoryAlertConsumer(rmq, alertRepo, log.WithComponent("alert-consumer"))
			if err != nil {
				log.Fatal().Err(err).Msg("failed to create regulatory alert consumer")
			}
			if err := alertConsumer.Start(ctx); err != nil {
				log.Fatal().Err(err).Msg("failed to start regulatory alert consumer")
			}
		}
	}

	registry, regulatory := buildLookups(cfg.Lookup, alertRepo, log.WithComponent("lookup"))

	jobs := storage.NewJobStore(cfg.Verification.JobTTL)
	defer jobs.Close()

	svc := service.New(service.Options{
		Processors: processor.NewRegistry(
			processor.NewVisionProcessor(cfg.Vision.URL, cfg.Vision.Timeout),
			processor.NewTextProcessor(),
		),
		Jobs:       jobs,
		Registry:   registry,
		Regulatory: regulatory,
		Store:      store,
		Publisher:  publisher,
		Config:     cfg.Verification,
		Logger:     log,
	})
	verificationHandler := handler.NewHandler(svc, cfg.Verification.MaxUploadSize, log)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Accept-Language"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(i18n.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
			"vision": map[string]interface{}{
				"url":        cfg.Vision.URL,
				"configured": cfg.Vision.URL != "",
			},
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(auth.NewManager(&cfg.JWT), cfg.JWT.RequireAuth, log))
		verificationHandler.Routes(r)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	cancel()

	log.Info().Msg("server stopped")
}

// buildLookups wires the configured registry and regulatory sources.
// Unconfigured sources stay nil so the service treats them as absent.
func buildLookups(cfg config.LookupConfig, alerts *repository.AlertRepository, log *logger.Logger) (lookup.RegistryLookup, lookup.RegulatoryLookup) {
	var registries []lookup.RegistryLookup
	if cfg.RegistryURL != "" {
		registries = append(registries, lookup.NewRegistryClient("gs1", cfg.RegistryURL, cfg.APIKey, cfg.Timeout, log))
	}
	if cfg.RegistryFallbackURL != "" {
		registries = append(registries, lookup.NewRegistryClient("fallback", cfg.RegistryFallbackURL, cfg.APIKey, cfg.Timeout, log))
	}

	var regulators []lookup.RegulatoryLookup
	if cfg.RegulatoryURL != "" {
		regulators = append(regulators, lookup.NewRegulatoryClient("regulator", cfg.RegulatoryURL, cfg.APIKey, cfg.Timeout, log))
	}
	if alerts != nil {
		regulators = append(regulators, alerts)
	}

	var (
		registry   lookup.RegistryLookup
		regulatory lookup.RegulatoryLookup
	)
	switch len(registries) {
	case 0:
		log.Warn().Msg("no product registry configured, GTINs will not be verified")
	case 1:
		registry = registries[0]
	default:
		registry = lookup.NewRegistryChain(log, registries...)
	}
	switch len(regulators) {
	case 0:
	case 1:
		regulatory = regulators[0]
	default:
		regulatory = lookup.NewRegulatoryMerge(log, regulators...)
	}
	return registry, regulatory
}
