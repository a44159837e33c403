package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"birdcount/config"
	"birdcount/internal/adapters/auth"
	"birdcount/internal/adapters/email"
	deliveryhttp "birdcount/internal/delivery/http"
	"birdcount/internal/delivery/http/controllers"
	"birdcount/internal/delivery/http/middleware"
	"birdcount/internal/domain"
	"birdcount/internal/metrics"
	"birdcount/internal/repository/memory"
	"birdcount/internal/repository/postgres"
	"birdcount/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := config.NewLogger()
	if err := run(logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	participants, changeLog, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New(prometheus.DefaultRegisterer)
	auditor := services.NewChangeAuditor(changeLog, logger, m)
	reconciler := services.NewReconciler(participants, auditor, logger, m)
	directory := services.NewParticipantDirectory(participants)

	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Email.Provider,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		ReplyTo:     cfg.Email.ReplyTo,
		SES: email.SESConfig{
			Region:             cfg.Email.AWSRegion,
			AccessKeyID:        cfg.Email.AWSAccessKeyID,
			SecretAccessKey:    cfg.Email.AWSSecretAccessKey,
			InsecureSkipVerify: cfg.Email.InsecureSkipVerify,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("create mailer: %w", err)
	}
	emailService := services.NewEmailService(mailer, email.NewTemplateRenderer(), logger)
	digest := services.NewDigestService(participants, auditor, emailService, logger, m)

	requireAuth := middleware.RequireAuth(auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer), logger)
	router := deliveryhttp.NewRouter(
		controllers.NewParticipantController(logger, reconciler, directory),
		controllers.NewChangeController(logger, auditor, digest),
		requireAuth,
		promhttp.Handler(),
	)

	var handler http.Handler = router
	handler = http.TimeoutHandler(handler, cfg.RequestTimeout, `{"data":null,"error":{"code":"timeout","message":"request timed out"}}`)
	handler = middleware.CORS(cfg.CORSOrigins, handler)
	handler = middleware.LoggingMiddleware(logger, handler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "store", cfg.StoreDriver, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore returns the repositories for the configured driver and a func
// releasing their resources.
func openStore(cfg *config.Config, logger *slog.Logger) (domain.ParticipantRepository, domain.ChangeEventRepository, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.NewParticipantRepository(), memory.NewChangeEventRepository(), func() {}, nil
	}
	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("ping database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Error("close database", "err", err)
		}
	}
	return postgres.NewParticipantRepository(db), postgres.NewChangeEventRepository(db), closeDB, nil
}
