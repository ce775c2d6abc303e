package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iliyamo/clinical-intake/internal/audit"
	"github.com/iliyamo/clinical-intake/internal/config"
	"github.com/iliyamo/clinical-intake/internal/database"
	"github.com/iliyamo/clinical-intake/internal/handler"
	"github.com/iliyamo/clinical-intake/internal/logger"
	"github.com/iliyamo/clinical-intake/internal/queue"
	"github.com/iliyamo/clinical-intake/internal/repository"
	"github.com/iliyamo/clinical-intake/internal/router"
	"github.com/iliyamo/clinical-intake/internal/service"
)

const serviceName = "clinical-intake"

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
			return err
		}
		log.Info("schema ready", zap.String("driver", cfg.DBDriver))
	}

	sink, closeSink, err := auditSink(ctx, cfg.Audit, log)
	if err != nil {
		return err
	}
	defer closeSink()
	recorder := audit.NewRecorder(sink, cfg.Audit.QueueSize, cfg.Audit.WriteTimeout, log.Named("audit"))

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable, login rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	if err := seedUsers(ctx, users, cfg, log); err != nil {
		return err
	}
	patients := repository.NewPatientRepo(db)
	authSvc := service.NewAuthService(users, cfg.JWTSecret, cfg.AccessTTL, recorder)
	patientSvc := service.NewPatientService(patients, users, recorder)

	e := router.New(router.Deps{
		JWTSecret: cfg.JWTSecret,
		RateLimit: config.LoadRateLimitConfig(),
		Redis:     rdb,
		Auth:      handler.NewAuthHandler(authSvc, log),
		Patients:  handler.NewPatientHandler(patientSvc, log),
		Log:       log,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if err := recorder.Close(shutdownCtx); err != nil {
		log.Warn("audit queue not fully drained", zap.Error(err), zap.Uint64("dropped", recorder.Dropped()))
	}
	return nil
}

// seedUsers creates the SEED_USERS accounts that do not exist yet.
func seedUsers(ctx context.Context, users *repository.UserRepo, cfg config.Config, log *zap.Logger) error {
	for _, u := range cfg.Seed {
		_, err := users.Create(ctx, u.Username, u.Password, u.Role, cfg.BcryptCost)
		switch {
		case errors.Is(err, repository.ErrUsernameExists):
			continue
		case err != nil:
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		log.Info("seeded user", zap.String("username", u.Username), zap.String("role", u.Role))
	}
	return nil
}

// auditSink picks the audit destination. With the amqp sink the consumer
// that writes the broker queue to the audit file can run in-process.
func auditSink(ctx context.Context, cfg config.AuditConfig, log *zap.Logger) (audit.Sink, func(), error) {
	fileSink, err := audit.NewFileSink(cfg.LogPath)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Sink != "amqp" {
		log.Info("audit sink", zap.String("type", "file"), zap.String("path", cfg.LogPath))
		return fileSink, func() {}, nil
	}

	pub := queue.NewPublisher(cfg.AMQPURL, cfg.AMQPQueue, log.Named("audit-publisher"))
	if cfg.Consumer {
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.AMQPURL, cfg.AMQPQueue, fileSink, log.Named("audit-consumer")); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	}
	log.Info("audit sink", zap.String("type", "amqp"), zap.String("queue", cfg.AMQPQueue))
	return pub, func() { _ = pub.Close() }, nil
}
