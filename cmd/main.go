package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	apicontext "github.com/dtroode/otpauth-server/internal/api/http/context"
	"github.com/dtroode/otpauth-server/internal/api/http/handler"
	"github.com/dtroode/otpauth-server/internal/api/http/router"
	httpServer "github.com/dtroode/otpauth-server/internal/api/http/server"
	"github.com/dtroode/otpauth-server/internal/config"
	"github.com/dtroode/otpauth-server/internal/hasher"
	"github.com/dtroode/otpauth-server/internal/logger"
	"github.com/dtroode/otpauth-server/internal/mailer"
	"github.com/dtroode/otpauth-server/internal/model"
	"github.com/dtroode/otpauth-server/internal/repository/postgres"
	"github.com/dtroode/otpauth-server/internal/repository/redis"
	"github.com/dtroode/otpauth-server/internal/server"
	"github.com/dtroode/otpauth-server/internal/service"
	"github.com/dtroode/otpauth-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	logAppVersion()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", "error", err)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer db.Close()

	tokenStore, pingers, closeTokens, err := newTokenStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeTokens()

	userRepo := postgres.NewUserRepository(db)
	tokenService := service.NewTokenService(token.NewJWT(cfg.JWT.Secret, cfg.JWT.TTL), tokenStore, logger)
	verificationService := service.NewVerification(userRepo, tokenService, newMailer(cfg, logger), cfg.Verification.CodeTTL, logger)
	authService := service.NewAuth(userRepo, hasher.NewBcrypt(cfg.Bcrypt.Cost), tokenService, verificationService, logger)

	h, err := router.New(authService, verificationService, tokenService, apicontext.NewManager(), logger, pingers...).Register()
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	srv := httpServer.NewHTTPServer(h, fmt.Sprintf(":%s", cfg.HTTP.Port), cfg.HTTP.ReadHeaderTimeout)

	var sl model.SecurityLayer = server.NewPlainListener()
	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	}

	errCh := make(chan error, 1)
	go func(s model.Server) {
		logger.Info("Starting server on", "address", s.Address(), "https", cfg.HTTP.EnableHTTPS)
		errCh <- s.Start(sl)
	}(srv)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("received interruption signal, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", srv.Address())
	}

	return <-errCh
}

// newTokenStore picks the access token store named by TOKENS_DRIVER. The
// returned pingers back the health check.
func newTokenStore(ctx context.Context, cfg *config.Config, db *postgres.Connection) (model.AccessTokenStore, []handler.Pinger, func(), error) {
	pingers := []handler.Pinger{db}

	if cfg.Tokens.Driver != config.TokensDriverRedis {
		return postgres.NewAccessTokenRepository(db), pingers, func() {}, nil
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
	}

	closeFn := func() { _ = rdb.Close() }
	return redis.NewAccessTokenRepository(rdb, cfg.Redis.Prefix), append(pingers, redisPinger{rdb}), closeFn, nil
}

func newMailer(cfg *config.Config, logger *logger.Logger) model.Mailer {
	if cfg.Mail.Driver == config.MailDriverSMTP {
		return mailer.NewSMTP(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, logger)
	}
	return mailer.NewLog(logger)
}

type redisPinger struct {
	client *goredis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
