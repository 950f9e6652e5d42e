package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ovpnadmin/internal/auth"
	"ovpnadmin/internal/config"
	"ovpnadmin/internal/logging"
	"ovpnadmin/internal/openvpn"
	"ovpnadmin/internal/script"
	"ovpnadmin/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("OVPN_ADMIN_CONFIG"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.Production())
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("ovpn-admin stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := server.OpenDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := server.RunMigrations(ctx, db, logging.Component(logger, "db")); err != nil {
		return err
	}
	store := server.NewSQLiteStore(db)

	if err := seedAdmin(ctx, cfg, store, logger); err != nil {
		return err
	}

	secret := cfg.JWTSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("jwt_secret not set; tokens will not survive a restart")
	}
	tokens := auth.NewTokenManager(secret, cfg.TokenTTL)

	exec := script.NewExecutor(cfg.ScriptPath, cfg.ScriptTimeout, logging.Component(logger, "script"))
	api := &server.API{
		Installer:     openvpn.NewScriptInstaller(exec),
		PKI:           openvpn.NewPKI(cfg.PKIDir, cfg.ClientConfigDir),
		Management:    openvpn.NewManagement(cfg.ManagementSock),
		Prober:        openvpn.NewProber(cfg.ServiceName, cfg.ServerConf, logging.Component(logger, "probe")),
		Store:         store,
		Tokens:        tokens,
		Logger:        logging.Component(logger, "http"),
		Production:    cfg.Production(),
		CORSOrigins:   cfg.CORSOrigins,
		PublicMetrics: cfg.PublicMetrics,
	}
	go api.PruneRevokedTokens(ctx, 10*time.Minute)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ovpn-admin listening",
			"addr", srv.Addr,
			"env", cfg.Env,
			"script", cfg.ScriptPath,
			"db", cfg.DBPath,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// seedAdmin creates the configured admin account on first start. The seed
// applies once: an existing account keeps its stored password even when
// admin_password changes later.
func seedAdmin(ctx context.Context, cfg *config.Config, store server.Store, logger *slog.Logger) error {
	_, err := store.GetUser(ctx, cfg.AdminUsername)
	if err == nil {
		logger.Debug("admin user exists; skipping seed", "username", cfg.AdminUsername)
		return nil
	}
	if !errors.Is(err, server.ErrUserNotFound) {
		return err
	}

	password := cfg.AdminPassword
	generated := false
	if password == "" {
		password = randomSecret()[:16]
		generated = true
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	created, err := store.EnsureUser(ctx, cfg.AdminUsername, hash)
	if err != nil || !created {
		return err
	}
	if generated {
		// Development only; Validate requires admin_password in production.
		logger.Warn("created admin user with generated password",
			"username", cfg.AdminUsername,
			"password", password,
		)
		return nil
	}
	logger.Info("created admin user", "username", cfg.AdminUsername)
	return nil
}
