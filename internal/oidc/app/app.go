package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openpass-dev/openpass/internal/oidc/claims"
	"github.com/openpass-dev/openpass/internal/oidc/codec"
	httpapi "github.com/openpass-dev/openpass/internal/oidc/http"
	"github.com/openpass-dev/openpass/internal/oidc/pkce"
	"github.com/openpass-dev/openpass/internal/oidc/service"
	"github.com/openpass-dev/openpass/internal/oidc/store"
	"github.com/openpass-dev/openpass/internal/oidc/store/drivers/sqlite"
	"github.com/openpass-dev/openpass/pkg/cryptox"
	"github.com/openpass-dev/openpass/pkg/jwtx"
	"github.com/openpass-dev/openpass/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the OpenID provider with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	keyManager *jwtx.KeyManager
	codeCodec  *codec.Codec

	claimsRegistry *claims.Registry
	pkceRegistry   *pkce.Registry

	// Services
	authorizeService    *service.AuthorizeService
	tokenService        *service.TokenService
	userinfoService     *service.UserinfoService
	bootstrapService    *service.BootstrapService
	mfaService          *service.MFAService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "openpass",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keyManager, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: app.cfg.Algorithm,
		Issuer:    app.cfg.Issuer,
		RSABits:   app.cfg.RSABits,
		NumKeys:   app.cfg.NumKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = keyManager

	if err := app.initCodec(); err != nil {
		return nil, err
	}

	app.claimsRegistry = claims.NewRegistry()
	app.pkceRegistry = pkce.NewRegistry()

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("openpass starting", "port", app.cfg.Port, "issuer", app.cfg.Issuer, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down openpass...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("openpass stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initCodec loads or generates the authorization code encryption key. A
// random per-process key means outstanding codes do not survive a restart,
// which matches the ephemeral signing keys.
func (app *Application) initCodec() error {
	var key []byte
	if app.cfg.CodeKeyHex != "" {
		decoded, err := hex.DecodeString(app.cfg.CodeKeyHex)
		if err != nil || len(decoded) != cryptox.KeySize {
			return fmt.Errorf("OPENPASS_CODE_KEY must be %d hex-encoded bytes", cryptox.KeySize)
		}
		key = decoded
	} else {
		key = make([]byte, cryptox.KeySize)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("failed to generate code encryption key: %w", err)
		}
		app.logger.Info("generated ephemeral authorization code key")
	}

	codeCodec, err := codec.New(key)
	if err != nil {
		return fmt.Errorf("failed to initialize code codec: %w", err)
	}
	app.codeCodec = codeCodec
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	extractor := claims.NewExtractor(app.claimsRegistry)

	app.authorizeService = &service.AuthorizeService{
		Store:   app.db,
		Codec:   app.codeCodec,
		PKCE:    app.pkceRegistry,
		CodeTTL: app.cfg.AuthCodeTTL,
	}

	app.tokenService = &service.TokenService{
		Store:      app.db,
		KeyManager: app.keyManager,
		Codec:      app.codeCodec,
		PKCE:       app.pkceRegistry,
		IDTokens: &service.IdentityTokenBuilder{
			KeyManager: app.keyManager,
			Extractor:  extractor,
			Issuer:     app.cfg.Issuer,
		},
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTokenTTL,
		RefreshTTL: app.cfg.RefreshTokenTTL,
	}

	app.userinfoService = &service.UserinfoService{
		Store:     app.db,
		Extractor: extractor,
	}

	app.bootstrapService = &service.BootstrapService{
		Store: app.db,
		Token: app.cfg.BootstrapToken,
	}

	app.mfaService = &service.MFAService{
		Store:  app.db,
		Issuer: app.cfg.Issuer,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.keyManager.Verifier,
		app.cfg.Issuer,
		BuildVersion,
		app.db,
		app.claimsRegistry,
		app.pkceRegistry,
		app.logger,
	)

	// Wire services to router
	router.AuthorizeService = app.authorizeService
	router.TokenService = app.tokenService
	router.UserinfoService = app.userinfoService
	router.BootstrapService = app.bootstrapService
	router.MFAService = app.mfaService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
