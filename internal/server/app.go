// Package server initializes and runs the gophauth server: it opens the
// database, seeds roles and the admin account, loads or generates the signing
// keys, and serves the gRPC and ops HTTP endpoints until shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/buildinfo"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/events"
	"github.com/dmitrijs2005/gophauth/internal/server/httpapi"
	"github.com/dmitrijs2005/gophauth/internal/server/keys"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"golang.org/x/crypto/bcrypt"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

// ServiceName identifies this service on the status bus.
const ServiceName = "gophauth"

var openDB = repomanager.OpenDB

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	credentials *services.CredentialService
	metrics     *metrics.Metrics
	publisher   events.Publisher
	closers     []func() error
}

// NewApp performs every startup step that can fail: database, migrations,
// seeding and key material. Any error here is fatal.
func NewApp(ctx context.Context, c *config.Config) (_ *App, err error) {

	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)
	logger.Info(ctx, "Initializing app...", buildinfo.Fields()...)

	app := &App{config: c, logger: logger}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db.Close)

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	hasher := cryptox.NewBcryptHasher(bcrypt.DefaultCost)

	seeder := services.NewSeeder(db, rm, hasher, c.AdminUserName, c.AdminPassword, logger)
	if err := seeder.Seed(ctx); err != nil {
		return nil, fmt.Errorf("seed error: %w", err)
	}

	backend, closeBackend, err := newKeyBackend(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("key backend error: %w", err)
	}
	app.closers = append(app.closers, closeBackend)

	provider := keys.NewProvider(backend, keys.Config{
		KeyName:     c.KeyName,
		Bits:        c.KeyBits,
		LockTimeout: c.KeyLockTimeout,
		Passphrase:  []byte(c.KeyPassphrase),
	}, logger)

	pair, err := provider.EnsureKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("key material error: %w", err)
	}

	publisher, closePublisher, err := newPublisher(c.NATSURL, logger)
	if err != nil {
		return nil, fmt.Errorf("status bus error: %w", err)
	}
	app.publisher = publisher
	app.closers = append(app.closers, closePublisher)

	app.metrics = metrics.New()
	app.credentials = services.NewCredentialService(services.CredentialServiceDeps{
		DB:              db,
		Repos:           rm,
		Codec:           auth.NewCodec(pair, c.AccessTokenValidityDuration, auth.WithClockSkew(c.ClockSkew)),
		Keys:            pair,
		Hasher:          hasher,
		Publisher:       publisher,
		Metrics:         app.metrics,
		Logger:          logger,
		AccessTokenTTL:  c.AccessTokenValidityDuration,
		RefreshTokenTTL: c.RefreshTokenValidityDuration,
	})

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.credentials)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "gRPC server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	router := httpapi.NewRouter(app.credentials, app.metrics.Handler())
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, router, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a signal arrives, then shuts down.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		runCleanup(ctx, app.credentials, app.config.CleanupInterval, app.logger)
	}()

	app.publisher.PublishStatus(ctx, events.StatusRunning)

	wg.Wait()

	// ctx is done by now
	app.publisher.PublishStatus(context.WithoutCancel(ctx), events.StatusNotRunning)

	app.close()
	app.logger.Info(ctx, "App stopped")
}

func (app *App) close() {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	if err := errors.Join(errs...); err != nil {
		app.logger.Error(context.Background(), "shutdown", "error", err)
	}
}
