package app

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"tiltakspenger-overgangsstonad/internal/brokers"
	"tiltakspenger-overgangsstonad/internal/brokers/kafka"
	"tiltakspenger-overgangsstonad/internal/common/errors"
	commonhttp "tiltakspenger-overgangsstonad/internal/common/http"
	"tiltakspenger-overgangsstonad/internal/common/logging"
	"tiltakspenger-overgangsstonad/internal/config"
	"tiltakspenger-overgangsstonad/internal/efsak"
	"tiltakspenger-overgangsstonad/internal/metrics"
	"tiltakspenger-overgangsstonad/internal/oauth2"
	"tiltakspenger-overgangsstonad/internal/overgangsstonad"
	"tiltakspenger-overgangsstonad/internal/rapids"
	"tiltakspenger-overgangsstonad/internal/server"
)

const shutdownTimeout = 30 * time.Second

// App holds all the application dependencies
type App struct {
	Config   *config.Config
	Rapid    *rapids.Rapid
	Service  *overgangsstonad.Service
	Tokens   *oauth2.AzureTokenProvider
	EFSak    *efsak.Client
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Server   *server.Server
	Handler  http.Handler
	Logger   logging.Logger

	alive atomic.Bool
}

// New creates the application on a Kafka rapid.
func New(cfg *config.Config) (*App, error) {
	broker, err := kafka.NewBroker(&kafka.Config{
		Brokers:           cfg.Kafka.Brokers,
		ClientID:          cfg.AppName,
		GroupID:           cfg.Kafka.GroupID,
		SecurityProtocol:  cfg.Kafka.Protocol(),
		ResetPolicy:       cfg.Kafka.ResetPolicy,
		CAPath:            cfg.Kafka.CAPath,
		CertificatePath:   cfg.Kafka.CertificatePath,
		PrivateKeyPath:    cfg.Kafka.PrivateKeyPath,
		KeystorePath:      cfg.Kafka.KeystorePath,
		CredstorePassword: cfg.Kafka.CredstorePassword,
		RedeliveryBackoff: cfg.Kafka.RedeliveryBackoff,
	})
	if err != nil {
		return nil, err
	}
	return NewWithBroker(cfg, broker)
}

// NewWithBroker wires the application on broker.
func NewWithBroker(cfg *config.Config, broker brokers.Broker) (*App, error) {
	app := &App{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
		Logger:   logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = metrics.New(app.Registry)

	if err := app.initializeEFSak(); err != nil {
		return nil, err
	}

	app.Rapid = rapids.New(broker, rapids.Config{
		Topic:    cfg.Kafka.Topic,
		AppName:  cfg.AppName,
		Instance: cfg.Instance,
		Image:    cfg.Image,
	}, app.Metrics)
	app.Service = overgangsstonad.NewService(app.Rapid, app.EFSak, cfg.BehovTimeout, app.Metrics)

	app.Handler = server.NewRouter(app.Registry, app.isAlive,
		app.Rapid.Health,
		app.EFSak.Health,
		app.Tokens.Health,
	)
	app.Server = server.New(app.Handler, cfg.Port)
	app.alive.Store(true)

	return app, nil
}

// initializeEFSak sets up the token provider and the EF sak client. Only
// calls to the identity provider go through the proxy.
func (app *App) initializeEFSak() error {
	proxy, err := commonhttp.ParseProxy(app.Config.Azure.HTTPProxy)
	if err != nil {
		return errors.ConfigError("invalid HTTP_PROXY: " + err.Error())
	}

	app.Tokens = oauth2.NewAzureTokenProvider(
		oauth2.Config{
			ClientID:     app.Config.Azure.ClientID,
			ClientSecret: app.Config.Azure.ClientSecret,
			WellKnownURL: app.Config.Azure.WellKnownURL,
			Scope:        app.Config.EFSak.Scope,
			ExpiryMargin: app.Config.Azure.TokenExpiryMargin,
		},
		oauth2.NewTokenCache(),
		commonhttp.NewHTTPClient(
			commonhttp.WithTimeout(app.Config.EFSak.Timeout),
			commonhttp.WithProxy(proxy),
		),
	).WithMetrics(app.Metrics)

	app.EFSak = efsak.NewClient(
		app.Config.EFSak.URL,
		commonhttp.NewHTTPClientWithTimeout(app.Config.EFSak.Timeout),
		app.Tokens,
	)

	app.Logger.Info("EF sak client initialized",
		logging.Field{Key: "url", Value: app.Config.EFSak.URL},
		logging.Field{Key: "scope", Value: app.Config.EFSak.Scope},
		logging.Field{Key: "proxy", Value: proxy != nil},
	)
	return nil
}

func (app *App) isAlive() error {
	if !app.alive.Load() {
		return errors.InternalError("rapid has stopped", nil)
	}
	return nil
}

// Start consumes the rapid and serves the platform endpoints until ctx is
// done or the rapid stops. Failed needs are redelivered by the broker, so
// the rapid only stops on transport failures, which are returned.
func (app *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		err := app.Rapid.Start(gctx)
		app.alive.Store(false)
		if err != nil {
			app.Logger.Error("Rapid stopped, see secure log for details", nil,
				logging.Field{Key: "error_type", Value: string(errors.GetType(err))},
				logging.Field{Key: "status_code", Value: errors.StatusCode(err)},
			)
			logging.Secure().Error("Rapid stopped", err)
		}
		return err
	})

	g.Go(app.Server.Start)

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		return app.Server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.Rapid != nil {
		if err := app.Rapid.Close(); err != nil {
			app.Logger.Warn("Error closing rapid", logging.Err(err))
		}
	}
}
