package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/traceledger/internal/audit"
	"github.com/wolfeidau/traceledger/internal/auth"
	"github.com/wolfeidau/traceledger/internal/bootstrap"
	httpmiddleware "github.com/wolfeidau/traceledger/internal/http"
	"github.com/wolfeidau/traceledger/internal/ledger"
	"github.com/wolfeidau/traceledger/internal/logger"
	"github.com/wolfeidau/traceledger/internal/models"
	"github.com/wolfeidau/traceledger/internal/registry"
	"github.com/wolfeidau/traceledger/internal/sequencer"
	"github.com/wolfeidau/traceledger/internal/server"
	"github.com/wolfeidau/traceledger/internal/service"
	"github.com/wolfeidau/traceledger/internal/store"
	"github.com/wolfeidau/traceledger/internal/store/journal"
	memorystore "github.com/wolfeidau/traceledger/internal/store/memory"
	postgresstore "github.com/wolfeidau/traceledger/internal/store/postgres"
	"github.com/wolfeidau/traceledger/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"TRACELEDGER_LISTEN"`
	Cert   string `help:"path to TLS cert file, serves plain HTTP when empty" default:"" env:"TRACELEDGER_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"TRACELEDGER_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"https://localhost" env:"TRACELEDGER_CORS_ORIGINS"`

	// Authentication
	JWTPublicKey string `help:"path to the PEM encoded ES256 public key used to verify bearer tokens" default:"" env:"TRACELEDGER_JWT_PUBLIC_KEY"`
	NoAuth       bool   `help:"trust the X-Caller-Identity header instead of bearer tokens (development only)" default:"false" env:"TRACELEDGER_NO_AUTH"`

	// Registry
	RegistryOwner string        `help:"identity that owns a fresh registry" required:"" env:"TRACELEDGER_REGISTRY_OWNER"`
	Seed          string        `help:"YAML or JSON seed applied when the audit log is empty" default:"" env:"TRACELEDGER_SEED" type:"existingfile"`
	QueueDepth    int           `help:"maximum number of mutations waiting to apply" default:"64" env:"TRACELEDGER_QUEUE_DEPTH"`
	Heartbeat     time.Duration `help:"keepalive interval for audit streams" default:"15s" env:"TRACELEDGER_STREAM_HEARTBEAT"`
	Limits        LimitFlags    `embed:"" prefix:"limits-"`

	// Operational modes
	Tracing     bool    `help:"enable tracing and metrics export" default:"false" env:"TRACELEDGER_TRACING"`
	SampleRatio float64 `help:"trace sample ratio" default:"1" env:"TRACELEDGER_TRACE_SAMPLE_RATIO"`

	// Store configuration
	StoreType     string             `help:"store type (memory, journal, or postgres)" default:"memory" env:"TRACELEDGER_STORE_TYPE" enum:"memory,journal,postgres"`
	JournalStore  JournalStoreFlags  `embed:"" prefix:"journal-"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

// LimitFlags bound registry growth. Zero means unbounded.
type LimitFlags struct {
	LedgersPerOrganization int `help:"maximum ledgers per organization" default:"0" env:"TRACELEDGER_LIMITS_LEDGERS_PER_ORG"`
	ProductsPerLedger      int `help:"maximum products per ledger" default:"0" env:"TRACELEDGER_LIMITS_PRODUCTS_PER_LEDGER"`
	BatchesPerProduct      int `help:"maximum batches per product" default:"0" env:"TRACELEDGER_LIMITS_BATCHES_PER_PRODUCT"`
	DataPerCategory        int `help:"maximum data log entries per ledger category" default:"0" env:"TRACELEDGER_LIMITS_DATA_PER_CATEGORY"`
}

func (l LimitFlags) limits() registry.Limits {
	return registry.Limits{
		MaxLedgersPerOrganization: l.LedgersPerOrganization,
		Ledger: ledger.Limits{
			MaxProducts: l.ProductsPerLedger,
			MaxBatches:  l.BatchesPerProduct,
			MaxData:     l.DataPerCategory,
		},
	}
}

type JournalStoreFlags struct {
	Path string `help:"path to the audit journal file" default:"./data/audit.jrn" env:"TRACELEDGER_JOURNAL_PATH"`
}

func (s *JournalStoreFlags) Validate() error {
	if s.Path == "" {
		return errors.New("journal path is required (--journal-path or TRACELEDGER_JOURNAL_PATH)")
	}
	return nil
}

type PostgresStoreFlags struct {
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	MaxConns        int32         `help:"maximum number of connections in pool" default:"8"`
	MinConns        int32         `help:"minimum number of connections in pool" default:"1"`
	MaxConnLifetime time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `help:"maximum connection idle time" default:"30m"`
	QueryTimeout    time.Duration `help:"per statement timeout" default:"10s"`

	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"TRACELEDGER_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (c *ServerCmd) openStore(ctx context.Context, log zerolog.Logger) (store.AuditStore, error) {
	switch c.StoreType {
	case "postgres":
		if err := c.PostgresStore.Validate(); err != nil {
			return nil, err
		}
		s, err := postgresstore.NewAuditStore(ctx, &postgresstore.AuditStoreConfig{
			Pool: postgresstore.PoolConfig{
				ConnString:      c.PostgresStore.ConnString,
				MaxConns:        c.PostgresStore.MaxConns,
				MinConns:        c.PostgresStore.MinConns,
				MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
				MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
			},
			AutoMigrate:  c.PostgresStore.AutoMigrate,
			QueryTimeout: c.PostgresStore.QueryTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres audit store: %w", err)
		}
		log.Info().Msg("Using PostgreSQL audit store")
		return s, nil

	case "journal":
		if err := c.JournalStore.Validate(); err != nil {
			return nil, err
		}
		j, err := journal.Open(c.JournalStore.Path)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", j.Path()).Int("records", j.Count()).Msg("Using journal audit store")
		return j, nil

	default:
		log.Warn().Msg("Using in-memory audit store, state is lost on exit")
		return memorystore.NewAuditStore(), nil
	}
}

func (c *ServerCmd) authMiddleware(log zerolog.Logger) (func(http.Handler) http.Handler, error) {
	if c.NoAuth {
		log.Warn().Msg("Authentication is disabled (--no-auth). This should only be used in development!")
		return auth.HeaderIdentityMiddleware, nil
	}
	if c.JWTPublicKey == "" {
		return nil, errors.New("JWT public key is required (--jwt-public-key) unless --no-auth is set")
	}
	pem, err := os.ReadFile(c.JWTPublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWT public key: %w", err)
	}
	return auth.NewJWTMiddleware(string(pem))
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			Version:     globals.Version,
			SampleRatio: c.SampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	authMiddleware, err := c.authMiddleware(log)
	if err != nil {
		return err
	}

	auditStore, err := c.openStore(ctx, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := auditStore.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close audit store")
		}
	}()

	svc, err := service.New(auditStore, service.Config{
		RegistryOwner: models.Identity(c.RegistryOwner),
		Limits:        c.Limits.limits(),
		Sequencer:     sequencer.Config{QueueDepth: c.QueueDepth},
		Audit:         audit.Config{},
	}, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error().Err(err).Msg("Failed to stop service")
		}
	}()

	if c.Seed != "" {
		seed, err := bootstrap.LoadSeed(c.Seed)
		if err != nil {
			return err
		}
		res, err := bootstrap.Apply(ctx, svc, seed)
		if err != nil {
			return fmt.Errorf("failed to apply seed: %w", err)
		}
		for code, ledgers := range res.Ledgers {
			for name, handle := range ledgers {
				log.Info().Str("org", code).Str("ledger", name).Str("handle", handle).Msg("Seeded ledger")
			}
		}
	}

	apiServer := server.NewServer(svc).WithHeartbeat(c.Heartbeat)

	// outermost first: request ID, client IP, request log, CORS, auth
	var handler http.Handler = apiServer.Handler(log)
	handler = authMiddleware(handler)
	handler = withCORS(c.CORSOrigins, handler)
	handler = logger.NewHTTPRequests(log).Wrap(handler)
	handler = httpmiddleware.ClientIPMiddleware()(handler)
	handler = httpmiddleware.RequestIDMiddleware()(handler)
	if c.Tracing {
		handler = otelhttp.NewHandler(handler, "traceledger",
			otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/health" }))
	}

	srv := configureHTTPServer(c.Listen, handler)
	srv.RegisterOnShutdown(apiServer.CloseStreams)

	errCh := make(chan error, 1)
	go func() {
		if c.Cert != "" || c.Key != "" {
			if _, err := os.Stat(c.Cert); err != nil {
				errCh <- fmt.Errorf("TLS certificate not found at %s: %w", c.Cert, err)
				return
			}
			if _, err := os.Stat(c.Key); err != nil {
				errCh <- fmt.Errorf("TLS key not found at %s: %w", c.Key, err)
				return
			}
			log.Info().Str("addr", c.Listen).Bool("auth", !c.NoAuth).Msg("Starting HTTPS server")
			errCh <- srv.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		log.Info().Str("addr", c.Listen).Bool("auth", !c.NoAuth).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	return nil
}

// withCORS adds CORS support to the JSON API.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Last-Event-ID", httpmiddleware.RequestIDHeader, auth.CallerHeader},
		ExposedHeaders: []string{httpmiddleware.RequestIDHeader},
	})
	return middleware.Handler(h)
}
