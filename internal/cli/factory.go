package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/internal/adapters/amqp"
	"github.com/aretw0/triage/internal/adapters/bolt"
	"github.com/aretw0/triage/internal/adapters/file"
	"github.com/aretw0/triage/internal/adapters/postgres"
	"github.com/aretw0/triage/internal/config"
	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/adapters/memory"
	"github.com/aretw0/triage/pkg/adapters/redis"
	"github.com/aretw0/triage/pkg/adapters/remote"
	"github.com/aretw0/triage/pkg/flow"
	"github.com/aretw0/triage/pkg/observability"
	"github.com/aretw0/triage/pkg/persistence/middleware"
	"github.com/aretw0/triage/pkg/ports"
)

// App is a fully wired Wizard plus the resources it owns.
type App struct {
	Wizard  *triage.Wizard
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
	// Remote is the service the wizard talks to.
	Remote ports.RemoteService

	closers []func() error
}

// Close releases stores, connections and publishers in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// NewLogger builds the process logger from the log section. Logs go to w,
// which keeps stdout free for the wizard and JSON-RPC.
func NewLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	return logging.NewWithFormat(w, logging.ParseLevel(cfg.Level), cfg.Format)
}

// NewApp wires the Wizard described by cfg. The caller must Close the app.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	app := &App{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	ok := false
	defer func() {
		if !ok {
			_ = app.Close()
		}
	}()

	store, locker, err := app.openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	store, err = secureStore(store, cfg.Security)
	if err != nil {
		return nil, err
	}

	app.Remote = newRemote(cfg.Remote, logger)

	opts := []triage.Option{
		triage.WithStore(store),
		triage.WithLogger(logger),
		triage.WithHistoryCap(cfg.Flow.HistoryCap),
		triage.WithLifecycleHooks(app.Metrics.Hooks()),
		triage.WithLifecycleHooks(observability.LoggingHooks(logger)),
	}
	if locker != nil {
		opts = append(opts, triage.WithLocker(locker))
	}
	if cfg.Remote.Timeout > 0 {
		// audio upload, submit and report fetch each get one remote timeout
		opts = append(opts, triage.WithLatchTimeout(3*cfg.Remote.Timeout+10*time.Second))
	}
	if cfg.Flow.Definition != "" {
		def, err := flow.LoadDefinitionFile(cfg.Flow.Definition)
		if err != nil {
			return nil, err
		}
		opts = append(opts, triage.WithDefinition(def))
	}
	if cfg.Events.AMQPURL != "" {
		pub, err := amqp.Dial(cfg.Events.AMQPURL, amqp.WithLogger(logger), amqp.WithExchange(cfg.Events.Exchange))
		if err != nil {
			return nil, err
		}
		app.onClose(pub.Close)
		opts = append(opts, triage.WithPublisher(pub))
	}

	app.Wizard, err = triage.New(app.Remote, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing wizard: %w", err)
	}
	ok = true
	return app, nil
}

// openStore opens the configured backend. The locker is only set for
// redis with locking enabled.
func (a *App) openStore(ctx context.Context, cfg config.StoreConfig) (ports.BlobStore, ports.DistributedLocker, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.NewStore(), nil, nil

	case config.DriverFile, "":
		return file.New(filepath.Join(cfg.Path, "store")), nil, nil

	case config.DriverBolt:
		path := cfg.Path
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "triage.db")
		}
		st, err := bolt.Open(path)
		if err != nil {
			return nil, nil, err
		}
		a.onClose(st.Close)
		return st, nil, nil

	case config.DriverRedis:
		var opts []redis.Option
		if cfg.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Prefix))
		}
		if cfg.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.TTL))
		}
		st := redis.New(cfg.URL, cfg.Password, 0, opts...)
		a.onClose(st.Close)
		if err := st.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.URL, err)
		}
		if cfg.Lock {
			return st, redis.NewLocker(st.Client(), cfg.Prefix), nil
		}
		return st, nil, nil

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		st, err := postgres.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		a.onClose(func() error { st.Close(); return nil })
		return st, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// secureStore wraps store with PII masking and encryption. Masking runs
// first so the masked document is what gets encrypted.
func secureStore(store ports.BlobStore, cfg config.SecurityConfig) (ports.BlobStore, error) {
	var mws []middleware.Middleware
	if len(cfg.PIIFields) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.PIIFields, cfg.PIIScopes...)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	if cfg.EncryptionKey != "" {
		active, err := middleware.ParseKey(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("encryption key: %w", err)
		}
		var fallback [][]byte
		for i, k := range cfg.FallbackKeys {
			key, err := middleware.ParseKey(k)
			if err != nil {
				return nil, fmt.Errorf("fallback key %d: %w", i+1, err)
			}
			fallback = append(fallback, key)
		}
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return middleware.Chain(store, mws...), nil
}

func newRemote(cfg config.RemoteConfig, logger *slog.Logger) ports.RemoteService {
	if cfg.Mock() {
		logger.Info("no remote url configured, using the built-in mock service")
		return remote.NewMock()
	}
	return remote.NewClient(strings.TrimRight(cfg.URL, "/"),
		remote.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		remote.WithClientLogger(logger),
	)
}
