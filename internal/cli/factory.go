package cli

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/stepwise/internal/config"
	"github.com/aretw0/stepwise/internal/logging"
	"github.com/aretw0/stepwise/pkg/adapters/file"
	loamAdapter "github.com/aretw0/stepwise/pkg/adapters/loam"
	"github.com/aretw0/stepwise/pkg/adapters/memory"
	natsAdapter "github.com/aretw0/stepwise/pkg/adapters/nats"
	redisAdapter "github.com/aretw0/stepwise/pkg/adapters/redis"
	"github.com/aretw0/stepwise/pkg/maintenance"
	"github.com/aretw0/stepwise/pkg/persistence/middleware"
	"github.com/aretw0/stepwise/pkg/ports"
	"github.com/aretw0/stepwise/pkg/registry"
	"github.com/aretw0/stepwise/pkg/session"
)

// Factory wires hosts from configuration. Resources are opened lazily and
// released by Close.
type Factory struct {
	Config *config.Config
	Logger *slog.Logger

	// FlowsDir adds the step documents of a Loam repository to the built-in
	// maintenance flows. Empty serves the built-in flows only.
	FlowsDir string

	store   ports.StateStore
	redis   *redisAdapter.Store
	sink    ports.CompletionSink
	closers []io.Closer
}

// NewFactory creates a factory. A nil logger is built from cfg.Log on stderr.
func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = NewLogger(cfg.Log, nil)
	}
	return &Factory{Config: cfg, Logger: logger}
}

// NewLogger builds the application logger. A nil writer selects stderr so
// logs never mix with prompts or exported data on stdout.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return logging.NewWithWriter(w, logging.ParseLevel(cfg.Level), cfg.JSON)
}

// Store opens the configured state store wrapped in the configured middlewares.
func (f *Factory) Store() (ports.StateStore, error) {
	if f.store != nil {
		return f.store, nil
	}

	var base ports.StateStore
	switch f.Config.Store.Backend {
	case config.BackendMemory:
		base = memory.NewStore()
	case config.BackendFile:
		base = file.New(f.Config.Store.Dir)
	case config.BackendRedis:
		opts := []redisAdapter.Option{redisAdapter.WithTTL(f.Config.Store.TTL)}
		if f.Config.Redis.Prefix != "" {
			opts = append(opts, redisAdapter.WithPrefix(f.Config.Redis.Prefix))
		}
		f.redis = redisAdapter.New(f.Config.Redis.Addr, "", 0, opts...)
		f.closers = append(f.closers, f.redis)
		base = f.redis
	default:
		return nil, fmt.Errorf("unknown store backend %q", f.Config.Store.Backend)
	}

	mws, err := f.middlewares()
	if err != nil {
		return nil, err
	}
	f.store = middleware.Chain(base, mws...)
	f.Logger.Debug("store opened", "backend", f.Config.Store.Backend, "middlewares", len(mws))
	return f.store, nil
}

// middlewares returns PII masking before encryption, so masked values are
// what gets sealed.
func (f *Factory) middlewares() ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	sec := f.Config.Security
	if sec.MaskPII {
		mw, err := middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	if sec.EncryptionKey != "" {
		active, err := DecodeKey(sec.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("security.encryption_key: %w", err)
		}
		var fallbacks [][]byte
		for i, k := range sec.FallbackKeys {
			key, err := DecodeKey(k)
			if err != nil {
				return nil, fmt.Errorf("security.fallback_keys[%d]: %w", i, err)
			}
			fallbacks = append(fallbacks, key)
		}
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallbacks,
		})
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return mws, nil
}

// DecodeKey accepts a base64 or hex encoded key.
func DecodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if key, err := hex.DecodeString(s); err == nil && len(key) == 32 {
		return key, nil
	}
	if key, err := base64.StdEncoding.DecodeString(s); err == nil {
		return key, nil
	}
	if key, err := hex.DecodeString(s); err == nil {
		return key, nil
	}
	return nil, errors.New("key is neither base64 nor hex")
}

// Sink returns the NATS publisher when nats.url is set, nil otherwise.
func (f *Factory) Sink() (ports.CompletionSink, error) {
	if f.sink != nil || f.Config.NATS.URL == "" {
		return f.sink, nil
	}
	opts := []natsAdapter.Option{natsAdapter.WithLogger(f.Logger)}
	if f.Config.NATS.Subject != "" {
		opts = append(opts, natsAdapter.WithSubjectPrefix(f.Config.NATS.Subject))
	}
	pub, err := natsAdapter.Connect(f.Config.NATS.URL, opts...)
	if err != nil {
		return nil, err
	}
	f.closers = append(f.closers, pub)
	f.sink = pub
	return f.sink, nil
}

// Flows returns the built-in maintenance flows, followed by the step
// documents of FlowsDir when set.
func (f *Factory) Flows() (ports.FlowLoader, error) {
	reg := registry.NewRegistry()
	if err := maintenance.Register(reg, maintenance.Options{}); err != nil {
		return nil, err
	}
	if f.FlowsDir == "" {
		return reg, nil
	}
	docs, err := loamAdapter.Open(f.FlowsDir)
	if err != nil {
		return nil, err
	}
	return registry.NewMulti(reg, docs), nil
}

// Manager opens the run manager. Redis stores share their connection with
// a distributed locker.
func (f *Factory) Manager() (*session.Manager, error) {
	store, err := f.Store()
	if err != nil {
		return nil, err
	}
	opts := []session.Option{session.WithLogger(f.Logger)}
	if f.redis != nil {
		opts = append(opts, session.WithLocker(redisAdapter.NewLocker(f.redis.Client(), f.Config.Redis.Prefix)))
	}
	return session.NewManager(store, opts...), nil
}

// Service wires the run service used by the HTTP and MCP hosts.
func (f *Factory) Service() (*session.Service, error) {
	manager, err := f.Manager()
	if err != nil {
		return nil, err
	}
	flows, err := f.Flows()
	if err != nil {
		return nil, err
	}
	sink, err := f.Sink()
	if err != nil {
		return nil, err
	}
	opts := []session.ServiceOption{session.WithServiceLogger(f.Logger)}
	if sink != nil {
		opts = append(opts, session.WithSink(sink))
	}
	return session.NewService(manager, flows, opts...), nil
}

// Close releases every opened connection.
func (f *Factory) Close() error {
	var errs []error
	for i := len(f.closers) - 1; i >= 0; i-- {
		errs = append(errs, f.closers[i].Close())
	}
	f.closers = nil
	return errors.Join(errs...)
}

// Ping checks that the configured store answers.
func (f *Factory) Ping(ctx context.Context) error {
	store, err := f.Store()
	if err != nil {
		return err
	}
	_, err = store.List(ctx)
	return err
}
