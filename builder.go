package brokerauth

import (
	"errors"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/quantpulse/brokerauth/broker"
	"github.com/quantpulse/brokerauth/credcipher"
	"github.com/quantpulse/brokerauth/internal/rate"
	"github.com/quantpulse/brokerauth/refresh"
	"github.com/quantpulse/brokerauth/secrets"
	"github.com/quantpulse/brokerauth/session"
)

// Builder defines a public type used by brokerauth APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	secretStore secrets.Store
	adapters    []broker.Adapter
	auditSink   AuditSink
	eventSink   refresh.Sink
	logger      *slog.Logger

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the default configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the session store (and, when no
// explicit secret store is given, the secret store and rate window too).
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSecretStore overrides the secret-store backend. Production deployments
// pass a [secrets.VaultStore]; omitting this falls back to the Redis-hash
// backend over the same client as the session store.
func (b *Builder) WithSecretStore(store secrets.Store) *Builder {
	b.secretStore = store
	return b
}

// WithAdapters registers the broker wire clients.
func (b *Builder) WithAdapters(adapters ...broker.Adapter) *Builder {
	b.adapters = append(b.adapters, adapters...)
	return b
}

// WithAuditSink sets the destination for masked audit records.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithEventSink sets the destination for refresh lifecycle events.
func (b *Builder) WithEventSink(sink refresh.Sink) *Builder {
	b.eventSink = sink
	return b
}

// WithLogger sets the structured logger. Omitting it discards logs.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithCipherKey sets the Base64-encoded 32-byte encryption key.
func (b *Builder) WithCipherKey(keyBase64 string) *Builder {
	b.config.Cipher.Key = keyBase64
	return b
}

// Build wires the object graph once: cipher, stores, gate stages, mediator,
// refresh engine, service. Build validates everything up front — a Service
// that builds is a Service whose configuration is usable.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(b.adapters) == 0 {
		return nil, errors.New("at least one broker adapter required")
	}
	if len(cfg.Authorization.Clients) == 0 {
		return nil, errors.New("authorization client registry must not be empty")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// -------- CIPHER --------
	cipher, err := credcipher.New(cfg.Cipher.Key, credcipher.Suite(cfg.Cipher.Suite))
	if err != nil {
		return nil, err
	}

	// -------- STORES --------
	sessionStore := session.NewStore(b.redis, cfg.Session.RedisPrefix)

	secretStore := b.secretStore
	if secretStore == nil {
		secretStore = secrets.NewRedisStore(b.redis)
	}

	// -------- GATE STAGES --------
	var counter rate.Counter
	if cfg.Risk.UseRedisWindow {
		counter = rate.NewRedisWindow(b.redis, cfg.Risk.Window)
	} else {
		counter = rate.NewMemoryWindow(cfg.Risk.Window)
	}

	metrics := NewMetrics(cfg.Metrics)

	authn := NewAuthenticationValidator(cfg.Mediator)
	authz := NewAuthorizationValidator(cfg.Authorization)
	risk := NewRiskAssessor(cfg.Risk, counter, logger)
	auditor := NewAuditor(cfg.Audit, b.auditSink)
	mediator := NewMediator(authn, authz, risk, auditor, metrics)

	// -------- BROKER REGISTRY --------
	registry := broker.NewRegistry(b.adapters...)

	// -------- REFRESH ENGINE --------
	var refresher *refresh.Engine
	if cfg.Refresh.Enabled {
		refresher = refresh.NewEngine(refresh.Config{
			Interval:          cfg.Refresh.Interval,
			Threshold:         cfg.Refresh.RefreshThreshold,
			MaxConcurrent:     cfg.Refresh.MaxConcurrent,
			BrokerCallTimeout: cfg.Refresh.BrokerCallTimeout,
			RetryEnabled:      cfg.Refresh.RetryEnabled,
			RetryBaseDelay:    cfg.Refresh.RetryBaseDelay,
			FallbackTTL:       cfg.Session.DefaultTTL,
		}, sessionStore, secretStore, cipher, registry, b.eventSink, refreshRecorder{metrics}, logger)
	}

	b.built = true

	return &Service{
		cfg:       cfg,
		mediator:  mediator,
		sessions:  sessionStore,
		secrets:   secretStore,
		cipher:    cipher,
		brokers:   registry,
		refresher: refresher,
		auditor:   auditor,
		metrics:   metrics,
		logger:    logger,
	}, nil
}
