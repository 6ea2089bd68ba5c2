package brokerauth

import (
	"errors"
	"time"
)

// Config defines a public type used by brokerauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Mediator      MediatorConfig
	Authorization AuthorizationConfig
	Risk          RiskConfig
	Session       SessionConfig
	Refresh       RefreshConfig
	Cipher        CipherConfig
	Secrets       SecretsConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
MEDIATOR CONFIG
====================================
*/

// MediatorConfig defines a public type used by brokerauth APIs.
//
// MediatorConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MediatorConfig struct {
	// MaxContextAge is how old a context timestamp may be before the
	// authentication stage rejects it as expired.
	MaxContextAge time.Duration
	// MinUserIDLength is the shortest principal id the authentication stage
	// accepts.
	MinUserIDLength int
}

/*
====================================
AUTHORIZATION CONFIG
====================================
*/

// AuthorizationConfig defines a public type used by brokerauth APIs.
//
// AuthorizationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuthorizationConfig struct {
	// Clients maps a known client application id to the highest clearance
	// that client is granted. Unknown client ids are rejected outright.
	Clients map[string]SecurityLevel
}

/*
====================================
RISK CONFIG
====================================
*/

// RiskConfig defines a public type used by brokerauth APIs.
//
// RiskConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RiskConfig struct {
	MaxRequestsPerMinute int
	Window               time.Duration

	// Signal weights, summed and capped at MaxScore.
	PublicIPScore     int
	PrivateIPScore    int
	RateScoreCeiling  int
	TimingScore       int
	MissingAgentScore int

	// RecentWindow is how recent a timestamp must be to score zero on the
	// timing signal; StaleThreshold is where the full timing penalty starts.
	RecentWindow   time.Duration
	StaleThreshold time.Duration

	// Classification thresholds. Score < MediumThreshold is LOW,
	// < HighThreshold is MEDIUM, anything else HIGH. Rate-limit saturation
	// overrides all of them.
	MediumThreshold int
	HighThreshold   int
	MaxScore        int

	// UseRedisWindow backs the sliding window with Redis instead of the
	// in-process counter map, for horizontally scaled deployments. The
	// trade-off: counters survive restarts and are shared across nodes, at
	// one round-trip per assessment.
	UseRedisWindow bool
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by brokerauth APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	RedisPrefix string
	// DefaultTTL is used when a broker does not report token expiry.
	DefaultTTL time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig defines a public type used by brokerauth APIs.
//
// RefreshConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RefreshConfig struct {
	Enabled          bool
	Interval         time.Duration
	RefreshThreshold time.Duration
	MaxConcurrent    int
	// BrokerCallTimeout bounds one adapter refresh call, including the retry.
	BrokerCallTimeout time.Duration
	RetryEnabled      bool
	RetryBaseDelay    time.Duration
}

/*
====================================
CIPHER CONFIG
====================================
*/

// CipherConfig defines a public type used by brokerauth APIs.
//
// CipherConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CipherConfig struct {
	// Key is the Base64 encoding of exactly 32 raw key bytes. An empty key is
	// a fatal configuration error; this library never derives or stores key
	// material.
	Key string
	// Suite selects the AEAD: "aes-gcm" (default) or "chacha20-poly1305".
	Suite string
}

/*
====================================
SECRETS CONFIG
====================================
*/

// SecretsConfig defines a public type used by brokerauth APIs.
//
// SecretsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecretsConfig struct {
	// Backend is the first path segment under which all token material is
	// stored: "<backend>/<userId>/<broker-lowercase>".
	Backend string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by brokerauth APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by brokerauth APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
	// EnableLatencyHistogram additionally tracks the mediated-call latency
	// distribution. Counters alone are cheaper.
	EnableLatencyHistogram bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration callers adjust before
// passing to [Builder.WithConfig].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Mediator: MediatorConfig{
			MaxContextAge:   5 * time.Minute,
			MinUserIDLength: 3,
		},
		Authorization: AuthorizationConfig{
			Clients: nil,
		},
		Risk: RiskConfig{
			MaxRequestsPerMinute: 100,
			Window:               time.Minute,
			PublicIPScore:        25,
			PrivateIPScore:       5,
			RateScoreCeiling:     40,
			TimingScore:          30,
			MissingAgentScore:    15,
			RecentWindow:         5 * time.Minute,
			StaleThreshold:       time.Hour,
			MediumThreshold:      30,
			HighThreshold:        60,
			MaxScore:             100,
			UseRedisWindow:       false,
		},
		Session: SessionConfig{
			RedisPrefix: "session:",
			DefaultTTL:  8 * time.Hour,
		},
		Refresh: RefreshConfig{
			Enabled:           true,
			Interval:          2 * time.Minute,
			RefreshThreshold:  5 * time.Minute,
			MaxConcurrent:     8,
			BrokerCallTimeout: 10 * time.Second,
			RetryEnabled:      true,
			RetryBaseDelay:    250 * time.Millisecond,
		},
		Cipher: CipherConfig{
			Suite: "aes-gcm",
		},
		Secrets: SecretsConfig{
			Backend: "brokers",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                true,
			EnableLatencyHistogram: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Authorization.Clients != nil {
		out.Authorization.Clients = make(map[string]SecurityLevel, len(cfg.Authorization.Clients))
		for k, v := range cfg.Authorization.Clients {
			out.Authorization.Clients[k] = v
		}
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Mediator
	if c.Mediator.MaxContextAge <= 0 {
		return errors.New("Mediator MaxContextAge must be > 0")
	}
	if c.Mediator.MinUserIDLength <= 0 {
		return errors.New("Mediator MinUserIDLength must be > 0")
	}

	// Risk
	if c.Risk.MaxRequestsPerMinute <= 0 {
		return errors.New("Risk MaxRequestsPerMinute must be > 0")
	}
	if c.Risk.Window <= 0 {
		return errors.New("Risk Window must be > 0")
	}
	if c.Risk.MaxScore <= 0 {
		return errors.New("Risk MaxScore must be > 0")
	}
	if c.Risk.MediumThreshold <= 0 || c.Risk.HighThreshold <= c.Risk.MediumThreshold {
		return errors.New("Risk thresholds must satisfy 0 < MediumThreshold < HighThreshold")
	}
	if c.Risk.HighThreshold > c.Risk.MaxScore {
		return errors.New("Risk HighThreshold must be <= MaxScore")
	}

	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.DefaultTTL <= 0 {
		return errors.New("Session DefaultTTL must be > 0")
	}

	// Refresh
	if c.Refresh.Enabled {
		if c.Refresh.Interval <= 0 {
			return errors.New("Refresh Interval must be > 0")
		}
		if c.Refresh.RefreshThreshold <= 0 {
			return errors.New("Refresh RefreshThreshold must be > 0")
		}
		if c.Refresh.MaxConcurrent <= 0 {
			return errors.New("Refresh MaxConcurrent must be > 0")
		}
		if c.Refresh.BrokerCallTimeout <= 0 {
			return errors.New("Refresh BrokerCallTimeout must be > 0")
		}
		if c.Refresh.RetryEnabled && c.Refresh.RetryBaseDelay <= 0 {
			return errors.New("Refresh RetryBaseDelay must be > 0 when RetryEnabled is true")
		}
	}

	// Cipher
	if c.Cipher.Key == "" {
		return errors.New("Cipher Key is required")
	}
	if c.Cipher.Suite != "aes-gcm" && c.Cipher.Suite != "chacha20-poly1305" {
		return errors.New("unsupported Cipher Suite")
	}

	// Secrets
	if c.Secrets.Backend == "" {
		return errors.New("Secrets Backend must not be empty")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	return nil
}
