package broker

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Type identifies one of the supported trading-broker integrations.
type Type string

const (
	// Zerodha is an exported constant or variable used by the broker adapter registry.
	Zerodha Type = "ZERODHA"
	// Upstox is an exported constant or variable used by the broker adapter registry.
	Upstox Type = "UPSTOX"
	// AngelOne is an exported constant or variable used by the broker adapter registry.
	AngelOne Type = "ANGEL_ONE"
	// ICICIDirect is an exported constant or variable used by the broker adapter registry.
	ICICIDirect Type = "ICICI_DIRECT"
)

// Parse maps a case-insensitive broker name to a [Type].
func Parse(s string) (Type, bool) {
	switch Type(strings.ToUpper(strings.TrimSpace(s))) {
	case Zerodha:
		return Zerodha, true
	case Upstox:
		return Upstox, true
	case AngelOne:
		return AngelOne, true
	case ICICIDirect:
		return ICICIDirect, true
	}
	return "", false
}

// Lower returns the broker name in the lowercase form used in secret-store
// paths.
func (t Type) Lower() string { return strings.ToLower(string(t)) }

// AuthRequest is the inbound broker authentication request handed to an
// [Adapter]. RequestToken is the short-lived token produced by the broker's
// login redirect; Credentials carries broker-specific extras (API key, TOTP,
// checksum) opaque to this library.
type AuthRequest struct {
	UserID       string
	Broker       Type
	RequestToken string
	Credentials  map[string]string
}

// AuthResult is what an [Adapter] returns from Authenticate and
// RefreshToken. Tokens arrive in plaintext from the wire client and must be
// encrypted by the caller before persistence; an AuthResult is never stored
// or logged.
type AuthResult struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
	Broker       Type
	ExpiresAt    time.Time
	Success      bool
	Message      string
}

// Adapter is the contract each broker-specific OAuth wire client implements.
// Adapters are external collaborators: this library only selects one by
// Supports and calls the two operations below.
type Adapter interface {
	Supports(broker Type) bool
	Authenticate(ctx context.Context, req AuthRequest) (AuthResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (AuthResult, error)
}

// ErrNoAdapter is returned when no registered adapter supports the broker.
var ErrNoAdapter = errors.New("no adapter for broker")

// Registry holds the configured adapters. Immutable after construction.
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates a [Registry] over the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// Find returns the first adapter supporting broker.
func (r *Registry) Find(broker Type) (Adapter, error) {
	for _, a := range r.adapters {
		if a.Supports(broker) {
			return a, nil
		}
	}
	return nil, ErrNoAdapter
}
