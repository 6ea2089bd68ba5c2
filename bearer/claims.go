package bearer

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quantpulse/brokerauth"
)

// ErrTokenInvalid is returned for any token that fails verification or lacks
// the claims the pipeline requires. Deliberately indistinct.
var ErrTokenInvalid = errors.New("bearer: invalid token")

// Claims is the platform token shape this package understands. SessionID and
// ClientID ride in private claims beside the registered set.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid,omitempty"`
	ClientID  string `json:"cid,omitempty"`
}

// Verifier validates bearer tokens and maps their claims to security
// contexts. Safe for concurrent use.
type Verifier struct {
	parser  *jwt.Parser
	keyfunc jwt.Keyfunc
}

// NewHS256Verifier builds a [Verifier] over a shared HMAC secret.
func NewHS256Verifier(secret []byte) *Verifier {
	return &Verifier{
		parser:  jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired()),
		keyfunc: func(*jwt.Token) (any, error) { return secret, nil },
	}
}

// NewEd25519Verifier builds a [Verifier] over an Ed25519 public key.
func NewEd25519Verifier(pub ed25519.PublicKey) *Verifier {
	return &Verifier{
		parser:  jwt.NewParser(jwt.WithValidMethods([]string{"EdDSA"}), jwt.WithExpirationRequired()),
		keyfunc: func(*jwt.Token) (any, error) { return pub, nil },
	}
}

// Context verifies tokenString and builds a SecurityContext from its claims,
// stamped with the given correlation id and network origin. The token's
// issue time becomes the context timestamp so the pipeline's freshness
// checks see the token's age, not the call's.
func (v *Verifier) Context(tokenString, correlationID, ip, userAgent string) (*brokerauth.SecurityContext, error) {
	var claims Claims
	token, err := v.parser.ParseWithClaims(tokenString, &claims, v.keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	issuedAt := time.Now()
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}

	return brokerauth.NewSecurityContext(correlationID,
		brokerauth.WithUser(claims.Subject),
		brokerauth.WithSession(claims.SessionID),
		brokerauth.WithClient(claims.ClientID),
		brokerauth.WithOrigin(ip, userAgent),
		brokerauth.WithTimestamp(issuedAt),
	)
}
