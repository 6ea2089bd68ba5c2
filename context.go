package brokerauth

import (
	"time"

	"github.com/google/uuid"
)

// SecurityContext carries everything the pipeline needs to judge a request:
// who is calling, from where, with what clearance requirement. A context is
// immutable once built; option funcs apply only inside NewSecurityContext.
//
// The correlation id is the one hard invariant: it is always set before the
// context enters the pipeline, and every audit record and error response can
// be traced back through it.
type SecurityContext struct {
	CorrelationID string
	UserID        string
	SessionID     string
	ClientID      string
	IPAddress     string
	UserAgent     string
	Timestamp     time.Time
	RequiredLevel SecurityLevel
	Attributes    map[string]string
}

// ContextOption mutates a SecurityContext during construction.
type ContextOption func(*SecurityContext)

// WithUser sets the principal's user id.
func WithUser(userID string) ContextOption {
	return func(c *SecurityContext) { c.UserID = userID }
}

// WithSession sets the session reference the caller presents.
func WithSession(sessionID string) ContextOption {
	return func(c *SecurityContext) { c.SessionID = sessionID }
}

// WithClient sets the calling client application id.
func WithClient(clientID string) ContextOption {
	return func(c *SecurityContext) { c.ClientID = clientID }
}

// WithOrigin sets the caller's network origin as seen at the edge.
func WithOrigin(ip, userAgent string) ContextOption {
	return func(c *SecurityContext) {
		c.IPAddress = ip
		c.UserAgent = userAgent
	}
}

// WithTimestamp overrides the construction time, for replayed or queued
// requests that carry their original issue time.
func WithTimestamp(ts time.Time) ContextOption {
	return func(c *SecurityContext) { c.Timestamp = ts }
}

// WithRequiredLevel sets the clearance the operation demands.
func WithRequiredLevel(level SecurityLevel) ContextOption {
	return func(c *SecurityContext) { c.RequiredLevel = level }
}

// WithAttribute adds one free-form attribute.
func WithAttribute(key, value string) ContextOption {
	return func(c *SecurityContext) {
		if c.Attributes == nil {
			c.Attributes = make(map[string]string, 4)
		}
		c.Attributes[key] = value
	}
}

// NewSecurityContext builds a validated SecurityContext. An empty or blank
// correlationID is a construction error, not a pipeline failure: callers must
// never be able to enter the pipeline untraceable.
func NewSecurityContext(correlationID string, opts ...ContextOption) (*SecurityContext, error) {
	if isBlank(correlationID) {
		return nil, NewError(CodeContextInvalid)
	}

	sc := &SecurityContext{
		CorrelationID: correlationID,
		Timestamp:     time.Now(),
		RequiredLevel: LevelStandard,
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc, nil
}

// NewCorrelationID produces a fresh correlation id for edge callers that did
// not propagate one.
func NewCorrelationID() string {
	return uuid.NewString()
}

// Attribute returns a free-form attribute and whether it was set.
func (c *SecurityContext) Attribute(key string) (string, bool) {
	if c == nil || c.Attributes == nil {
		return "", false
	}
	v, ok := c.Attributes[key]
	return v, ok
}

// Age returns how long ago the context was stamped, negative for
// future-dated timestamps.
func (c *SecurityContext) Age(now time.Time) time.Duration {
	return now.Sub(c.Timestamp)
}

// clone returns a shallow copy with a defensively copied attribute map, so a
// pipeline stage can annotate without mutating the caller's view.
func (c *SecurityContext) clone() *SecurityContext {
	if c == nil {
		return nil
	}
	out := *c
	if c.Attributes != nil {
		out.Attributes = make(map[string]string, len(c.Attributes))
		for k, v := range c.Attributes {
			out.Attributes[k] = v
		}
	}
	return &out
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
