package session

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a broker session.
type Status string

const (
	// StatusActive is an exported constant or variable used by the session store.
	StatusActive Status = "ACTIVE"
	// StatusRevoked is an exported constant or variable used by the session store.
	StatusRevoked Status = "REVOKED"
	// StatusExpired is an exported constant or variable used by the session store.
	StatusExpired Status = "EXPIRED"
	// StatusInvalid is an exported constant or variable used by the session store.
	StatusInvalid Status = "INVALID"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusRevoked || s == StatusExpired || s == StatusInvalid
}

// ErrTerminalState is returned by mutators invoked on a terminal session.
var ErrTerminalState = errors.New("session is in a terminal state")

// Session is one broker session record. Token fields hold AEAD blobs, never
// plaintext; VaultPath addresses the secret-store location holding the same
// material for the refresh engine.
//
// Version supports the store's check-and-swap writes and is advanced by the
// store, not by callers.
type Session struct {
	SessionID             string    `json:"session_id"`
	UserID                string    `json:"user_id"`
	Broker                string    `json:"broker_type"`
	EncryptedAccessToken  string    `json:"encrypted_access_token"`
	EncryptedRefreshToken string    `json:"encrypted_refresh_token,omitempty"`
	Status                Status    `json:"status"`
	CreatedAt             time.Time `json:"created_at"`
	ExpiresAt             time.Time `json:"expires_at"`
	LastAccessedAt        time.Time `json:"last_accessed_at"`
	UpdatedAt             time.Time `json:"updated_at"`
	VaultPath             string    `json:"vault_path"`
	Version               uint64    `json:"version"`
}

// New creates an ACTIVE session record stamped at now.
func New(sessionID, userID, broker, encryptedAccess, encryptedRefresh, vaultPath string, expiresAt, now time.Time) *Session {
	return &Session{
		SessionID:             sessionID,
		UserID:                userID,
		Broker:                broker,
		EncryptedAccessToken:  encryptedAccess,
		EncryptedRefreshToken: encryptedRefresh,
		Status:                StatusActive,
		CreatedAt:             now,
		ExpiresAt:             expiresAt,
		LastAccessedAt:        now,
		UpdatedAt:             now,
		VaultPath:             vaultPath,
		Version:               1,
	}
}

// IsActive reports whether the session is usable right now: ACTIVE status
// and an unexpired deadline, both required.
func (s *Session) IsActive(now time.Time) bool {
	return s != nil && s.Status == StatusActive && s.ExpiresAt.After(now)
}

// NeedsRefresh reports whether the refresh sweep should pick this session up:
// it is active and its remaining lifetime is at or under threshold.
func (s *Session) NeedsRefresh(now time.Time, threshold time.Duration) bool {
	if !s.IsActive(now) {
		return false
	}
	return s.ExpiresAt.Sub(now) <= threshold
}

// Touch updates the last-accessed stamp. Touching a terminal session is an
// error, not a silent no-op.
func (s *Session) Touch(now time.Time) error {
	if s.Status.Terminal() {
		return ErrTerminalState
	}
	s.LastAccessedAt = now
	s.UpdatedAt = now
	return nil
}

// Revoke transitions to REVOKED, terminally.
func (s *Session) Revoke(now time.Time) error {
	return s.transition(StatusRevoked, now)
}

// Expire transitions to EXPIRED, terminally.
func (s *Session) Expire(now time.Time) error {
	return s.transition(StatusExpired, now)
}

// Invalidate transitions to INVALID, terminally.
func (s *Session) Invalidate(now time.Time) error {
	return s.transition(StatusInvalid, now)
}

// ApplyRefresh installs freshly re-encrypted tokens and the new expiry after
// a successful broker refresh. Status is left untouched; a failed refresh is
// recorded by Expire, not here.
func (s *Session) ApplyRefresh(encryptedAccess, encryptedRefresh string, expiresAt, now time.Time) error {
	if s.Status.Terminal() {
		return ErrTerminalState
	}
	s.EncryptedAccessToken = encryptedAccess
	if encryptedRefresh != "" {
		s.EncryptedRefreshToken = encryptedRefresh
	}
	s.ExpiresAt = expiresAt
	s.LastAccessedAt = now
	s.UpdatedAt = now
	return nil
}

func (s *Session) transition(to Status, now time.Time) error {
	if s.Status.Terminal() {
		return ErrTerminalState
	}
	s.Status = to
	s.UpdatedAt = now
	return nil
}
