package brokerauth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quantpulse/brokerauth/broker"
	"github.com/quantpulse/brokerauth/credcipher"
	"github.com/quantpulse/brokerauth/refresh"
	"github.com/quantpulse/brokerauth/secrets"
	"github.com/quantpulse/brokerauth/session"
)

// SessionInfo is the sanitized session view returned to callers. It never
// carries token material, encrypted or otherwise.
type SessionInfo struct {
	SessionID      string
	UserID         string
	Broker         broker.Type
	Status         session.Status
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastAccessedAt time.Time
}

func infoOf(s *session.Session) *SessionInfo {
	return &SessionInfo{
		SessionID:      s.SessionID,
		UserID:         s.UserID,
		Broker:         broker.Type(s.Broker),
		Status:         s.Status,
		CreatedAt:      s.CreatedAt,
		ExpiresAt:      s.ExpiresAt,
		LastAccessedAt: s.LastAccessedAt,
	}
}

// Service is the facade the platform calls. Every operation runs under the
// mediator's zero-trust gate; nothing here is reachable without passing
// authentication, authorization, and risk scoring first.
type Service struct {
	cfg       Config
	mediator  *Mediator
	sessions  *session.Store
	secrets   secrets.Store
	cipher    *credcipher.Cipher
	brokers   *broker.Registry
	refresher *refresh.Engine
	auditor   *Auditor
	metrics   *Metrics
	logger    *slog.Logger
}

// Close stops the refresh engine and drains the audit dispatcher.
func (s *Service) Close() {
	if s == nil {
		return
	}
	if s.refresher != nil {
		s.refresher.Stop()
	}
	if s.auditor != nil {
		s.auditor.Close()
	}
}

// Mediator exposes the pipeline for callers composing their own operations.
func (s *Service) Mediator() *Mediator { return s.mediator }

// StartRefreshLoop launches the scheduled refresh sweep. No-op when the
// refresh engine is disabled by configuration.
func (s *Service) StartRefreshLoop(ctx context.Context) {
	if s.refresher != nil {
		s.refresher.Start(ctx)
	}
}

// AuditDropped reports how many audit records were discarded under pressure.
func (s *Service) AuditDropped() uint64 {
	if s == nil {
		return 0
	}
	return s.auditor.Dropped()
}

// MetricsSnapshot exposes the collector's current counters for exporters.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return s.metrics.Snapshot()
}

// Authenticate runs a broker authentication end to end: adapter call,
// token encryption, secret-store write, session creation. The context's
// session reference requirement is waived by callers passing the login
// placeholder — authentication is the operation that mints the session.
func (s *Service) Authenticate(ctx context.Context, sctx *SecurityContext, req broker.AuthRequest) Result[*SessionInfo] {
	return Mediate(ctx, s.mediator, sctx, "broker.authenticate", func(ctx context.Context) (*SessionInfo, error) {
		// Inbound broker names arrive in whatever case the platform's HTTP
		// layer passed through; normalize before the adapter lookup.
		brokerType, ok := broker.Parse(string(req.Broker))
		if !ok {
			return nil, Errorf(CodeInvalidInput, "unsupported broker %s", req.Broker)
		}
		req.Broker = brokerType

		adapter, err := s.brokers.Find(brokerType)
		if err != nil {
			return nil, Errorf(CodeInvalidInput, "unsupported broker %s", brokerType)
		}

		result, err := adapter.Authenticate(ctx, req)
		if err != nil {
			return nil, WrapError(CodeAuthenticationFailed, err)
		}
		if !result.Success {
			return nil, Errorf(CodeAuthenticationFailed, "broker rejected authentication")
		}

		sessionID := result.SessionID
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		encryptedAccess, err := s.cipher.Encrypt(result.AccessToken)
		if err != nil {
			return nil, WrapError(CodeSystemError, err)
		}

		path := secrets.TokenPath(s.cfg.Secrets.Backend, req.UserID, brokerType)
		values := map[string]string{secrets.KeyAccessToken: encryptedAccess}

		encryptedRefresh := ""
		if result.RefreshToken != "" {
			encryptedRefresh, err = s.cipher.Encrypt(result.RefreshToken)
			if err != nil {
				return nil, WrapError(CodeSystemError, err)
			}
			values[secrets.KeyRefreshToken] = encryptedRefresh
		}

		if err := s.secrets.StoreBatch(ctx, path, values); err != nil {
			return nil, WrapError(CodeSystemError, err)
		}

		now := time.Now()
		expiresAt := result.ExpiresAt
		if expiresAt.IsZero() || !expiresAt.After(now) {
			expiresAt = now.Add(s.cfg.Session.DefaultTTL)
		}

		sess := session.New(sessionID, req.UserID, string(req.Broker), encryptedAccess, encryptedRefresh, path, expiresAt, now)
		if err := s.sessions.Save(ctx, sess); err != nil {
			return nil, WrapError(CodeSystemError, err)
		}

		s.metrics.Inc(MetricSessionCreated)
		s.logger.Info("broker session created",
			slog.String("correlation_id", sctx.CorrelationID),
			slog.String("session_id", MaskSessionID(sessionID)),
			slog.String("broker", string(req.Broker)))

		return infoOf(sess), nil
	})
}

// ValidateSession returns the session if it is usable and stamps the access.
func (s *Service) ValidateSession(ctx context.Context, sctx *SecurityContext, sessionID string) Result[*SessionInfo] {
	return Mediate(ctx, s.mediator, sctx, "session.validate", func(ctx context.Context) (*SessionInfo, error) {
		sess, err := s.sessions.Find(ctx, sessionID)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return nil, Errorf(CodeInvalidCredentials, "session not found or inactive")
			}
			return nil, WrapError(CodeSystemError, err)
		}

		if _, err := s.sessions.Touch(ctx, sessionID); err != nil {
			return nil, WrapError(CodeSystemError, err)
		}

		return infoOf(sess), nil
	})
}

// RevokeSession terminates a session and deletes its token material from
// the secret store. The value reports whether an active session existed.
func (s *Service) RevokeSession(ctx context.Context, sctx *SecurityContext, sessionID string) Result[bool] {
	return Mediate(ctx, s.mediator, sctx, "session.revoke", func(ctx context.Context) (bool, error) {
		sess, err := s.sessions.Find(ctx, sessionID)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return false, nil
			}
			return false, WrapError(CodeSystemError, err)
		}

		revoked, err := s.sessions.Revoke(ctx, sessionID)
		if err != nil {
			return false, WrapError(CodeSystemError, err)
		}
		if !revoked {
			return false, nil
		}
		s.metrics.Inc(MetricSessionRevoked)

		// Token material must not outlive the session. Secret deletion is
		// best-effort: a failure leaves only encrypted blobs behind and the
		// path is overwritten on the next authentication.
		if err := s.secrets.Delete(ctx, sess.VaultPath); err != nil {
			s.logger.Warn("secret cleanup after revoke failed",
				slog.String("correlation_id", sctx.CorrelationID),
				slog.String("session_id", MaskSessionID(sessionID)),
				slog.Any("error", err))
		}

		return true, nil
	})
}

// RevokeAllForUser terminates every active session the user holds, across
// brokers, deleting each session's token material. The value is the number
// of sessions revoked.
func (s *Service) RevokeAllForUser(ctx context.Context, sctx *SecurityContext, userID string) Result[int] {
	return Mediate(ctx, s.mediator, sctx, "session.revoke_all", func(ctx context.Context) (int, error) {
		found, err := s.sessions.FindActiveByUser(ctx, userID)
		if err != nil {
			return 0, WrapError(CodeSystemError, err)
		}

		revoked := 0
		for _, sess := range found {
			ok, err := s.sessions.Revoke(ctx, sess.SessionID)
			if err != nil {
				return revoked, WrapError(CodeSystemError, err)
			}
			if !ok {
				continue
			}
			revoked++
			s.metrics.Inc(MetricSessionRevoked)

			if err := s.secrets.Delete(ctx, sess.VaultPath); err != nil {
				s.logger.Warn("secret cleanup after revoke failed",
					slog.String("correlation_id", sctx.CorrelationID),
					slog.String("session_id", MaskSessionID(sess.SessionID)),
					slog.Any("error", err))
			}
		}
		return revoked, nil
	})
}

// SessionsForUser lists the caller's active sessions for one broker.
func (s *Service) SessionsForUser(ctx context.Context, sctx *SecurityContext, userID string, brokerType broker.Type) Result[[]*SessionInfo] {
	return Mediate(ctx, s.mediator, sctx, "session.list", func(ctx context.Context) ([]*SessionInfo, error) {
		found, err := s.sessions.FindActiveByUserAndBroker(ctx, userID, string(brokerType))
		if err != nil {
			return nil, WrapError(CodeSystemError, err)
		}

		infos := make([]*SessionInfo, 0, len(found))
		for _, sess := range found {
			infos = append(infos, infoOf(sess))
		}
		return infos, nil
	})
}

// ActiveSessionCount reports the number of usable sessions across the store.
func (s *Service) ActiveSessionCount(ctx context.Context, sctx *SecurityContext) Result[int] {
	return Mediate(ctx, s.mediator, sctx, "session.count", func(ctx context.Context) (int, error) {
		count, err := s.sessions.CountActive(ctx)
		if err != nil {
			return 0, WrapError(CodeSystemError, err)
		}
		return count, nil
	})
}

// RefreshNow refreshes one session immediately, outside the sweep schedule.
func (s *Service) RefreshNow(ctx context.Context, sctx *SecurityContext, sessionID string) Result[bool] {
	return Mediate(ctx, s.mediator, sctx, "session.refresh", func(ctx context.Context) (bool, error) {
		if s.refresher == nil {
			return false, Errorf(CodeConfigurationError, "refresh engine disabled")
		}
		if err := s.refresher.RefreshSession(ctx, sessionID); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return false, Errorf(CodeInvalidCredentials, "session not found or inactive")
			}
			return false, WrapError(CodeOperationFailed, err)
		}
		return true, nil
	})
}
