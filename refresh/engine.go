package refresh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantpulse/brokerauth/broker"
	"github.com/quantpulse/brokerauth/credcipher"
	"github.com/quantpulse/brokerauth/secrets"
	"github.com/quantpulse/brokerauth/session"
)

// Config tunes the refresh engine.
type Config struct {
	// Interval between sweep ticks.
	Interval time.Duration
	// Threshold is the remaining-lifetime window that makes a session a
	// refresh candidate.
	Threshold time.Duration
	// MaxConcurrent bounds the per-sweep fan-out.
	MaxConcurrent int
	// BrokerCallTimeout bounds one adapter refresh call including its retry.
	BrokerCallTimeout time.Duration
	// RetryEnabled grants each broker call one jittered retry.
	RetryEnabled bool
	// RetryBaseDelay is the nominal delay before the retry; actual delay is
	// jittered in [base/2, base*3/2).
	RetryBaseDelay time.Duration
	// FallbackTTL is applied when a broker does not report new token expiry.
	FallbackTTL time.Duration
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 2 * time.Minute
	}
	if c.Threshold <= 0 {
		c.Threshold = 5 * time.Minute
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 8
	}
	if c.BrokerCallTimeout <= 0 {
		c.BrokerCallTimeout = 10 * time.Second
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 250 * time.Millisecond
	}
	if c.FallbackTTL <= 0 {
		c.FallbackTTL = 8 * time.Hour
	}
}

// SweepStats summarizes one sweep cycle.
type SweepStats struct {
	Candidates int
	Refreshed  int
	Failed     int
	Skipped    bool
}

// ErrRefreshFailed wraps every per-session refresh failure reason.
var ErrRefreshFailed = errors.New("session refresh failed")

// Engine is the scheduled refresh sweep. One Engine owns one ticker loop;
// Sweep and RefreshSession are also independently callable (the manual
// refresh API).
type Engine struct {
	cfg      Config
	sessions *session.Store
	secrets  secrets.Store
	cipher   *credcipher.Cipher
	brokers  *broker.Registry
	events   Sink
	recorder Recorder
	logger   *slog.Logger

	sweeping atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewEngine wires a refresh [Engine]. A nil events sink drops events, a nil
// recorder discards counts, a nil logger discards logs.
func NewEngine(cfg Config, sessions *session.Store, secretStore secrets.Store, cipher *credcipher.Cipher, brokers *broker.Registry, events Sink, recorder Recorder, logger *slog.Logger) *Engine {
	cfg.applyDefaults()
	if events == nil {
		events = NoOpSink{}
	}
	if recorder == nil {
		recorder = NoOpRecorder{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		cfg:      cfg,
		sessions: sessions,
		secrets:  secretStore,
		cipher:   cipher,
		brokers:  brokers,
		events:   events,
		recorder: recorder,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start launches the ticker loop. The loop ends when ctx is canceled or
// Stop is called; Stop joins any in-flight sweep.
func (e *Engine) Start(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ticker := time.NewTicker(e.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := e.Sweep(ctx); err != nil {
					e.logger.Error("refresh sweep failed", slog.Any("error", err))
				}
			case <-ctx.Done():
				return
			case <-e.stop:
				return
			}
		}
	}()
}

// Stop ends the ticker loop and waits for the current sweep to finish.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stop)
	})
	e.wg.Wait()
}

// Sweep runs one refresh cycle: select candidates, fan out bounded
// concurrent refreshes, join. If the previous cycle is still in flight the
// tick is skipped rather than overlapped.
func (e *Engine) Sweep(ctx context.Context) (SweepStats, error) {
	if !e.sweeping.CompareAndSwap(false, true) {
		e.recorder.SweepSkipped()
		return SweepStats{Skipped: true}, nil
	}
	defer e.sweeping.Store(false)

	candidates, err := e.sessions.FindExpiringWithin(ctx, e.cfg.Threshold)
	if err != nil {
		return SweepStats{}, err
	}

	stats := SweepStats{Candidates: len(candidates)}
	if len(candidates) == 0 {
		return stats, nil
	}

	var refreshed, failed atomic.Int64

	// Per-candidate failures are isolated; the group context is only for
	// caller cancellation, so workers always return nil.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrent)
	for _, candidate := range candidates {
		candidate := candidate
		g.Go(func() error {
			if err := e.refreshOne(gctx, candidate); err != nil {
				failed.Add(1)
				e.logger.Warn("session refresh failed",
					slog.String("session_id", candidate.SessionID),
					slog.String("broker", candidate.Broker),
					slog.Any("error", err))
				return nil
			}
			refreshed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	stats.Refreshed = int(refreshed.Load())
	stats.Failed = int(failed.Load())

	e.logger.Info("refresh sweep complete",
		slog.Int("candidates", stats.Candidates),
		slog.Int("refreshed", stats.Refreshed),
		slog.Int("failed", stats.Failed))

	return stats, nil
}

// RefreshSession refreshes one session immediately, outside the sweep
// schedule. The session must currently be active.
func (e *Engine) RefreshSession(ctx context.Context, sessionID string) error {
	sess, err := e.sessions.Find(ctx, sessionID)
	if err != nil {
		return err
	}
	return e.refreshOne(ctx, sess)
}

// refreshOne drives the full per-candidate protocol: read and decrypt the
// refresh token, call the broker, re-encrypt and merge the new tokens, and
// extend the session. Any failure expires the session terminally and
// publishes a failure event.
func (e *Engine) refreshOne(ctx context.Context, sess *session.Session) error {
	blob, ok, err := e.secrets.Get(ctx, sess.VaultPath, secrets.KeyRefreshToken)
	if err != nil {
		return e.fail(ctx, sess, "secret store read failed")
	}
	if !ok || blob == "" {
		return e.fail(ctx, sess, "no refresh token in secret store")
	}

	refreshToken, err := e.cipher.Decrypt(blob)
	if err != nil {
		return e.fail(ctx, sess, "refresh token decrypt failed")
	}

	adapter, err := e.brokers.Find(broker.Type(sess.Broker))
	if err != nil {
		return e.fail(ctx, sess, "no broker adapter")
	}

	result, err := e.callBroker(ctx, adapter, refreshToken)
	if err != nil {
		return e.fail(ctx, sess, "broker refresh rejected")
	}

	encryptedAccess, err := e.cipher.Encrypt(result.AccessToken)
	if err != nil {
		return e.fail(ctx, sess, "token encrypt failed")
	}

	values := map[string]string{secrets.KeyAccessToken: encryptedAccess}
	encryptedRefresh := ""
	if result.RefreshToken != "" {
		encryptedRefresh, err = e.cipher.Encrypt(result.RefreshToken)
		if err != nil {
			return e.fail(ctx, sess, "token encrypt failed")
		}
		values[secrets.KeyRefreshToken] = encryptedRefresh
	}

	// Merge, never replace: unrelated keys at the path survive the refresh.
	if err := e.secrets.StoreBatch(ctx, sess.VaultPath, values); err != nil {
		return e.fail(ctx, sess, "secret store write failed")
	}

	expiresAt := result.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(e.cfg.FallbackTTL)
	}

	if err := e.sessions.ApplyRefresh(ctx, sess.SessionID, encryptedAccess, encryptedRefresh, expiresAt); err != nil {
		return e.fail(ctx, sess, "session update failed")
	}

	e.recorder.RefreshSucceeded()
	e.events.Publish(ctx, Event{
		SessionID: sess.SessionID,
		UserID:    sess.UserID,
		Broker:    sess.Broker,
		EventType: EventSuccess,
		Timestamp: time.Now(),
	})
	return nil
}

// callBroker runs the adapter call under the per-call timeout, with one
// jittered retry when enabled. The retry shares the timeout budget: a slow
// broker gets one attempt, a flaky one gets two fast ones.
func (e *Engine) callBroker(ctx context.Context, adapter broker.Adapter, refreshToken string) (broker.AuthResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.BrokerCallTimeout)
	defer cancel()

	result, err := adapter.RefreshToken(callCtx, refreshToken)
	if err == nil && result.Success {
		return result, nil
	}
	if !e.cfg.RetryEnabled {
		return broker.AuthResult{}, brokerCallError(result, err)
	}

	delay := e.cfg.RetryBaseDelay/2 + time.Duration(rand.Int63n(int64(e.cfg.RetryBaseDelay)))
	select {
	case <-time.After(delay):
	case <-callCtx.Done():
		return broker.AuthResult{}, callCtx.Err()
	}

	result, err = adapter.RefreshToken(callCtx, refreshToken)
	if err == nil && result.Success {
		return result, nil
	}
	return broker.AuthResult{}, brokerCallError(result, err)
}

func brokerCallError(result broker.AuthResult, err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("broker rejected refresh: %s", result.Message)
}

// fail marks the session terminally EXPIRED and publishes the failure event.
// The expiry write is best-effort: the event carries the reason either way.
func (e *Engine) fail(ctx context.Context, sess *session.Session, reason string) error {
	if _, err := e.sessions.MarkExpired(ctx, sess.SessionID); err != nil {
		e.logger.Error("failed to expire session after refresh failure",
			slog.String("session_id", sess.SessionID),
			slog.Any("error", err))
	}

	e.recorder.RefreshFailed()
	e.events.Publish(ctx, Event{
		SessionID: sess.SessionID,
		UserID:    sess.UserID,
		Broker:    sess.Broker,
		EventType: EventFailure,
		Reason:    reason,
		Timestamp: time.Now(),
	})

	return fmt.Errorf("%w: %s", ErrRefreshFailed, reason)
}
