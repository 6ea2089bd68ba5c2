package brokerauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/quantpulse/brokerauth/broker"
	"github.com/quantpulse/brokerauth/secrets"
)

// stubAdapter authenticates and refreshes Zerodha sessions with canned
// plaintext tokens.
type stubAdapter struct {
	rejectAuth bool
	expiresIn  time.Duration
}

func (a *stubAdapter) Supports(b broker.Type) bool { return b == broker.Zerodha }

func (a *stubAdapter) Authenticate(_ context.Context, req broker.AuthRequest) (broker.AuthResult, error) {
	if a.rejectAuth {
		return broker.AuthResult{Success: false, Message: "checksum mismatch"}, nil
	}
	expiresIn := a.expiresIn
	if expiresIn <= 0 {
		expiresIn = 8 * time.Hour
	}
	return broker.AuthResult{
		AccessToken:  "plain-access-token",
		RefreshToken: "plain-refresh-token",
		Broker:       req.Broker,
		ExpiresAt:    time.Now().Add(expiresIn),
		Success:      true,
	}, nil
}

func (a *stubAdapter) RefreshToken(context.Context, string) (broker.AuthResult, error) {
	return broker.AuthResult{
		AccessToken:  "refreshed-access-token",
		RefreshToken: "refreshed-refresh-token",
		Broker:       broker.Zerodha,
		ExpiresAt:    time.Now().Add(8 * time.Hour),
		Success:      true,
	}, nil
}

func testCipherKey(t *testing.T) string {
	t.Helper()

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("key generation failed: %v", err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func serviceTestConfig(t *testing.T) Config {
	cfg := defaultConfig()
	cfg.Cipher.Key = testCipherKey(t)
	cfg.Authorization.Clients = map[string]SecurityLevel{"terminal": LevelElevated}
	return cfg
}

func newTestService(t *testing.T, mutate func(*Config)) (*Service, *stubAdapter) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := serviceTestConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}

	adapter := &stubAdapter{}
	svc, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithAdapters(adapter).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(svc.Close)

	return svc, adapter
}

func authRequest() broker.AuthRequest {
	return broker.AuthRequest{
		UserID:       "U100",
		Broker:       broker.Zerodha,
		RequestToken: "req-token-123",
		Credentials:  map[string]string{"api_key": "k"},
	}
}

// loginContext carries the login placeholder session reference; broker
// authentication is the operation that mints the real one.
func loginContext(t *testing.T) *SecurityContext {
	t.Helper()

	sctx, err := NewSecurityContext(NewCorrelationID(),
		WithUser("U100"),
		WithSession("login"),
		WithClient("terminal"),
		WithOrigin("192.168.1.10", "go-client/1.0"),
	)
	if err != nil {
		t.Fatalf("context construction failed: %v", err)
	}
	return sctx
}

func authenticate(t *testing.T, svc *Service) *SessionInfo {
	t.Helper()

	result := svc.Authenticate(context.Background(), loginContext(t), authRequest())
	if result.IsFailure() {
		t.Fatalf("authenticate failed: %v", result.Err())
	}
	return result.MustValue()
}

func TestAuthenticateCreatesSessionAndSecrets(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	info := authenticate(t, svc)
	if info.SessionID == "" || info.UserID != "U100" || info.Broker != broker.Zerodha {
		t.Fatalf("session info = %+v", info)
	}
	if info.Status != "ACTIVE" {
		t.Fatalf("status = %s", info.Status)
	}

	// The stored session carries AEAD blobs, not plaintext.
	sess, err := svc.sessions.Find(ctx, info.SessionID)
	if err != nil {
		t.Fatalf("stored session not findable: %v", err)
	}
	if sess.EncryptedAccessToken == "plain-access-token" {
		t.Fatal("access token stored in plaintext")
	}
	if got, err := svc.cipher.Decrypt(sess.EncryptedAccessToken); err != nil || got != "plain-access-token" {
		t.Fatalf("stored blob does not decrypt to the broker token: %q, %v", got, err)
	}

	// The secret store holds both keys under the deterministic path.
	path := secrets.TokenPath("brokers", "U100", broker.Zerodha)
	if sess.VaultPath != path {
		t.Fatalf("vault path = %q, want %q", sess.VaultPath, path)
	}
	values, err := svc.secrets.GetAll(ctx, path)
	if err != nil {
		t.Fatalf("secret read failed: %v", err)
	}
	if values[secrets.KeyAccessToken] == "" || values[secrets.KeyRefreshToken] == "" {
		t.Fatalf("secret keys missing: %v", values)
	}
	if values[secrets.KeyRefreshToken] == "plain-refresh-token" {
		t.Fatal("refresh token stored in plaintext")
	}
}

func TestAuthenticateDeniedForUnknownClient(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	sctx := loginContext(t)
	sctx.ClientID = "rogue-app"

	result := svc.Authenticate(ctx, sctx, authRequest())
	if result.IsSuccess() || result.Err().Code != CodeAuthorizationFailed {
		t.Fatalf("unknown client: %v", result.Err())
	}

	// The denied request never reached the adapter or the secret store.
	exists, err := svc.secrets.Exists(ctx, secrets.TokenPath("brokers", "U100", broker.Zerodha))
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if exists {
		t.Fatal("secret store written despite gate denial")
	}
}

func TestAuthenticateBrokerRejection(t *testing.T) {
	svc, adapter := newTestService(t, nil)
	adapter.rejectAuth = true

	result := svc.Authenticate(context.Background(), loginContext(t), authRequest())
	if result.IsSuccess() || result.Err().Code != CodeAuthenticationFailed {
		t.Fatalf("broker rejection: %v", result.Err())
	}
}

func TestAuthenticateUnsupportedBroker(t *testing.T) {
	svc, _ := newTestService(t, nil)

	req := authRequest()
	req.Broker = broker.Upstox

	result := svc.Authenticate(context.Background(), loginContext(t), req)
	if result.IsSuccess() || result.Err().Code != CodeInvalidInput {
		t.Fatalf("unsupported broker: %v", result.Err())
	}
}

func TestAuthenticateNormalizesBrokerName(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	req := authRequest()
	req.Broker = broker.Type(" zerodha ")

	result := svc.Authenticate(ctx, loginContext(t), req)
	if result.IsFailure() {
		t.Fatalf("lowercase broker name rejected: %v", result.Err())
	}
	info := result.MustValue()
	if info.Broker != broker.Zerodha {
		t.Fatalf("broker = %q", info.Broker)
	}

	// The normalized name flows into the secret path too.
	sess, err := svc.sessions.Find(ctx, info.SessionID)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if want := secrets.TokenPath("brokers", "U100", broker.Zerodha); sess.VaultPath != want {
		t.Fatalf("vault path = %q, want %q", sess.VaultPath, want)
	}

	// A name outside the supported set never reaches the adapter registry.
	req.Broker = broker.Type("ROBINHOOD")
	bogus := svc.Authenticate(ctx, loginContext(t), req)
	if bogus.IsSuccess() || bogus.Err().Code != CodeInvalidInput {
		t.Fatalf("unknown broker name: %v", bogus.Err())
	}
}

func TestValidateSession(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	info := authenticate(t, svc)

	result := svc.ValidateSession(ctx, loginContext(t), info.SessionID)
	if result.IsFailure() {
		t.Fatalf("validate failed: %v", result.Err())
	}
	if got := result.MustValue(); got.SessionID != info.SessionID {
		t.Fatalf("session info = %+v", got)
	}

	missing := svc.ValidateSession(ctx, loginContext(t), "ghost")
	if missing.IsSuccess() || missing.Err().Code != CodeInvalidCredentials {
		t.Fatalf("missing session: %v", missing.Err())
	}
}

func TestRevokeSessionRemovesSecrets(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	info := authenticate(t, svc)
	path := secrets.TokenPath("brokers", "U100", broker.Zerodha)

	result := svc.RevokeSession(ctx, loginContext(t), info.SessionID)
	if result.IsFailure() {
		t.Fatalf("revoke failed: %v", result.Err())
	}
	if !result.MustValue() {
		t.Fatal("revoke reported no active session")
	}

	// Token material does not outlive the session.
	exists, err := svc.secrets.Exists(ctx, path)
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if exists {
		t.Fatal("secrets survived revocation")
	}

	// The session is gone from the caller's perspective.
	validate := svc.ValidateSession(ctx, loginContext(t), info.SessionID)
	if validate.IsSuccess() || validate.Err().Code != CodeInvalidCredentials {
		t.Fatalf("revoked session: %v", validate.Err())
	}

	// Revoking again succeeds with value false.
	again := svc.RevokeSession(ctx, loginContext(t), info.SessionID)
	if again.IsFailure() {
		t.Fatalf("second revoke errored: %v", again.Err())
	}
	if again.MustValue() {
		t.Fatal("second revoke reported an active session")
	}
}

func TestRevokeAllForUser(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	// Two concurrent sessions for the same user and broker.
	first := authenticate(t, svc)
	second := authenticate(t, svc)
	if first.SessionID == second.SessionID {
		t.Fatal("re-authentication reused the session id")
	}

	result := svc.RevokeAllForUser(ctx, loginContext(t), "U100")
	if result.IsFailure() {
		t.Fatalf("revoke all failed: %v", result.Err())
	}
	if got := result.MustValue(); got != 2 {
		t.Fatalf("revoked = %d", got)
	}

	count := svc.ActiveSessionCount(ctx, loginContext(t))
	if count.IsFailure() || count.MustValue() != 0 {
		t.Fatalf("count after revoke-all = %v, %v", count.MustValue(), count.Err())
	}

	// Nothing left to revoke on a second pass.
	again := svc.RevokeAllForUser(ctx, loginContext(t), "U100")
	if again.IsFailure() || again.MustValue() != 0 {
		t.Fatalf("second revoke-all = %v, %v", again.MustValue(), again.Err())
	}
}

func TestSessionsForUserAndCount(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	info := authenticate(t, svc)

	list := svc.SessionsForUser(ctx, loginContext(t), "U100", broker.Zerodha)
	if list.IsFailure() {
		t.Fatalf("list failed: %v", list.Err())
	}
	sessions := list.MustValue()
	if len(sessions) != 1 || sessions[0].SessionID != info.SessionID {
		t.Fatalf("sessions = %d", len(sessions))
	}

	count := svc.ActiveSessionCount(ctx, loginContext(t))
	if count.IsFailure() || count.MustValue() != 1 {
		t.Fatalf("count = %v, %v", count.MustValue(), count.Err())
	}

	// Another user sees nothing.
	other := svc.SessionsForUser(ctx, loginContext(t), "U200", broker.Zerodha)
	if other.IsFailure() || len(other.MustValue()) != 0 {
		t.Fatalf("other user's sessions = %d", len(other.MustValue()))
	}
}

func TestRefreshNow(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	info := authenticate(t, svc)

	result := svc.RefreshNow(ctx, loginContext(t), info.SessionID)
	if result.IsFailure() {
		t.Fatalf("refresh failed: %v", result.Err())
	}
	if !result.MustValue() {
		t.Fatal("refresh reported false")
	}

	// Rotated material landed in the session record.
	sess, err := svc.sessions.Find(ctx, info.SessionID)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got, err := svc.cipher.Decrypt(sess.EncryptedAccessToken); err != nil || got != "refreshed-access-token" {
		t.Fatalf("rotated token = %q, %v", got, err)
	}

	missing := svc.RefreshNow(ctx, loginContext(t), "ghost")
	if missing.IsSuccess() || missing.Err().Code != CodeInvalidCredentials {
		t.Fatalf("missing session: %v", missing.Err())
	}
}

func TestRefreshNowWithEngineDisabled(t *testing.T) {
	svc, _ := newTestService(t, func(cfg *Config) {
		cfg.Refresh.Enabled = false
	})

	result := svc.RefreshNow(context.Background(), loginContext(t), "any")
	if result.IsSuccess() || result.Err().Code != CodeConfigurationError {
		t.Fatalf("disabled engine: %v", result.Err())
	}
}

func TestServiceRateLimiting(t *testing.T) {
	svc, _ := newTestService(t, func(cfg *Config) {
		cfg.Risk.MaxRequestsPerMinute = 3
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if result := svc.ActiveSessionCount(ctx, loginContext(t)); result.IsFailure() {
			t.Fatalf("request %d denied early: %v", i+1, result.Err())
		}
	}

	result := svc.ActiveSessionCount(ctx, loginContext(t))
	if result.IsSuccess() || result.Err().Code != CodeRateLimitExceeded {
		t.Fatalf("over-budget request: %v", result.Err())
	}
}

func TestServiceMetricsCountOutcomes(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	info := authenticate(t, svc)

	if revoke := svc.RevokeSession(ctx, loginContext(t), info.SessionID); revoke.IsFailure() {
		t.Fatalf("revoke failed: %v", revoke.Err())
	}

	// One gate denial from an unknown client.
	sctx := loginContext(t)
	sctx.ClientID = "rogue-app"
	if denied := svc.ActiveSessionCount(ctx, sctx); denied.IsSuccess() {
		t.Fatal("unknown client passed the gate")
	}

	snap := svc.MetricsSnapshot()
	if got := snap.Counters[MetricSessionCreated]; got != 1 {
		t.Fatalf("sessions created = %d", got)
	}
	if got := snap.Counters[MetricSessionRevoked]; got != 1 {
		t.Fatalf("sessions revoked = %d", got)
	}
	if got := snap.Counters[MetricMediateSuccess]; got != 2 {
		t.Fatalf("mediate successes = %d", got)
	}
	if got := snap.Counters[MetricAuthzDenied]; got != 1 {
		t.Fatalf("authz denials = %d", got)
	}
}

func TestBuilderGuards(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := serviceTestConfig(t)

	if _, err := New().WithConfig(cfg).WithAdapters(&stubAdapter{}).Build(); err == nil {
		t.Fatal("build without redis succeeded")
	}
	if _, err := New().WithConfig(cfg).WithRedis(client).Build(); err == nil {
		t.Fatal("build without adapters succeeded")
	}

	noClients := cfg
	noClients.Authorization.Clients = nil
	if _, err := New().WithConfig(noClients).WithRedis(client).WithAdapters(&stubAdapter{}).Build(); err == nil {
		t.Fatal("build without client registry succeeded")
	}

	noKey := serviceTestConfig(t)
	noKey.Cipher.Key = ""
	if _, err := New().WithConfig(noKey).WithRedis(client).WithAdapters(&stubAdapter{}).Build(); err == nil {
		t.Fatal("build without cipher key succeeded")
	}

	builder := New().WithConfig(serviceTestConfig(t)).WithRedis(client).WithAdapters(&stubAdapter{})
	svc, err := builder.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(svc.Close)
	if _, err := builder.Build(); err == nil {
		t.Fatal("builder reuse succeeded")
	}
}

func TestWithCipherKeyOverridesConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := serviceTestConfig(t)
	cfg.Cipher.Key = ""

	svc, err := New().
		WithConfig(cfg).
		WithCipherKey(testCipherKey(t)).
		WithRedis(client).
		WithAdapters(&stubAdapter{}).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	svc.Close()
}
