package brokerauth

import (
	"time"
)

// AuthenticationValidator is the first pipeline stage: stateless checks that
// the context identifies a traceable, authenticated, reasonably fresh caller.
type AuthenticationValidator struct {
	cfg MediatorConfig
	now func() time.Time
}

// NewAuthenticationValidator creates an AuthenticationValidator.
func NewAuthenticationValidator(cfg MediatorConfig) *AuthenticationValidator {
	return &AuthenticationValidator{cfg: cfg, now: time.Now}
}

// Validate rejects untraceable, unauthenticated, or stale contexts.
func (v *AuthenticationValidator) Validate(sctx *SecurityContext) Result[*SecurityContext] {
	if sctx == nil || isBlank(sctx.CorrelationID) {
		return FailureCode[*SecurityContext](CodeContextInvalid)
	}

	if isBlank(sctx.UserID) {
		return Failure[*SecurityContext](Errorf(CodeAuthenticationFailed, "no authenticated principal"))
	}
	if len(sctx.UserID) < v.cfg.MinUserIDLength {
		return Failure[*SecurityContext](Errorf(CodeInvalidCredentials, "user id too short"))
	}

	if isBlank(sctx.SessionID) {
		return Failure[*SecurityContext](Errorf(CodeInvalidCredentials, "no session reference"))
	}

	if sctx.Age(v.now()) > v.cfg.MaxContextAge {
		return FailureCode[*SecurityContext](CodeExpiredCredentials)
	}

	return Success(sctx, sctx)
}

// AuthorizationValidator is the second pipeline stage: the caller's client
// application must be registered, and the clearance granted to that client
// must meet the operation's required level.
type AuthorizationValidator struct {
	clients map[string]SecurityLevel
}

// NewAuthorizationValidator creates an AuthorizationValidator over the
// configured client registry.
func NewAuthorizationValidator(cfg AuthorizationConfig) *AuthorizationValidator {
	clients := make(map[string]SecurityLevel, len(cfg.Clients))
	for id, level := range cfg.Clients {
		clients[id] = level
	}
	return &AuthorizationValidator{clients: clients}
}

// Authorize rejects unknown clients and under-privileged callers.
func (v *AuthorizationValidator) Authorize(sctx *SecurityContext) Result[*SecurityContext] {
	if sctx == nil {
		return FailureCode[*SecurityContext](CodeContextInvalid)
	}

	if isBlank(sctx.UserID) {
		return Failure[*SecurityContext](Errorf(CodeAuthorizationFailed, "unauthenticated principal"))
	}

	granted, known := v.clients[sctx.ClientID]
	if !known {
		return Failure[*SecurityContext](Errorf(CodeAuthorizationFailed, "unknown client"))
	}

	if granted < sctx.RequiredLevel {
		return FailureCode[*SecurityContext](CodeInsufficientPrivileges)
	}

	return Success(sctx, sctx)
}
