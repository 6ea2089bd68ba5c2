package brokerauth

import (
	"context"
	"strings"
	"time"
)

// Auditor turns pipeline outcomes into masked [AuditRecord]s and hands them
// to the async dispatcher. Auditing is fire-and-forget: no failure inside the
// auditor ever surfaces to the caller.
type Auditor struct {
	dispatcher *auditDispatcher
}

// NewAuditor creates an Auditor over the given config and sink. When auditing
// is disabled the returned Auditor is a no-op.
func NewAuditor(cfg AuditConfig, sink AuditSink) *Auditor {
	return &Auditor{dispatcher: newAuditDispatcher(cfg, sink)}
}

// LogAccess records one mediated access attempt. errCode is empty on success.
// A nil context still produces a record: denials of malformed requests must
// show up in the audit trail, just without identity fields.
func (a *Auditor) LogAccess(ctx context.Context, sctx *SecurityContext, operation string, success bool, errCode Code) {
	if a == nil || a.dispatcher == nil {
		return
	}

	record := AuditRecord{
		Timestamp: time.Now(),
		Operation: operation,
		Success:   success,
		ErrorCode: string(errCode),
	}
	if sctx != nil {
		record.CorrelationID = sctx.CorrelationID
		record.UserID = MaskPrincipal(sctx.UserID)
		record.SessionID = MaskSessionID(sctx.SessionID)
		record.ClientID = sctx.ClientID
		record.IP = MaskIP(sctx.IPAddress)
		record.RequiredLevel = sctx.RequiredLevel.String()
		record.AttributeCount = len(sctx.Attributes)
	}

	a.dispatcher.Emit(ctx, record)
}

// Dropped reports how many records were discarded because the buffer was full.
func (a *Auditor) Dropped() uint64 {
	if a == nil {
		return 0
	}
	return a.dispatcher.Dropped()
}

// Close drains and stops the dispatcher.
func (a *Auditor) Close() {
	if a == nil {
		return
	}
	a.dispatcher.Close()
}

// MaskPrincipal keeps the first two characters of a user id and replaces the
// rest with asterisks. Short ids are fully masked.
func MaskPrincipal(userID string) string {
	if userID == "" {
		return ""
	}
	if len(userID) <= 2 {
		return strings.Repeat("*", len(userID))
	}
	return userID[:2] + strings.Repeat("*", len(userID)-2)
}

// MaskSessionID keeps the first eight characters of a session id, enough to
// correlate against server logs without exposing the full handle.
func MaskSessionID(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	if len(sessionID) <= 8 {
		return strings.Repeat("*", len(sessionID))
	}
	return sessionID[:8] + strings.Repeat("*", len(sessionID)-8)
}

// MaskIP replaces the last octet of an IPv4 address with "x". Anything that
// does not look like dotted-quad (IPv6, hostnames) is masked entirely.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return "masked"
	}
	return strings.Join(parts[:3], ".") + ".x"
}
