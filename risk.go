package brokerauth

import (
	"context"
	"io"
	"log/slog"
	"net/netip"
	"time"

	"github.com/quantpulse/brokerauth/internal/rate"
)

// RiskClass is the bucket a composite risk score falls into.
type RiskClass int

const (
	// RiskLow is an exported constant or variable used by the mediation pipeline.
	RiskLow RiskClass = iota
	// RiskMedium is an exported constant or variable used by the mediation pipeline.
	RiskMedium
	// RiskHigh is an exported constant or variable used by the mediation pipeline.
	RiskHigh
	// RiskRateLimited is an exported constant or variable used by the mediation pipeline.
	RiskRateLimited
)

// String renders the class for logs.
func (c RiskClass) String() string {
	switch c {
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	case RiskRateLimited:
		return "RATE_LIMITED"
	}
	return "UNKNOWN"
}

// RiskAssessment is the scored outcome of one assessment, exposed for
// diagnostics and tests.
type RiskAssessment struct {
	Score int
	Class RiskClass
}

// RiskAssessor computes a composite risk score from four independent signals
// (network origin, request rate, timestamp freshness, user agent) and
// classifies it. LOW and MEDIUM pass; HIGH and RATE_LIMITED deny. The
// assessor fails closed: an internal error while scoring denies the request.
//
// The rate counter is owned by the instance, never package-global; inject the
// same assessor everywhere the same abuse budget should apply.
type RiskAssessor struct {
	cfg     RiskConfig
	counter rate.Counter
	logger  *slog.Logger
	now     func() time.Time
}

// NewRiskAssessor creates a RiskAssessor over the given counter backend.
// A nil logger disables the MEDIUM-class warning log.
func NewRiskAssessor(cfg RiskConfig, counter rate.Counter, logger *slog.Logger) *RiskAssessor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RiskAssessor{
		cfg:     cfg,
		counter: counter,
		logger:  logger,
		now:     time.Now,
	}
}

// Assess scores sctx and returns it unchanged on pass, or a risk-group
// failure on deny.
func (r *RiskAssessor) Assess(ctx context.Context, sctx *SecurityContext) Result[*SecurityContext] {
	if sctx == nil {
		return FailureCode[*SecurityContext](CodeContextInvalid)
	}

	assessment, err := r.Evaluate(ctx, sctx)
	if err != nil {
		// Fail closed: an unscoreable request is a denied request.
		r.logger.Warn("risk evaluation failed, denying",
			slog.String("correlation_id", sctx.CorrelationID),
			slog.Any("error", err))
		return Failure[*SecurityContext](WrapError(CodeRiskTooHigh, err))
	}

	switch assessment.Class {
	case RiskLow:
		return Success(sctx, sctx)
	case RiskMedium:
		r.logger.Warn("medium risk request allowed",
			slog.String("correlation_id", sctx.CorrelationID),
			slog.Int("score", assessment.Score))
		return Success(sctx, sctx)
	case RiskRateLimited:
		return FailureCode[*SecurityContext](CodeRateLimitExceeded)
	default:
		return Failure[*SecurityContext](Errorf(CodeRiskTooHigh, "risk score %d exceeds threshold", assessment.Score))
	}
}

// Evaluate computes the raw score and class without making a pass/fail
// decision.
func (r *RiskAssessor) Evaluate(ctx context.Context, sctx *SecurityContext) (RiskAssessment, error) {
	rateScore, saturated, err := r.rateScore(ctx, sctx)
	if err != nil {
		return RiskAssessment{}, err
	}

	score := r.ipScore(sctx.IPAddress) +
		rateScore +
		r.timingScore(sctx.Timestamp) +
		r.agentScore(sctx.UserAgent)
	if score > r.cfg.MaxScore {
		score = r.cfg.MaxScore
	}

	// Rate saturation forces the class regardless of the other signals.
	if saturated {
		return RiskAssessment{Score: r.cfg.MaxScore, Class: RiskRateLimited}, nil
	}

	class := RiskLow
	switch {
	case score >= r.cfg.HighThreshold:
		class = RiskHigh
	case score >= r.cfg.MediumThreshold:
		class = RiskMedium
	}

	return RiskAssessment{Score: score, Class: class}, nil
}

// ipScore treats private, loopback, and link-local origins as pre-filtered
// internal traffic; everything else (including unparseable addresses) scores
// as public.
func (r *RiskAssessor) ipScore(ip string) int {
	if ip == "" {
		return r.cfg.PublicIPScore
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return r.cfg.PublicIPScore
	}
	if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() {
		return r.cfg.PrivateIPScore
	}
	return r.cfg.PublicIPScore
}

// rateScore scales linearly with window occupancy and saturates once the
// per-minute budget is exceeded.
func (r *RiskAssessor) rateScore(ctx context.Context, sctx *SecurityContext) (score int, saturated bool, err error) {
	principal := sctx.UserID
	if principal == "" {
		// Anonymous traffic shares one bucket; the authn stage has already
		// rejected it for mediated operations.
		principal = "anonymous"
	}

	count, err := r.counter.Hit(ctx, principal)
	if err != nil {
		return 0, false, err
	}

	if count > r.cfg.MaxRequestsPerMinute {
		return r.cfg.RateScoreCeiling, true, nil
	}

	return r.cfg.RateScoreCeiling * count / r.cfg.MaxRequestsPerMinute, false, nil
}

// timingScore penalizes future-dated and stale timestamps; anything within
// the recent window scores zero.
func (r *RiskAssessor) timingScore(ts time.Time) int {
	now := r.now()
	if ts.After(now) {
		return r.cfg.TimingScore
	}
	age := now.Sub(ts)
	if age <= r.cfg.RecentWindow {
		return 0
	}
	if age >= r.cfg.StaleThreshold {
		return r.cfg.TimingScore
	}
	// Between recent and stale: half penalty.
	return r.cfg.TimingScore / 2
}

func (r *RiskAssessor) agentScore(userAgent string) int {
	if isBlank(userAgent) {
		return r.cfg.MissingAgentScore
	}
	return 0
}
