package usecase

import (
	"context"
	"time"

	authDomain "github.com/allisson/lightldap/internal/auth/domain"
	"github.com/allisson/lightldap/internal/metrics"
)

const metricsDomain = "auth"

func recordMetrics(
	ctx context.Context,
	m metrics.BusinessMetrics,
	operation string,
	start time.Time,
	err error,
) {
	status := metrics.Status(err)

	m.RecordOperation(ctx, metricsDomain, operation, status)
	m.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

// passwordUseCaseWithMetrics decorates PasswordUseCase with metrics instrumentation.
type passwordUseCaseWithMetrics struct {
	next    PasswordUseCase
	metrics metrics.BusinessMetrics
}

// NewPasswordUseCaseWithMetrics wraps a PasswordUseCase with metrics recording.
func NewPasswordUseCaseWithMetrics(useCase PasswordUseCase, m metrics.BusinessMetrics) PasswordUseCase {
	return &passwordUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// RegisterPassword records metrics for in-process registrations.
func (p *passwordUseCaseWithMetrics) RegisterPassword(ctx context.Context, userID, password string) error {
	start := time.Now()
	err := p.next.RegisterPassword(ctx, userID, password)
	recordMetrics(ctx, p.metrics, "password_register", start, err)
	return err
}

// VerifyPassword records metrics for in-process logins.
func (p *passwordUseCaseWithMetrics) VerifyPassword(ctx context.Context, userID, password string) error {
	start := time.Now()
	err := p.next.VerifyPassword(ctx, userID, password)
	recordMetrics(ctx, p.metrics, "password_verify", start, err)
	return err
}

// StartRegistration records metrics for the first registration message.
func (p *passwordUseCaseWithMetrics) StartRegistration(
	ctx context.Context,
	userID string,
	request []byte,
) ([]byte, error) {
	start := time.Now()
	resp, err := p.next.StartRegistration(ctx, userID, request)
	recordMetrics(ctx, p.metrics, "password_registration_start", start, err)
	return resp, err
}

// FinishRegistration records metrics for the registration upload.
func (p *passwordUseCaseWithMetrics) FinishRegistration(ctx context.Context, userID string, record []byte) error {
	start := time.Now()
	err := p.next.FinishRegistration(ctx, userID, record)
	recordMetrics(ctx, p.metrics, "password_registration_finish", start, err)
	return err
}

// StartLogin records metrics for KE1 processing.
func (p *passwordUseCaseWithMetrics) StartLogin(
	ctx context.Context,
	userID string,
	ke1 []byte,
) (*authDomain.LoginStartOutput, error) {
	start := time.Now()
	out, err := p.next.StartLogin(ctx, userID, ke1)
	recordMetrics(ctx, p.metrics, "password_login_start", start, err)
	return out, err
}

// FinishLogin records metrics for KE3 processing.
func (p *passwordUseCaseWithMetrics) FinishLogin(ctx context.Context, userID string, serverData, ke3 []byte) error {
	start := time.Now()
	err := p.next.FinishLogin(ctx, userID, serverData, ke3)
	recordMetrics(ctx, p.metrics, "password_login_finish", start, err)
	return err
}

// sessionUseCaseWithMetrics decorates SessionUseCase with metrics instrumentation.
type sessionUseCaseWithMetrics struct {
	next    SessionUseCase
	metrics metrics.BusinessMetrics
}

// NewSessionUseCaseWithMetrics wraps a SessionUseCase with metrics recording.
func NewSessionUseCaseWithMetrics(useCase SessionUseCase, m metrics.BusinessMetrics) SessionUseCase {
	return &sessionUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Issue records metrics for token issuance.
func (s *sessionUseCaseWithMetrics) Issue(ctx context.Context, userID string) (*authDomain.TokenPair, error) {
	start := time.Now()
	pair, err := s.next.Issue(ctx, userID)
	recordMetrics(ctx, s.metrics, "session_issue", start, err)
	return pair, err
}

// Validate records metrics for access token validation.
func (s *sessionUseCaseWithMetrics) Validate(ctx context.Context, accessToken string) (*authDomain.Claims, error) {
	start := time.Now()
	claims, err := s.next.Validate(ctx, accessToken)
	recordMetrics(ctx, s.metrics, "session_validate", start, err)
	return claims, err
}

// Refresh records metrics for refresh token rotation.
func (s *sessionUseCaseWithMetrics) Refresh(ctx context.Context, refreshToken string) (*authDomain.TokenPair, error) {
	start := time.Now()
	pair, err := s.next.Refresh(ctx, refreshToken)
	recordMetrics(ctx, s.metrics, "session_refresh", start, err)
	return pair, err
}

// Logout records metrics for logouts.
func (s *sessionUseCaseWithMetrics) Logout(ctx context.Context, refreshToken string, claims *authDomain.Claims) error {
	start := time.Now()
	err := s.next.Logout(ctx, refreshToken, claims)
	recordMetrics(ctx, s.metrics, "session_logout", start, err)
	return err
}

// CleanupExpired records metrics for the expired token cleanup.
func (s *sessionUseCaseWithMetrics) CleanupExpired(ctx context.Context) (int64, error) {
	start := time.Now()
	count, err := s.next.CleanupExpired(ctx)
	recordMetrics(ctx, s.metrics, "session_cleanup", start, err)
	return count, err
}
