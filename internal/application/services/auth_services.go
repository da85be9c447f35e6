// Package services provides application-level orchestration services
package services

import (
	"context"
	"errors"
	"time"

	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/metrics"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/security"
	"github.com/makhaen-survey/makhaen-go/pkg/config"
	"github.com/patrickmn/go-cache"
)

// ErrThrottled is wrapped together with ErrAuthFailure when a client exceeds
// the failed login budget. Callers that only check ErrAuthFailure see a
// normal failure.
var ErrThrottled = errors.New("too many failed logins")

// AuthService handles authentication workflows and session tokens
type AuthService struct {
	accounts survey.AccountRepository
	settings *config.Settings
	logger   *logging.ChanneledLogger
	metrics  *metrics.Metrics
	failures *cache.Cache
	now      func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(accounts survey.AccountRepository, settings *config.Settings, logger *logging.ChanneledLogger, m *metrics.Metrics) *AuthService {
	window := settings.LoginFailureWindow
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &AuthService{
		accounts: accounts,
		settings: settings,
		logger:   logger,
		metrics:  m,
		failures: cache.New(window, 2*window),
		now:      time.Now,
	}
}

// Session is a signed session cookie value and the identity it carries.
type Session struct {
	Identity  survey.Identity
	Token     string
	ExpiresAt time.Time
}

// Authenticate verifies credentials. Every failure, including an unknown
// username, returns ErrAuthFailure and costs one bcrypt comparison.
func (a *AuthService) Authenticate(ctx context.Context, username, password string) (survey.Identity, error) {
	if username == "" || password == "" {
		security.BurnPasswordCheck(password)
		return survey.Guest(), survey.ErrAuthFailure
	}

	acct, err := a.accounts.FindByUsername(ctx, username)
	if err != nil {
		return survey.Guest(), err
	}
	if acct == nil {
		security.BurnPasswordCheck(password)
		return survey.Guest(), survey.ErrAuthFailure
	}
	if !security.CheckPassword(acct.PasswordHash, password) {
		return survey.Guest(), survey.ErrAuthFailure
	}
	return survey.Identity{Username: acct.Username, Role: acct.Role}, nil
}

// Login throttles by client address, authenticates and issues a session that
// keeps the caller's visitor token.
func (a *AuthService) Login(ctx context.Context, clientIP, username, password, visitorToken string) (*Session, error) {
	if a.throttled(clientIP) {
		a.metrics.RecordLogin("throttled")
		a.logger.LogAuthOperation("login", username, false, map[string]any{"clientIp": clientIP, "reason": "throttled"})
		return nil, errors.Join(survey.ErrAuthFailure, ErrThrottled)
	}

	identity, err := a.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, survey.ErrAuthFailure) {
			a.recordFailure(clientIP)
			a.metrics.RecordLogin("failure")
			a.logger.LogAuthOperation("login", username, false, map[string]any{"clientIp": clientIP})
		}
		return nil, err
	}

	a.failures.Delete(clientIP)
	if visitorToken == "" {
		visitorToken = security.GenerateVisitorToken()
	}
	identity.VisitorToken = visitorToken

	session, err := a.IssueSession(identity)
	if err != nil {
		return nil, err
	}
	a.metrics.RecordLogin("success")
	a.logger.LogAuthOperation("login", username, true, map[string]any{"role": identity.Role})
	return session, nil
}

// IssueSession signs identity into a session token.
func (a *AuthService) IssueSession(identity survey.Identity) (*Session, error) {
	now := a.now()
	role := identity.Role
	if role == "" {
		role = survey.RoleGuest
	}
	token, err := security.GenerateSessionToken(identity.Username, string(role), identity.VisitorToken,
		a.settings.SessionSecret, now, a.settings.SessionTTL)
	if err != nil {
		a.logger.Auth().Error("Failed to sign session", "error", err.Error())
		return nil, err
	}
	identity.Role = role
	return &Session{Identity: identity, Token: token, ExpiresAt: now.Add(a.settings.SessionTTL)}, nil
}

// ResolveSession decodes a session token. Invalid or expired tokens yield a
// guest and false.
func (a *AuthService) ResolveSession(token string) (survey.Identity, bool) {
	if token == "" {
		return survey.Guest(), false
	}
	claims, err := security.ValidateSessionToken(token, a.settings.SessionSecret)
	if err != nil {
		a.logger.Auth().Debug("Rejected session token", "error", err.Error())
		return survey.Guest(), false
	}

	identity := survey.Identity{
		Username:     claims.Subject,
		Role:         survey.ParseRole(claims.Role),
		VisitorToken: claims.VisitorToken,
	}
	if identity.Username == "" {
		identity.Role = survey.RoleGuest
	}
	return identity, true
}

func (a *AuthService) throttled(clientIP string) bool {
	if a.settings.LoginMaxFailures <= 0 || clientIP == "" {
		return false
	}
	n, found := a.failures.Get(clientIP)
	return found && n.(int) >= a.settings.LoginMaxFailures
}

func (a *AuthService) recordFailure(clientIP string) {
	if clientIP == "" {
		return
	}
	if err := a.failures.Add(clientIP, 1, cache.DefaultExpiration); err != nil {
		a.failures.IncrementInt(clientIP, 1)
	}
}
