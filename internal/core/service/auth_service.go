package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/kodbank/banking-api/internal/core/domain"
	"github.com/kodbank/banking-api/internal/core/ports"
	"github.com/kodbank/banking-api/internal/pkg/metrics"
	"github.com/kodbank/banking-api/internal/pkg/token"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// AuthService implements registration and login.
type AuthService struct {
	users      ports.UserRepository
	sessions   ports.SessionRepository
	cache      ports.SessionCache
	throttle   ports.LoginThrottle
	tokens     *token.Manager
	bcryptCost int
	retention  time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// AuthOption customises optional collaborators of AuthService.
type AuthOption func(*AuthService)

// WithSessionCache writes every issued session to cache.
func WithSessionCache(cache ports.SessionCache) AuthOption {
	return func(s *AuthService) { s.cache = cache }
}

// WithLoginThrottle rejects logins for usernames with too many recent failures.
func WithLoginThrottle(throttle ports.LoginThrottle) AuthOption {
	return func(s *AuthService) { s.throttle = throttle }
}

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.bcryptCost = cost }
}

// WithSessionRetention caps how long a cached session marker may live.
func WithSessionRetention(d time.Duration) AuthOption {
	return func(s *AuthService) { s.retention = d }
}

// WithClock sets the time source used for session timestamps.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

func NewAuthService(
	users ports.UserRepository,
	sessions ports.SessionRepository,
	tokens *token.Manager,
	log zerolog.Logger,
	opts ...AuthOption,
) *AuthService {
	s := &AuthService{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		bcryptCost: bcrypt.DefaultCost,
		retention:  domain.SessionRetention,
		now:        time.Now,
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Username == "" || in.Password == "" || in.Email == "" || in.Phone == "" {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.NewValidationError("All fields are required")
	}
	if msg := fieldTooLong(in); msg != "" {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.NewValidationError(msg)
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		return nil, fmt.Errorf("register: check existing user: %w", err)
	}
	if exists {
		metrics.RegistrationsTotal.WithLabelValues("duplicate").Inc()
		return nil, domain.ErrDuplicateIdentity
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	now := s.now().UTC()
	created, err := s.users.Create(ctx, &domain.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Phone:        in.Phone,
		Balance:      domain.DefaultBalance,
		Role:         domain.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentity) {
			metrics.RegistrationsTotal.WithLabelValues("duplicate").Inc()
			return nil, err
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	metrics.RegistrationsTotal.WithLabelValues("success").Inc()
	s.log.Info().Str("user_id", created.ID).Str("username", created.Username).Msg("user registered")
	return created, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.NewValidationError("Username and password are required")
	}

	if s.throttled(ctx, username) {
		metrics.LoginsTotal.WithLabelValues("throttled").Inc()
		return nil, domain.ErrTooManyAttempts
	}

	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.loginFailed(ctx, username)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: find user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.loginFailed(ctx, username)
		return nil, domain.ErrInvalidCredentials
	}

	sessionID := uuid.NewString()
	signed, expiresAt, err := s.tokens.Issue(user.Username, user.Role, user.ID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	session := &domain.Session{
		ID:        sessionID,
		Token:     signed,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
		CreatedAt: s.now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("login: store session: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, sessionID, session.LiveUntil(s.retention).Sub(s.now())); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to cache session")
		}
	}
	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, username); err != nil {
			s.log.Warn().Err(err).Str("username", username).Msg("failed to reset login throttle")
		}
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	s.log.Info().Str("user_id", user.ID).Str("session_id", sessionID).Msg("user logged in")

	return &ports.LoginResult{
		Token:     signed,
		ExpiresIn: int(s.tokens.TTL().Seconds()),
		User:      user,
	}, nil
}

// fieldTooLong returns the message for the first field exceeding its column
// width, or "" when all fit.
func fieldTooLong(in ports.RegisterInput) string {
	switch {
	case utf8.RuneCountInString(in.Username) > domain.MaxUsernameLen:
		return fmt.Sprintf("Username must be at most %d characters", domain.MaxUsernameLen)
	case utf8.RuneCountInString(in.Email) > domain.MaxEmailLen:
		return fmt.Sprintf("Email must be at most %d characters", domain.MaxEmailLen)
	case utf8.RuneCountInString(in.Phone) > domain.MaxPhoneLen:
		return fmt.Sprintf("Phone must be at most %d characters", domain.MaxPhoneLen)
	case len(in.Password) > maxPasswordBytes:
		return fmt.Sprintf("Password must be at most %d bytes", maxPasswordBytes)
	}
	return ""
}

func (s *AuthService) hashPassword(password string) (string, error) {
	start := time.Now()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	metrics.PasswordHashDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// throttled fails open: a throttle backend error never blocks a login.
func (s *AuthService) throttled(ctx context.Context, username string) bool {
	if s.throttle == nil {
		return false
	}
	blocked, err := s.throttle.Blocked(ctx, username)
	if err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("login throttle check failed")
		return false
	}
	return blocked
}

func (s *AuthService) loginFailed(ctx context.Context, username string) {
	metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
	if s.throttle == nil {
		return
	}
	if err := s.throttle.RecordFailure(ctx, username); err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("failed to record login failure")
	}
}
