package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/kodbank/banking-api/internal/core/domain"
	"github.com/kodbank/banking-api/internal/core/ports"
	"github.com/kodbank/banking-api/internal/pkg/token"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const testSecret = "secret"

func newAuthSvc(users *stubUserRepo, sessions *stubSessionRepo, opts ...AuthOption) *AuthService {
	opts = append([]AuthOption{WithBcryptCost(bcrypt.MinCost)}, opts...)
	return NewAuthService(users, sessions, token.NewManager(testSecret, time.Hour), zerolog.Nop(), opts...)
}

func aliceInput() ports.RegisterInput {
	return ports.RegisterInput{
		Username: "alice",
		Password: "Secr3t!",
		Email:    "alice@x.com",
		Phone:    "+1-555-0100",
	}
}

// ---------------------------------------------------------------------------
// Register
// ---------------------------------------------------------------------------

func TestAuthService_Register_Success(t *testing.T) {
	users := newStubUserRepo()
	svc := newAuthSvc(users, newStubSessionRepo())

	user, err := svc.Register(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.ID == "" {
		t.Fatalf("expected generated id")
	}
	if user.PasswordHash == "Secr3t!" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("Secr3t!")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if user.Role != domain.RoleCustomer {
		t.Fatalf("unexpected role: %s", user.Role)
	}
	if user.Balance != domain.DefaultBalance {
		t.Fatalf("unexpected balance: %s", user.Balance)
	}
	if user.CreatedAt.IsZero() || !user.UpdatedAt.Equal(user.CreatedAt) {
		t.Fatalf("unexpected timestamps: %v %v", user.CreatedAt, user.UpdatedAt)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc := newAuthSvc(newStubUserRepo(), newStubSessionRepo())

	blank := []func(*ports.RegisterInput){
		func(in *ports.RegisterInput) { in.Username = "" },
		func(in *ports.RegisterInput) { in.Password = "" },
		func(in *ports.RegisterInput) { in.Email = "   " },
		func(in *ports.RegisterInput) { in.Phone = "" },
	}
	for i, mutate := range blank {
		in := aliceInput()
		mutate(&in)
		if _, err := svc.Register(context.Background(), in); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestAuthService_Register_PasswordTooLong(t *testing.T) {
	svc := newAuthSvc(newStubUserRepo(), newStubSessionRepo())

	in := aliceInput()
	in.Password = strings.Repeat("é", 40) // 80 bytes
	_, err := svc.Register(context.Background(), in)

	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Message != "Password must be at most 72 bytes" {
		t.Fatalf("unexpected message: %q", ve.Message)
	}
}

func TestAuthService_Register_FieldTooLong(t *testing.T) {
	tests := []struct {
		name  string
		tweak func(*ports.RegisterInput)
		want  string
	}{
		{"username", func(in *ports.RegisterInput) { in.Username = strings.Repeat("a", 51) }, "Username must be at most 50 characters"},
		{"email", func(in *ports.RegisterInput) { in.Email = strings.Repeat("a", 95) + "@x.com" }, "Email must be at most 100 characters"},
		{"phone", func(in *ports.RegisterInput) { in.Phone = strings.Repeat("1", 21) }, "Phone must be at most 20 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newStubUserRepo()
			svc := newAuthSvc(users, newStubSessionRepo())

			in := aliceInput()
			tt.tweak(&in)
			_, err := svc.Register(context.Background(), in)

			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Message != tt.want {
				t.Fatalf("message = %q, want %q", ve.Message, tt.want)
			}
			if len(users.byUsername) != 0 {
				t.Fatalf("no account may be stored")
			}
		})
	}

	in := aliceInput()
	in.Username = strings.Repeat("ü", 50)
	if _, err := newAuthSvc(newStubUserRepo(), newStubSessionRepo()).Register(context.Background(), in); err != nil {
		t.Fatalf("50 multi-byte characters should fit: %v", err)
	}
}

func TestAuthService_Register_DuplicateUsername(t *testing.T) {
	svc := newAuthSvc(newStubUserRepo(), newStubSessionRepo())

	if _, err := svc.Register(context.Background(), aliceInput()); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	in := aliceInput()
	in.Email = "other@x.com"
	if _, err := svc.Register(context.Background(), in); !errors.Is(err, domain.ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestAuthService_Register_DuplicateEmailDifferentCase(t *testing.T) {
	svc := newAuthSvc(newStubUserRepo(), newStubSessionRepo())

	if _, err := svc.Register(context.Background(), aliceInput()); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	in := aliceInput()
	in.Username = "alice2"
	in.Email = "ALICE@X.COM"
	if _, err := svc.Register(context.Background(), in); !errors.Is(err, domain.ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestAuthService_Register_ConstraintCatchesRace(t *testing.T) {
	users := newStubUserRepo()
	users.skipExists = true
	svc := newAuthSvc(users, newStubSessionRepo())

	_, _ = svc.Register(context.Background(), aliceInput())
	if _, err := svc.Register(context.Background(), aliceInput()); !errors.Is(err, domain.ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity from constraint, got %v", err)
	}
}

func TestAuthService_Register_ConcurrentSameUsername(t *testing.T) {
	users := newStubUserRepo()
	svc := newAuthSvc(users, newStubSessionRepo())

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(context.Background(), aliceInput())
			if err != nil && !errors.Is(err, domain.ErrDuplicateIdentity) {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one successful registration, got %d", succeeded)
	}
	if len(users.byUsername) != 1 {
		t.Fatalf("expected one stored account, got %d", len(users.byUsername))
	}
}

func TestAuthService_Register_StorageError(t *testing.T) {
	users := newStubUserRepo()
	users.existsErr = errStorage
	svc := newAuthSvc(users, newStubSessionRepo())

	_, err := svc.Register(context.Background(), aliceInput())
	if !errors.Is(err, errStorage) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrDuplicateIdentity) {
		t.Fatalf("storage error must not be classified as a client error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestAuthService_Login_Success(t *testing.T) {
	sessions := newStubSessionRepo()
	cache := newStubCache()
	svc := newAuthSvc(newStubUserRepo(), sessions, WithSessionCache(cache))

	registered, err := svc.Register(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	res, err := svc.Login(context.Background(), "alice", "Secr3t!")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.Token == "" {
		t.Fatalf("expected token, got empty")
	}
	if res.User.Username != "alice" || res.User.Role != domain.RoleCustomer {
		t.Fatalf("unexpected user: %+v", res.User)
	}
	if res.ExpiresIn != int(time.Hour.Seconds()) {
		t.Fatalf("unexpected expires_in: %d", res.ExpiresIn)
	}

	claims := &token.Claims{}
	parsed, err := jwt.ParseWithClaims(res.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	if claims.Username != "alice" || claims.Role != domain.RoleCustomer {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	stored, ok := sessions.byID[claims.ID]
	if !ok {
		t.Fatalf("expected session %s to be stored", claims.ID)
	}
	if stored.UserID != registered.ID || stored.Token != res.Token {
		t.Fatalf("unexpected session record: %+v", stored)
	}
	if !stored.ExpiresAt.Equal(claims.ExpiresAt.Time) {
		t.Fatalf("session expiry %v does not match token expiry %v", stored.ExpiresAt, claims.ExpiresAt.Time)
	}
	if _, ok := cache.entries[claims.ID]; !ok {
		t.Fatalf("expected session to be cached")
	}
}

func TestAuthService_Login_MultipleSessions(t *testing.T) {
	sessions := newStubSessionRepo()
	svc := newAuthSvc(newStubUserRepo(), sessions)
	_, _ = svc.Register(context.Background(), aliceInput())

	for i := 0; i < 3; i++ {
		if _, err := svc.Login(context.Background(), "alice", "Secr3t!"); err != nil {
			t.Fatalf("login %d failed: %v", i, err)
		}
	}
	if len(sessions.byID) != 3 {
		t.Fatalf("expected 3 concurrent sessions, got %d", len(sessions.byID))
	}
}

func TestAuthService_Login_NoInformationLeak(t *testing.T) {
	svc := newAuthSvc(newStubUserRepo(), newStubSessionRepo())
	_, _ = svc.Register(context.Background(), aliceInput())

	_, wrongPassword := svc.Login(context.Background(), "alice", "wrong")
	_, unknownUser := svc.Login(context.Background(), "ghost", "Secr3t!")

	if wrongPassword != domain.ErrInvalidCredentials || unknownUser != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", wrongPassword, unknownUser)
	}
}

func TestAuthService_Login_Validation(t *testing.T) {
	svc := newAuthSvc(newStubUserRepo(), newStubSessionRepo())

	if _, err := svc.Login(context.Background(), "", "pass"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "alice", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAuthService_Login_SessionStoreFailure(t *testing.T) {
	sessions := newStubSessionRepo()
	svc := newAuthSvc(newStubUserRepo(), sessions)
	_, _ = svc.Register(context.Background(), aliceInput())

	sessions.createErr = errStorage
	res, err := svc.Login(context.Background(), "alice", "Secr3t!")
	if !errors.Is(err, errStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if res != nil {
		t.Fatalf("no token may be returned when the session was not stored")
	}
}

func TestAuthService_Login_CacheFailureIsNotFatal(t *testing.T) {
	cache := newStubCache()
	cache.putErr = errStorage
	svc := newAuthSvc(newStubUserRepo(), newStubSessionRepo(), WithSessionCache(cache))
	_, _ = svc.Register(context.Background(), aliceInput())

	if _, err := svc.Login(context.Background(), "alice", "Secr3t!"); err != nil {
		t.Fatalf("login should succeed when the cache is down: %v", err)
	}
}

func TestAuthService_Login_TokenExpiresWithClock(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return issuedAt }
	tokens := token.NewManager(testSecret, 24*time.Hour).WithClock(clock)
	svc := NewAuthService(newStubUserRepo(), newStubSessionRepo(), tokens, zerolog.Nop(),
		WithBcryptCost(bcrypt.MinCost), WithClock(clock))
	_, _ = svc.Register(context.Background(), aliceInput())

	res, err := svc.Login(context.Background(), "alice", "Secr3t!")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := tokens.Parse(res.Token); err != nil {
		t.Fatalf("token should verify immediately: %v", err)
	}
	later := tokens.WithClock(func() time.Time { return issuedAt.Add(25 * time.Hour) })
	if _, err := later.Parse(res.Token); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired after clock skip, got %v", err)
	}
}

func TestAuthService_Login_CacheTTLCappedByRetention(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return issuedAt }
	tokens := token.NewManager(testSecret, 48*time.Hour).WithClock(clock)
	cache := newStubCache()
	svc := NewAuthService(newStubUserRepo(), newStubSessionRepo(), tokens, zerolog.Nop(),
		WithBcryptCost(bcrypt.MinCost), WithClock(clock),
		WithSessionCache(cache), WithSessionRetention(24*time.Hour))
	_, _ = svc.Register(context.Background(), aliceInput())

	if _, err := svc.Login(context.Background(), "alice", "Secr3t!"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if len(cache.entries) != 1 {
		t.Fatalf("expected one cached session, got %d", len(cache.entries))
	}
	for id, ttl := range cache.entries {
		if ttl != 24*time.Hour {
			t.Fatalf("cache ttl for %s = %v, want 24h", id, ttl)
		}
	}
}

// ---------------------------------------------------------------------------
// Login throttle
// ---------------------------------------------------------------------------

func TestAuthService_Login_ThrottleBlocksAfterFailures(t *testing.T) {
	users := newStubUserRepo()
	throttle := newStubThrottle(2)
	svc := newAuthSvc(users, newStubSessionRepo(), WithLoginThrottle(throttle))
	_, _ = svc.Register(context.Background(), aliceInput())

	for i := 0; i < 2; i++ {
		if _, err := svc.Login(context.Background(), "alice", "wrong"); err != domain.ErrInvalidCredentials {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if _, err := svc.Login(context.Background(), "alice", "Secr3t!"); err != domain.ErrTooManyAttempts {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
}

func TestAuthService_Login_SuccessResetsThrottle(t *testing.T) {
	throttle := newStubThrottle(3)
	svc := newAuthSvc(newStubUserRepo(), newStubSessionRepo(), WithLoginThrottle(throttle))
	_, _ = svc.Register(context.Background(), aliceInput())

	_, _ = svc.Login(context.Background(), "alice", "wrong")
	if throttle.failures["alice"] != 1 {
		t.Fatalf("expected one recorded failure, got %d", throttle.failures["alice"])
	}
	if _, err := svc.Login(context.Background(), "alice", "Secr3t!"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, ok := throttle.failures["alice"]; ok {
		t.Fatalf("expected failures to be reset")
	}
}

func TestAuthService_Login_ThrottleFailsOpen(t *testing.T) {
	throttle := newStubThrottle(1)
	throttle.err = errStorage
	svc := newAuthSvc(newStubUserRepo(), newStubSessionRepo(), WithLoginThrottle(throttle))
	_, _ = svc.Register(context.Background(), aliceInput())

	if _, err := svc.Login(context.Background(), "alice", "Secr3t!"); err != nil {
		t.Fatalf("login should succeed when the throttle backend is down: %v", err)
	}
}
