package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"crewchat/internal/store/sqlite"
)

func newTestAuthService(t *testing.T) *Service {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return NewService(st, jwtConfig)
}

func TestRegister_RejectsInvalidUsername(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "ab", "password123"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}

	// Should be validated after trimming whitespace.
	if _, _, err := svc.Register(ctx, " ab ", "password123"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestRegister_RejectsInvalidPassword(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "abc", "12345"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestRegister_TrimsUsernameAndCreatesUser(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	user, token, err := svc.Register(ctx, " alice ", "password123")
	if err != nil {
		t.Fatalf("expected registration success, got %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	if user.Username != "alice" {
		t.Fatalf("username = %q, want alice", user.Username)
	}

	// Should collide because the stored username is trimmed.
	if _, _, err := svc.Register(ctx, "alice", "password123"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestLogin_ValidatesCredentials(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	registered, _, err := svc.Register(ctx, "bob", "password123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	user, token, err := svc.Login(ctx, "bob", "password123")
	if err != nil {
		t.Fatalf("expected login success, got %v", err)
	}
	if user.ID != registered.ID {
		t.Fatalf("user id = %d, want %d", user.ID, registered.ID)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	if _, _, err := svc.Login(ctx, "bob", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestValidateToken_RoundTrip(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	user, token, err := svc.Register(ctx, "carol", "password123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.UserID != user.ID || claims.Username != "carol" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := svc.ValidateToken("not-a-token"); err == nil {
		t.Fatal("expected garbage token to fail")
	}
}

func TestValidateToken_RejectsWrongSecret(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("one"), Issuer: "test", Audience: "test", TTL: time.Hour}
	token, err := GenerateToken(cfg, 7, "alice")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	other := &JWTConfig{Secret: []byte("two"), Issuer: "test", Audience: "test", TTL: time.Hour}
	if _, err := ValidateToken(other, token); err == nil {
		t.Fatal("expected validation to fail with wrong secret")
	}
}
