package http

import (
	"encoding/json"
	stdhttp "net/http"
	"testing"

	"crewchat/internal/config"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	status, body := env.doJSON(t, stdhttp.MethodPost, "/api/register", "", map[string]any{
		"username": "alice",
		"password": "password123",
	})
	if status != stdhttp.StatusCreated {
		t.Fatalf("register: status %d, body %s", status, body)
	}
	var registered AuthResponse
	if err := json.Unmarshal(body, &registered); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if registered.Token == "" {
		t.Fatal("register returned no token")
	}
	if registered.User.Username != "alice" || registered.User.ID == 0 {
		t.Fatalf("unexpected user: %+v", registered.User)
	}

	// Same username again conflicts.
	status, _ = env.doJSON(t, stdhttp.MethodPost, "/api/register", "", map[string]any{
		"username": "alice",
		"password": "password123",
	})
	if status != stdhttp.StatusConflict {
		t.Fatalf("duplicate register: status %d, want 409", status)
	}

	status, _ = env.doJSON(t, stdhttp.MethodPost, "/api/login", "", map[string]any{
		"username": "alice",
		"password": "wrong-password",
	})
	if status != stdhttp.StatusUnauthorized {
		t.Fatalf("bad login: status %d, want 401", status)
	}

	status, body = env.doJSON(t, stdhttp.MethodPost, "/api/login", "", map[string]any{
		"username": "alice",
		"password": "password123",
	})
	if status != stdhttp.StatusOK {
		t.Fatalf("login: status %d, body %s", status, body)
	}
	var logged AuthResponse
	if err := json.Unmarshal(body, &logged); err != nil {
		t.Fatalf("decode login response: %v", err)
	}

	// The fresh token works against the authenticated surface.
	status, body = env.doJSON(t, stdhttp.MethodGet, "/api/users/me", logged.Token, nil)
	if status != stdhttp.StatusOK {
		t.Fatalf("users/me: status %d, body %s", status, body)
	}
	var me UserResponse
	if err := json.Unmarshal(body, &me); err != nil {
		t.Fatalf("decode users/me: %v", err)
	}
	if me.ID != registered.User.ID {
		t.Fatalf("users/me id = %d, want %d", me.ID, registered.User.ID)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"short username", "ab", "password123"},
		{"short password", "alice", "12345"},
		{"empty body", "", ""},
	}
	for _, tc := range cases {
		status, _ := env.doJSON(t, stdhttp.MethodPost, "/api/register", "", map[string]any{
			"username": tc.username,
			"password": tc.password,
		})
		if status != stdhttp.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", tc.name, status)
		}
	}
}

func TestAuthMiddlewareRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t, nil)

	status, _ := env.doJSON(t, stdhttp.MethodGet, "/api/workspaces", "", nil)
	if status != stdhttp.StatusUnauthorized {
		t.Fatalf("no token: status %d, want 401", status)
	}

	status, _ = env.doJSON(t, stdhttp.MethodGet, "/api/workspaces", "garbage", nil)
	if status != stdhttp.StatusUnauthorized {
		t.Fatalf("garbage token: status %d, want 401", status)
	}
}

func TestAuthEndpointsAreRateLimited(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.AuthRateLimit = 2
	})

	for i := 0; i < 2; i++ {
		status, _ := env.doJSON(t, stdhttp.MethodPost, "/api/login", "", map[string]any{
			"username": "nobody",
			"password": "password123",
		})
		if status != stdhttp.StatusUnauthorized {
			t.Fatalf("attempt %d: status %d, want 401", i+1, status)
		}
	}

	status, _ := env.doJSON(t, stdhttp.MethodPost, "/api/login", "", map[string]any{
		"username": "nobody",
		"password": "password123",
	})
	if status != stdhttp.StatusTooManyRequests {
		t.Fatalf("over limit: status %d, want 429", status)
	}
}
