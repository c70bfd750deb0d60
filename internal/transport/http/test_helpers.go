package http

import (
	"bytes"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crewchat/internal/auth"
	"crewchat/internal/avatar"
	"crewchat/internal/config"
	"crewchat/internal/realtime"
	"crewchat/internal/store"
	"crewchat/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store, jwtSecret string) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(jwtSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	return auth.NewService(st, jwtConfig)
}

// testEnv is a fully wired HTTP surface over an in-memory store.
type testEnv struct {
	server     *httptest.Server
	store      store.Store
	auth       *auth.Service
	registry   *realtime.Registry
	dispatcher *realtime.Dispatcher
}

// newTestEnv wires store, auth, registry, dispatcher and router into an
// httptest server. mutate may adjust the config before wiring; nil keeps the
// defaults (rate limiting off so tests can hammer the auth endpoints).
func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.JWTSecret = "test-secret"
	cfg.AuthRateLimit = 0
	if mutate != nil {
		mutate(&cfg)
	}

	logger := zerolog.Nop()
	st := createTestStore(t)
	authService := createTestAuthService(t, st, cfg.JWTSecret)

	registry := realtime.NewRegistry(&logger, realtime.RegistryOptions{
		OriginLimit:       cfg.Realtime.OriginLimit,
		HeartbeatInterval: cfg.Realtime.HeartbeatInterval,
		ProbeTimeout:      cfg.Realtime.SendTimeout,
	})
	dispatcher := realtime.NewDispatcher(registry, &logger, cfg.Realtime.SendTimeout)
	avatarService := avatar.NewService(nil, st, dispatcher, &logger)

	router := NewRouter(Deps{
		Store:      st,
		Auth:       authService,
		Registry:   registry,
		Dispatcher: dispatcher,
		Avatar:     avatarService,
	}, cfg, &logger)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{
		server:     server,
		store:      st,
		auth:       authService,
		registry:   registry,
		dispatcher: dispatcher,
	}
}

// registerUser registers a user through the API and returns its id and token.
func (env *testEnv) registerUser(t *testing.T, username string) (int64, string) {
	t.Helper()

	status, body := env.doJSON(t, stdhttp.MethodPost, "/api/register", "", map[string]any{
		"username": username,
		"password": "password123",
	})
	if status != stdhttp.StatusCreated {
		t.Fatalf("register %s: status %d, body %s", username, status, body)
	}

	var resp AuthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return resp.User.ID, resp.Token
}

// doJSON performs a request against the test server and returns status and
// raw body. An empty token skips the Authorization header.
func (env *testEnv) doJSON(t *testing.T, method, path, token string, payload any) (int, []byte) {
	t.Helper()

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := stdhttp.NewRequest(method, env.server.URL+path, reqBody)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := stdhttp.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return resp.StatusCode, body
}

// createWorkspace creates a workspace through the API and returns its id.
func (env *testEnv) createWorkspace(t *testing.T, token, name string) int64 {
	t.Helper()

	status, body := env.doJSON(t, stdhttp.MethodPost, "/api/workspaces", token, map[string]any{
		"name": name,
	})
	if status != stdhttp.StatusCreated {
		t.Fatalf("create workspace: status %d, body %s", status, body)
	}

	var resp WorkspaceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode workspace response: %v", err)
	}
	return resp.ID
}

// createChannel creates a channel through the API and returns its id.
func (env *testEnv) createChannel(t *testing.T, token string, workspaceID int64, name string) int64 {
	t.Helper()

	path := "/api/workspaces/" + itoa(workspaceID) + "/channels"
	status, body := env.doJSON(t, stdhttp.MethodPost, path, token, map[string]any{
		"name": name,
	})
	if status != stdhttp.StatusCreated {
		t.Fatalf("create channel: status %d, body %s", status, body)
	}

	var resp ChannelResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode channel response: %v", err)
	}
	return resp.ID
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
