package realtime

import (
	"context"
	"sync"
	"testing"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// fakeLink records everything written or closed so tests can assert on
// delivery without a real socket.
type fakeLink struct {
	mu          sync.Mutex
	frames      [][]byte
	writeErr    error
	pingErr     error
	closed      bool
	closeCode   websocket.StatusCode
	closeReason string
}

func (l *fakeLink) WriteText(_ context.Context, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writeErr != nil {
		return l.writeErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	l.frames = append(l.frames, buf)
	return nil
}

func (l *fakeLink) Ping(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pingErr
}

func (l *fakeLink) Close(code websocket.StatusCode, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.closeCode = code
	l.closeReason = reason
	return nil
}

func (l *fakeLink) frameCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.frames)
}

func (l *fakeLink) lastFrame() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.frames) == 0 {
		return nil
	}
	return l.frames[len(l.frames)-1]
}

func (l *fakeLink) closedWith() (websocket.StatusCode, string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeCode, l.closeReason, l.closed
}

func newTestRegistry(t *testing.T, opts RegistryOptions) *Registry {
	t.Helper()
	logger := zerolog.Nop()
	return NewRegistry(&logger, opts)
}

func mustAdmit(t *testing.T, r *Registry, origin string, workspaceID, userID int64, link Link) *Conn {
	t.Helper()
	conn, err := r.Admit(origin, workspaceID, userID, link)
	if err != nil {
		t.Fatalf("admit origin=%s workspace=%d user=%d: %v", origin, workspaceID, userID, err)
	}
	return conn
}
