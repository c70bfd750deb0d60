package avatar

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"crewchat/internal/realtime"
	"crewchat/internal/store"
	"crewchat/internal/store/sqlite"
)

type stubResponder struct {
	answer string
	err    error
}

func (s stubResponder) Reply(context.Context, string) (string, error) {
	return s.answer, s.err
}

// captureLink records broadcast frames for assertions.
type captureLink struct {
	frames chan []byte
}

func newCaptureLink() *captureLink {
	return &captureLink{frames: make(chan []byte, 16)}
}

func (l *captureLink) WriteText(_ context.Context, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	l.frames <- buf
	return nil
}

func (l *captureLink) Ping(context.Context) error               { return nil }
func (l *captureLink) Close(websocket.StatusCode, string) error { return nil }

type avatarFixture struct {
	store *sqlite.SQLiteStore
	link  *captureLink
}

func newAvatarService(t *testing.T, responder Responder) (*Service, *avatarFixture) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := zerolog.Nop()
	registry := realtime.NewRegistry(&logger, realtime.RegistryOptions{})
	dispatcher := realtime.NewDispatcher(registry, &logger, time.Second)

	link := newCaptureLink()
	conn, err := registry.Admit("10.0.0.1", 1, 42, link)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	registry.Subscribe(conn)

	svc := NewService(responder, st, dispatcher, &logger)
	return svc, &avatarFixture{store: st, link: link}
}

func seedMessage(t *testing.T, st *sqlite.SQLiteStore, content string) *store.Message {
	t.Helper()
	ctx := context.Background()

	user, err := st.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	ws, err := st.CreateWorkspace(ctx, "eng", user.ID)
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	ch, err := st.CreateChannel(ctx, ws.ID, "general", "", store.ChannelTypePublic, user.ID)
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}

	msg := &store.Message{ChannelID: ch.ID, UserID: user.ID, Content: content}
	if err := st.SaveMessage(ctx, msg); err != nil {
		t.Fatalf("save message: %v", err)
	}
	return msg
}

func TestMentionPrompt(t *testing.T) {
	cases := []struct {
		content string
		prompt  string
		ok      bool
	}{
		{"@avatar what is the deploy window", "what is the deploy window", true},
		{"  @avatar: summarize #general  ", "summarize #general", true},
		{"@avatar, help", "help", true},
		{"hello there", "", false},
		{"@avatarx nothing", "", false},
		{"@avatar", "", false},
		{"@avatar   ", "", false},
		{"please @avatar help", "", false},
	}
	for _, tc := range cases {
		prompt, ok := mentionPrompt(tc.content)
		if ok != tc.ok || prompt != tc.prompt {
			t.Fatalf("mentionPrompt(%q) = %q,%v want %q,%v", tc.content, prompt, ok, tc.prompt, tc.ok)
		}
	}
}

func TestServiceRepliesThroughDispatcher(t *testing.T) {
	svc, fx := newAvatarService(t, stubResponder{answer: "deploys freeze on Friday"})
	msg := seedMessage(t, fx.store, "@avatar when do deploys freeze?")

	svc.HandleMessage(1, msg)

	select {
	case frame := <-fx.link.frames:
		var f struct {
			Type string `json:"type"`
			Data struct {
				MessageID int64  `json:"messageId"`
				UserID    int64  `json:"userId"`
				Content   string `json:"content"`
			} `json:"data"`
		}
		if err := json.Unmarshal(frame, &f); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if f.Type != realtime.KindMessageCreated {
			t.Fatalf("type = %q", f.Type)
		}
		if f.Data.UserID != store.AvatarUserID {
			t.Fatalf("reply must carry the avatar user id, got %d", f.Data.UserID)
		}
		if f.Data.Content != "deploys freeze on Friday" {
			t.Fatalf("content = %q", f.Data.Content)
		}

		saved, err := fx.store.GetMessageByID(context.Background(), f.Data.MessageID)
		if err != nil {
			t.Fatalf("reply not persisted: %v", err)
		}
		if saved.UserID != store.AvatarUserID || saved.ChannelID != msg.ChannelID {
			t.Fatalf("unexpected persisted reply: %+v", saved)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected avatar reply broadcast")
	}
}

func TestServiceIgnoresPlainMessages(t *testing.T) {
	svc, fx := newAvatarService(t, stubResponder{answer: "unused"})
	msg := seedMessage(t, fx.store, "no mention here")

	svc.HandleMessage(1, msg)

	select {
	case <-fx.link.frames:
		t.Fatal("plain message must not trigger the avatar")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServiceDisabledWithoutResponder(t *testing.T) {
	svc, fx := newAvatarService(t, nil)
	if svc.Enabled() {
		t.Fatal("service without responder must report disabled")
	}

	msg := seedMessage(t, fx.store, "@avatar anyone home?")
	svc.HandleMessage(1, msg)

	select {
	case <-fx.link.frames:
		t.Fatal("disabled service must ignore mentions")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServiceSwallowsResponderFailure(t *testing.T) {
	svc, fx := newAvatarService(t, stubResponder{err: errors.New("pipeline down")})
	msg := seedMessage(t, fx.store, "@avatar are you up?")

	svc.HandleMessage(1, msg)

	select {
	case <-fx.link.frames:
		t.Fatal("failed reply must not broadcast")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPipelineReply(t *testing.T) {
	if _, err := NewPipeline(nil, 0); err == nil {
		t.Fatal("empty command must be rejected")
	}

	p, err := NewPipeline([]string{"sh", "-c", `echo '{"success": true, "answer": "forty-two"}'`}, time.Second)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	answer, err := p.Reply(context.Background(), "meaning of life")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if answer != "forty-two" {
		t.Fatalf("answer = %q", answer)
	}
}

func TestPipelineReportsSidecarError(t *testing.T) {
	p, err := NewPipeline([]string{"sh", "-c", `echo '{"error": "index unavailable"}'; exit 1`}, time.Second)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	if _, err := p.Reply(context.Background(), "anything"); err == nil || !strings.Contains(err.Error(), "index unavailable") {
		t.Fatalf("expected sidecar error, got %v", err)
	}
}

func TestPipelineRejectsGarbageOutput(t *testing.T) {
	p, err := NewPipeline([]string{"sh", "-c", `echo not-json`}, time.Second)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	if _, err := p.Reply(context.Background(), "anything"); err == nil {
		t.Fatal("expected parse failure")
	}
}

func TestPipelineTimesOut(t *testing.T) {
	p, err := NewPipeline([]string{"sh", "-c", `sleep 5`}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	start := time.Now()
	if _, err := p.Reply(context.Background(), "anything"); err == nil {
		t.Fatal("expected timeout failure")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout did not bound the subprocess")
	}
}

func TestPipelineTakesLastStdoutLine(t *testing.T) {
	p, err := NewPipeline([]string{"sh", "-c", `echo warming up; echo '{"success": true, "answer": "ok"}'`}, time.Second)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	answer, err := p.Reply(context.Background(), "anything")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if answer != "ok" {
		t.Fatalf("answer = %q", answer)
	}
}
