package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"testing"
	"time"

	"github.com/coder/websocket"
)

type channelEventData struct {
	ChannelID   int64  `json:"channelId"`
	WorkspaceID int64  `json:"workspaceId"`
	Name        string `json:"name"`
	Topic       string `json:"topic"`
	ChannelType string `json:"channelType"`
	Archived    bool   `json:"archived"`
}

func TestCreateAndListWorkspaces(t *testing.T) {
	env := newTestEnv(t, nil)
	aliceID, token := env.registerUser(t, "alice")

	first := env.createWorkspace(t, token, "engineering")
	second := env.createWorkspace(t, token, "design")

	status, body := env.doJSON(t, stdhttp.MethodGet, "/api/workspaces", token, nil)
	if status != stdhttp.StatusOK {
		t.Fatalf("list workspaces: status %d, body %s", status, body)
	}
	var workspaces []WorkspaceResponse
	if err := json.Unmarshal(body, &workspaces); err != nil {
		t.Fatalf("decode workspaces: %v", err)
	}
	if len(workspaces) != 2 {
		t.Fatalf("got %d workspaces, want 2", len(workspaces))
	}
	seen := map[int64]bool{}
	for _, ws := range workspaces {
		seen[ws.ID] = true
		if ws.OwnerID != aliceID {
			t.Fatalf("workspace %d ownerId = %d, want %d", ws.ID, ws.OwnerID, aliceID)
		}
	}
	if !seen[first] || !seen[second] {
		t.Fatalf("listing misses created workspaces: %v", seen)
	}
}

func TestAddMember(t *testing.T) {
	env := newTestEnv(t, nil)
	_, aliceToken := env.registerUser(t, "alice")
	bobID, bobToken := env.registerUser(t, "bob")
	_, carolToken := env.registerUser(t, "carol")

	workspaceID := env.createWorkspace(t, aliceToken, "engineering")
	membersPath := "/api/workspaces/" + itoa(workspaceID) + "/members"

	// A non-member cannot add anyone.
	status, _ := env.doJSON(t, stdhttp.MethodPost, membersPath, carolToken, map[string]any{
		"userId": bobID,
	})
	if status != stdhttp.StatusForbidden {
		t.Fatalf("non-member add: status %d, want 403", status)
	}

	status, _ = env.doJSON(t, stdhttp.MethodPost, membersPath, aliceToken, map[string]any{
		"userId": bobID,
	})
	if status != stdhttp.StatusNoContent {
		t.Fatalf("add member: status %d, want 204", status)
	}

	status, _ = env.doJSON(t, stdhttp.MethodPost, membersPath, aliceToken, map[string]any{
		"userId": bobID,
	})
	if status != stdhttp.StatusConflict {
		t.Fatalf("duplicate add: status %d, want 409", status)
	}

	status, _ = env.doJSON(t, stdhttp.MethodPost, membersPath, aliceToken, map[string]any{
		"userId": int64(99999),
	})
	if status != stdhttp.StatusNotFound {
		t.Fatalf("unknown user: status %d, want 404", status)
	}

	// Bob now sees the workspace.
	status, body := env.doJSON(t, stdhttp.MethodGet, "/api/workspaces", bobToken, nil)
	if status != stdhttp.StatusOK {
		t.Fatalf("bob list: status %d", status)
	}
	var workspaces []WorkspaceResponse
	if err := json.Unmarshal(body, &workspaces); err != nil {
		t.Fatalf("decode workspaces: %v", err)
	}
	if len(workspaces) != 1 || workspaces[0].ID != workspaceID {
		t.Fatalf("bob's workspaces = %+v", workspaces)
	}
}

func TestCreateChannelBroadcasts(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.registerUser(t, "alice")
	workspaceID := env.createWorkspace(t, token, "engineering")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dialWS(ctx, t, env, token, workspaceID)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	status, body := env.doJSON(t, stdhttp.MethodPost, "/api/workspaces/"+itoa(workspaceID)+"/channels", token, map[string]any{
		"name":  "random",
		"topic": "off topic",
	})
	if status != stdhttp.StatusCreated {
		t.Fatalf("create channel: status %d, body %s", status, body)
	}
	var created ChannelResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode channel: %v", err)
	}
	if created.ChannelType != "public" {
		t.Fatalf("default channelType = %q, want public", created.ChannelType)
	}

	frame := readFrame(ctx, t, conn)
	if frame.Type != "CHANNEL_CREATED" {
		t.Fatalf("frame type = %s, want CHANNEL_CREATED", frame.Type)
	}
	var data channelEventData
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if data.ChannelID != created.ID || data.Name != "random" || data.Topic != "off topic" {
		t.Fatalf("unexpected event payload: %+v", data)
	}

	// Duplicate name in the same workspace conflicts.
	status, _ = env.doJSON(t, stdhttp.MethodPost, "/api/workspaces/"+itoa(workspaceID)+"/channels", token, map[string]any{
		"name": "random",
	})
	if status != stdhttp.StatusConflict {
		t.Fatalf("duplicate channel: status %d, want 409", status)
	}

	status, _ = env.doJSON(t, stdhttp.MethodPost, "/api/workspaces/"+itoa(workspaceID)+"/channels", token, map[string]any{
		"name":        "secrets",
		"channelType": "direct",
	})
	if status != stdhttp.StatusBadRequest {
		t.Fatalf("direct type via create: status %d, want 400", status)
	}
}

func TestUpdateAndArchiveChannel(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.registerUser(t, "alice")
	workspaceID := env.createWorkspace(t, token, "engineering")
	channelID := env.createChannel(t, token, workspaceID, "general")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dialWS(ctx, t, env, token, workspaceID)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	status, body := env.doJSON(t, stdhttp.MethodPatch, "/api/channels/"+itoa(channelID), token, map[string]any{
		"topic": "daily standup notes",
	})
	if status != stdhttp.StatusOK {
		t.Fatalf("update channel: status %d, body %s", status, body)
	}

	frame := readFrame(ctx, t, conn)
	if frame.Type != "CHANNEL_UPDATED" {
		t.Fatalf("frame type = %s, want CHANNEL_UPDATED", frame.Type)
	}
	var updated channelEventData
	if err := json.Unmarshal(frame.Data, &updated); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if updated.Topic != "daily standup notes" || updated.Name != "general" {
		t.Fatalf("unexpected update payload: %+v", updated)
	}

	status, _ = env.doJSON(t, stdhttp.MethodPatch, "/api/channels/"+itoa(channelID), token, map[string]any{})
	if status != stdhttp.StatusBadRequest {
		t.Fatalf("empty update: status %d, want 400", status)
	}

	status, body = env.doJSON(t, stdhttp.MethodPost, "/api/channels/"+itoa(channelID)+"/archive", token, nil)
	if status != stdhttp.StatusOK {
		t.Fatalf("archive channel: status %d, body %s", status, body)
	}

	frame = readFrame(ctx, t, conn)
	if frame.Type != "CHANNEL_ARCHIVED" {
		t.Fatalf("frame type = %s, want CHANNEL_ARCHIVED", frame.Type)
	}
	var archived channelEventData
	if err := json.Unmarshal(frame.Data, &archived); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if !archived.Archived {
		t.Fatal("CHANNEL_ARCHIVED payload not flagged archived")
	}

	// Archived channels drop out of the listing.
	status, body = env.doJSON(t, stdhttp.MethodGet, "/api/workspaces/"+itoa(workspaceID)+"/channels", token, nil)
	if status != stdhttp.StatusOK {
		t.Fatalf("list channels: status %d", status)
	}
	var channels []ChannelResponse
	if err := json.Unmarshal(body, &channels); err != nil {
		t.Fatalf("decode channels: %v", err)
	}
	for _, ch := range channels {
		if ch.ID == channelID {
			t.Fatal("archived channel still listed")
		}
	}
}

func TestNonMemberForbidden(t *testing.T) {
	env := newTestEnv(t, nil)
	_, aliceToken := env.registerUser(t, "alice")
	_, bobToken := env.registerUser(t, "bob")

	workspaceID := env.createWorkspace(t, aliceToken, "engineering")
	channelID := env.createChannel(t, aliceToken, workspaceID, "general")

	status, _ := env.doJSON(t, stdhttp.MethodGet, "/api/workspaces/"+itoa(workspaceID)+"/channels", bobToken, nil)
	if status != stdhttp.StatusForbidden {
		t.Fatalf("list channels as outsider: status %d, want 403", status)
	}

	status, _ = env.doJSON(t, stdhttp.MethodPost, "/api/channels/"+itoa(channelID)+"/messages", bobToken, map[string]any{
		"content": "let me in",
	})
	if status != stdhttp.StatusForbidden {
		t.Fatalf("post as outsider: status %d, want 403", status)
	}
}

func TestDirectChannelPairing(t *testing.T) {
	env := newTestEnv(t, nil)
	aliceID, aliceToken := env.registerUser(t, "alice")
	bobID, bobToken := env.registerUser(t, "bob")
	carolID, _ := env.registerUser(t, "carol")

	workspaceID := env.createWorkspace(t, aliceToken, "engineering")
	env.doJSON(t, stdhttp.MethodPost, "/api/workspaces/"+itoa(workspaceID)+"/members", aliceToken, map[string]any{
		"userId": bobID,
	})

	directPath := "/api/workspaces/" + itoa(workspaceID) + "/channels/direct"

	status, body := env.doJSON(t, stdhttp.MethodPost, directPath, aliceToken, map[string]any{
		"userId": bobID,
	})
	if status != stdhttp.StatusOK {
		t.Fatalf("create direct: status %d, body %s", status, body)
	}
	var first ChannelResponse
	if err := json.Unmarshal(body, &first); err != nil {
		t.Fatalf("decode direct channel: %v", err)
	}
	if first.ChannelType != "direct" {
		t.Fatalf("channelType = %q, want direct", first.ChannelType)
	}

	// Bob asking for the same pair gets the same channel.
	status, body = env.doJSON(t, stdhttp.MethodPost, directPath, bobToken, map[string]any{
		"userId": aliceID,
	})
	if status != stdhttp.StatusOK {
		t.Fatalf("create direct reversed: status %d, body %s", status, body)
	}
	var second ChannelResponse
	if err := json.Unmarshal(body, &second); err != nil {
		t.Fatalf("decode direct channel: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("direct pairing not deduplicated: %d vs %d", second.ID, first.ID)
	}

	status, _ = env.doJSON(t, stdhttp.MethodPost, directPath, aliceToken, map[string]any{
		"userId": aliceID,
	})
	if status != stdhttp.StatusBadRequest {
		t.Fatalf("self direct: status %d, want 400", status)
	}

	// Carol never joined the workspace.
	status, _ = env.doJSON(t, stdhttp.MethodPost, directPath, aliceToken, map[string]any{
		"userId": carolID,
	})
	if status != stdhttp.StatusNotFound {
		t.Fatalf("direct with outsider: status %d, want 404", status)
	}
}
