package sdk

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeFrameMessageCreated(t *testing.T) {
	raw := []byte(`{
		"type": "MESSAGE_CREATED",
		"workspaceId": 7,
		"data": {
			"messageId": 900,
			"channelId": 12,
			"parentMessageId": 3,
			"userId": 42,
			"content": "hello",
			"identifier": "tmp-abc",
			"postedAt": "2026-03-01T12:00:00.5Z"
		},
		"timestamp": "2026-03-01T12:00:00.75Z"
	}`)

	ev, err := DecodeFrame(raw)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	msg, ok := ev.(MessageCreated)
	if !ok {
		t.Fatalf("decoded %T, want MessageCreated", ev)
	}
	if msg.Kind() != KindMessageCreated {
		t.Fatalf("kind = %q", msg.Kind())
	}
	if msg.WorkspaceID != 7 {
		t.Fatalf("workspaceId = %d, want 7", msg.WorkspaceID)
	}
	if msg.MessageID != 900 || msg.ChannelID != 12 || msg.ParentMessageID != 3 {
		t.Fatalf("unexpected ids: %+v", msg)
	}
	if msg.UserID != 42 || msg.Content != "hello" || msg.Identifier != "tmp-abc" {
		t.Fatalf("unexpected payload: %+v", msg)
	}
	wantPosted := time.Date(2026, 3, 1, 12, 0, 0, 500000000, time.UTC)
	if !msg.PostedAt.Equal(wantPosted) {
		t.Fatalf("postedAt = %v, want %v", msg.PostedAt, wantPosted)
	}
	if msg.Timestamp.IsZero() {
		t.Fatal("envelope timestamp not decoded")
	}
}

func TestDecodeFrameOmittedOptionalFields(t *testing.T) {
	// Root messages omit parentMessageId and identifier on the wire.
	raw := []byte(`{
		"type": "MESSAGE_CREATED",
		"workspaceId": 7,
		"data": {"messageId": 1, "channelId": 2, "userId": 3, "content": "hi", "postedAt": "2026-03-01T12:00:00Z"},
		"timestamp": "2026-03-01T12:00:00Z"
	}`)

	ev, err := DecodeFrame(raw)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	msg := ev.(MessageCreated)
	if msg.ParentMessageID != 0 || msg.Identifier != "" {
		t.Fatalf("optional fields not zero: %+v", msg)
	}
}

func TestDecodeFrameAllKinds(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want func(t *testing.T, ev Event)
	}{
		{
			name: "connected",
			raw:  `{"type":"CONNECTED","workspaceId":7,"data":{"connectionId":"abc-123"},"timestamp":"2026-03-01T12:00:00Z"}`,
			want: func(t *testing.T, ev Event) {
				c, ok := ev.(Connected)
				if !ok || c.ConnectionID != "abc-123" {
					t.Fatalf("decoded %#v", ev)
				}
			},
		},
		{
			name: "subscribed",
			raw:  `{"type":"SUBSCRIBED","workspaceId":7,"data":{"workspaceId":7},"timestamp":"2026-03-01T12:00:00Z"}`,
			want: func(t *testing.T, ev Event) {
				s, ok := ev.(Subscribed)
				if !ok || s.WorkspaceID != 7 {
					t.Fatalf("decoded %#v", ev)
				}
			},
		},
		{
			name: "reaction added",
			raw:  `{"type":"REACTION_ADDED","workspaceId":7,"data":{"messageId":1,"channelId":2,"userId":3,"emoji":"👍"},"timestamp":"2026-03-01T12:00:00Z"}`,
			want: func(t *testing.T, ev Event) {
				r, ok := ev.(ReactionAdded)
				if !ok || r.MessageID != 1 || r.Emoji != "👍" {
					t.Fatalf("decoded %#v", ev)
				}
			},
		},
		{
			name: "reaction removed",
			raw:  `{"type":"REACTION_REMOVED","workspaceId":7,"data":{"messageId":1,"channelId":2,"userId":3,"emoji":"👍"},"timestamp":"2026-03-01T12:00:00Z"}`,
			want: func(t *testing.T, ev Event) {
				r, ok := ev.(ReactionRemoved)
				if !ok || r.MessageID != 1 || r.Emoji != "👍" {
					t.Fatalf("decoded %#v", ev)
				}
			},
		},
		{
			name: "channel created",
			raw:  `{"type":"CHANNEL_CREATED","workspaceId":7,"data":{"channelId":5,"workspaceId":7,"name":"general","channelType":"public","archived":false},"timestamp":"2026-03-01T12:00:00Z"}`,
			want: func(t *testing.T, ev Event) {
				c, ok := ev.(ChannelCreated)
				if !ok || c.ChannelID != 5 || c.Name != "general" || c.ChannelType != "public" {
					t.Fatalf("decoded %#v", ev)
				}
				if c.WorkspaceID != 7 {
					t.Fatalf("envelope workspace = %d", c.WorkspaceID)
				}
			},
		},
		{
			name: "channel updated",
			raw:  `{"type":"CHANNEL_UPDATED","workspaceId":7,"data":{"channelId":5,"workspaceId":7,"name":"general","topic":"new topic","channelType":"public","archived":false},"timestamp":"2026-03-01T12:00:00Z"}`,
			want: func(t *testing.T, ev Event) {
				c, ok := ev.(ChannelUpdated)
				if !ok || c.Topic != "new topic" {
					t.Fatalf("decoded %#v", ev)
				}
			},
		},
		{
			name: "channel archived",
			raw:  `{"type":"CHANNEL_ARCHIVED","workspaceId":7,"data":{"channelId":5,"workspaceId":7,"name":"general","channelType":"public","archived":true},"timestamp":"2026-03-01T12:00:00Z"}`,
			want: func(t *testing.T, ev Event) {
				c, ok := ev.(ChannelArchived)
				if !ok || !c.Archived {
					t.Fatalf("decoded %#v", ev)
				}
			},
		},
		{
			name: "user status",
			raw:  `{"type":"USER_STATUS_UPDATE","workspaceId":7,"data":{"userId":3,"status":"away"},"timestamp":"2026-03-01T12:00:00Z"}`,
			want: func(t *testing.T, ev Event) {
				u, ok := ev.(UserStatusUpdate)
				if !ok || u.UserID != 3 || u.Status != "away" {
					t.Fatalf("decoded %#v", ev)
				}
			},
		},
		{
			name: "user profile",
			raw:  `{"type":"USER_PROFILE_UPDATED","workspaceId":7,"data":{"userId":3,"displayName":"Ann","avatarUrl":"https://cdn/a.png"},"timestamp":"2026-03-01T12:00:00Z"}`,
			want: func(t *testing.T, ev Event) {
				u, ok := ev.(UserProfileUpdated)
				if !ok || u.DisplayName != "Ann" || u.AvatarURL != "https://cdn/a.png" {
					t.Fatalf("decoded %#v", ev)
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := DecodeFrame([]byte(tc.raw))
			if err != nil {
				t.Fatalf("DecodeFrame: %v", err)
			}
			tc.want(t, ev)
		})
	}
}

func TestDecodeFrameUnknownKind(t *testing.T) {
	raw := []byte(`{"type":"TYPING_STARTED","workspaceId":7,"data":{},"timestamp":"2026-03-01T12:00:00Z"}`)
	_, err := DecodeFrame(raw)
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
}

func TestDecodeFrameGarbage(t *testing.T) {
	if _, err := DecodeFrame([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed frame")
	}
	if _, err := DecodeFrame([]byte(`{"type":"MESSAGE_CREATED","data":{"messageId":"not a number"}}`)); err == nil {
		t.Fatal("expected error for mistyped payload")
	}
}
