// Package sdk is the importable client for crewchat: a push-event
// subscription, a small REST surface, and the Timeline reconciler that merges
// optimistic, fetched and pushed messages into one rendered view.
package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Wire kinds pushed by the server.
const (
	KindConnected          = "CONNECTED"
	KindSubscribed         = "SUBSCRIBED"
	KindMessageCreated     = "MESSAGE_CREATED"
	KindReactionAdded      = "REACTION_ADDED"
	KindReactionRemoved    = "REACTION_REMOVED"
	KindChannelCreated     = "CHANNEL_CREATED"
	KindChannelUpdated     = "CHANNEL_UPDATED"
	KindChannelArchived    = "CHANNEL_ARCHIVED"
	KindUserStatusUpdate   = "USER_STATUS_UPDATE"
	KindUserProfileUpdated = "USER_PROFILE_UPDATED"
)

// ErrUnknownKind reports a frame whose type this client version does not
// recognize. Readers skip such frames instead of dying on them.
var ErrUnknownKind = errors.New("unknown event kind")

// Event is the closed set of pushes a client can receive; the concrete types
// in this file are the only implementations.
type Event interface {
	Kind() string
	isEvent()
}

// Envelope carries the frame fields every kind shares.
type Envelope struct {
	WorkspaceID int64     `json:"-"`
	Timestamp   time.Time `json:"-"`
}

// Connected acknowledges the connection itself.
type Connected struct {
	Envelope
	ConnectionID string `json:"connectionId"`
}

// Subscribed confirms the workspace subscription; the workspace id is in the
// envelope.
type Subscribed struct {
	Envelope
}

// MessageCreated announces a committed message, the sender's own included.
// Identifier round-trips the sender's correlation value so only the
// originating client can match it to a pending optimistic entry.
type MessageCreated struct {
	Envelope
	MessageID       int64     `json:"messageId"`
	ChannelID       int64     `json:"channelId"`
	ParentMessageID int64     `json:"parentMessageId"`
	UserID          int64     `json:"userId"`
	Content         string    `json:"content"`
	Identifier      string    `json:"identifier"`
	PostedAt        time.Time `json:"postedAt"`
}

// ReactionInfo is the payload shared by the reaction kinds.
type ReactionInfo struct {
	MessageID int64  `json:"messageId"`
	ChannelID int64  `json:"channelId"`
	UserID    int64  `json:"userId"`
	Emoji     string `json:"emoji"`
}

// ReactionAdded announces a reaction placed on a message.
type ReactionAdded struct {
	Envelope
	ReactionInfo
}

// ReactionRemoved announces a reaction withdrawn from a message.
type ReactionRemoved struct {
	Envelope
	ReactionInfo
}

// ChannelInfo is the payload shared by the channel lifecycle kinds.
type ChannelInfo struct {
	ChannelID   int64  `json:"channelId"`
	Name        string `json:"name"`
	Topic       string `json:"topic"`
	ChannelType string `json:"channelType"`
	Archived    bool   `json:"archived"`
}

// ChannelCreated announces a new channel in the workspace.
type ChannelCreated struct {
	Envelope
	ChannelInfo
}

// ChannelUpdated announces a renamed or retopiced channel.
type ChannelUpdated struct {
	Envelope
	ChannelInfo
}

// ChannelArchived announces a channel leaving the active set.
type ChannelArchived struct {
	Envelope
	ChannelInfo
}

// UserStatusUpdate announces a presence change.
type UserStatusUpdate struct {
	Envelope
	UserID int64  `json:"userId"`
	Status string `json:"status"`
}

// UserProfileUpdated announces a display name or avatar change.
type UserProfileUpdated struct {
	Envelope
	UserID      int64  `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

func (Connected) Kind() string          { return KindConnected }
func (Subscribed) Kind() string         { return KindSubscribed }
func (MessageCreated) Kind() string     { return KindMessageCreated }
func (ReactionAdded) Kind() string      { return KindReactionAdded }
func (ReactionRemoved) Kind() string    { return KindReactionRemoved }
func (ChannelCreated) Kind() string     { return KindChannelCreated }
func (ChannelUpdated) Kind() string     { return KindChannelUpdated }
func (ChannelArchived) Kind() string    { return KindChannelArchived }
func (UserStatusUpdate) Kind() string   { return KindUserStatusUpdate }
func (UserProfileUpdated) Kind() string { return KindUserProfileUpdated }

func (Connected) isEvent()          {}
func (Subscribed) isEvent()         {}
func (MessageCreated) isEvent()     {}
func (ReactionAdded) isEvent()      {}
func (ReactionRemoved) isEvent()    {}
func (ChannelCreated) isEvent()     {}
func (ChannelUpdated) isEvent()     {}
func (ChannelArchived) isEvent()    {}
func (UserStatusUpdate) isEvent()   {}
func (UserProfileUpdated) isEvent() {}

// DecodeFrame turns one wire frame into a typed event.
func DecodeFrame(raw []byte) (Event, error) {
	var frame struct {
		Type        string          `json:"type"`
		WorkspaceID int64           `json:"workspaceId"`
		Data        json.RawMessage `json:"data"`
		Timestamp   time.Time       `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	env := Envelope{WorkspaceID: frame.WorkspaceID, Timestamp: frame.Timestamp}

	switch frame.Type {
	case KindConnected:
		var ev Connected
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		ev.Envelope = env
		return ev, nil
	case KindSubscribed:
		return Subscribed{Envelope: env}, nil
	case KindMessageCreated:
		var ev MessageCreated
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		ev.Envelope = env
		return ev, nil
	case KindReactionAdded:
		var ev ReactionAdded
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		ev.Envelope = env
		return ev, nil
	case KindReactionRemoved:
		var ev ReactionRemoved
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		ev.Envelope = env
		return ev, nil
	case KindChannelCreated:
		var ev ChannelCreated
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		ev.Envelope = env
		return ev, nil
	case KindChannelUpdated:
		var ev ChannelUpdated
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		ev.Envelope = env
		return ev, nil
	case KindChannelArchived:
		var ev ChannelArchived
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		ev.Envelope = env
		return ev, nil
	case KindUserStatusUpdate:
		var ev UserStatusUpdate
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		ev.Envelope = env
		return ev, nil
	case KindUserProfileUpdated:
		var ev UserProfileUpdated
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", frame.Type, err)
		}
		ev.Envelope = env
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, frame.Type)
	}
}
