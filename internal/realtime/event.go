package realtime

import (
	"encoding/json"
	"errors"
	"time"
)

// Wire values for the frame "type" field.
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

// Event is a notification pushed to subscribed connections. The set of
// implementations is closed: the unexported method keeps new kinds from being
// declared outside this package, so switches over the union stay exhaustive.
// Events are immutable once constructed and never persisted.
type Event interface {
	Kind() string
	isEvent()
}

// Connected acknowledges a freshly admitted connection.
type Connected struct {
	ConnectionID string `json:"connectionId"`
}

// Subscribed confirms which workspace the connection receives events for.
type Subscribed struct {
	WorkspaceID int64 `json:"workspaceId"`
}

// MessageCreated announces a committed message. Identifier echoes the
// client-supplied correlation value so the originating client can match the
// event to its own pending optimistic entry.
type MessageCreated struct {
	MessageID       int64     `json:"messageId"`
	ChannelID       int64     `json:"channelId"`
	ParentMessageID int64     `json:"parentMessageId,omitempty"`
	UserID          int64     `json:"userId"`
	Content         string    `json:"content"`
	Identifier      string    `json:"identifier,omitempty"`
	PostedAt        time.Time `json:"postedAt"`
}

// ReactionPayload carries the fields shared by reaction events.
type ReactionPayload struct {
	MessageID int64  `json:"messageId"`
	ChannelID int64  `json:"channelId"`
	UserID    int64  `json:"userId"`
	Emoji     string `json:"emoji"`
}

// ReactionAdded announces a reaction placed on a message.
type ReactionAdded struct{ ReactionPayload }

// ReactionRemoved announces a reaction withdrawn from a message.
type ReactionRemoved struct{ ReactionPayload }

// ChannelPayload carries the fields shared by channel lifecycle events.
type ChannelPayload struct {
	ChannelID   int64  `json:"channelId"`
	WorkspaceID int64  `json:"workspaceId"`
	Name        string `json:"name"`
	Topic       string `json:"topic,omitempty"`
	ChannelType string `json:"channelType"`
	Archived    bool   `json:"archived"`
}

// ChannelCreated announces a new channel in the workspace.
type ChannelCreated struct{ ChannelPayload }

// ChannelUpdated announces a renamed or retopiced channel.
type ChannelUpdated struct{ ChannelPayload }

// ChannelArchived announces a channel leaving the active listing.
type ChannelArchived struct{ ChannelPayload }

// UserStatusUpdate announces a presence change.
type UserStatusUpdate struct {
	UserID int64  `json:"userId"`
	Status string `json:"status"`
}

// UserProfileUpdated announces a display name or avatar change.
type UserProfileUpdated struct {
	UserID      int64  `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
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

// frame is the envelope every pushed event travels in.
type frame struct {
	Type        string `json:"type"`
	WorkspaceID int64  `json:"workspaceId"`
	Data        Event  `json:"data"`
	Timestamp   string `json:"timestamp"`
}

// Encode serializes an event into its wire frame. The dispatcher calls this
// exactly once per broadcast so fan-out never re-marshals per connection.
func Encode(workspaceID int64, ev Event) ([]byte, error) {
	if ev == nil {
		return nil, errors.New("nil event")
	}
	return json.Marshal(frame{
		Type:        ev.Kind(),
		WorkspaceID: workspaceID,
		Data:        ev,
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
	})
}
