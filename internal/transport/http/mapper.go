package http

import (
	"time"

	"github.com/samber/lo"

	"crewchat/internal/realtime"
	"crewchat/internal/store"
)

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Status      string `json:"status"`
}

// WorkspaceResponse represents a workspace in API responses.
type WorkspaceResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChannelResponse represents a channel in API responses.
type ChannelResponse struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspaceId"`
	Name        string    `json:"name"`
	Topic       string    `json:"topic,omitempty"`
	ChannelType string    `json:"channelType"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MessageResponse represents a message in API responses. The field names
// mirror the MESSAGE_CREATED push payload so clients reconcile fetched and
// pushed entries with one code path.
type MessageResponse struct {
	MessageID       int64          `json:"messageId"`
	ChannelID       int64          `json:"channelId"`
	ParentMessageID int64          `json:"parentMessageId,omitempty"`
	UserID          int64          `json:"userId"`
	Content         string         `json:"content"`
	Deleted         bool           `json:"deleted"`
	PostedAt        time.Time      `json:"postedAt"`
	ReactionCounts  map[string]int `json:"reactionCounts,omitempty"`
}

// PinResponse represents a pinned message reference.
type PinResponse struct {
	ChannelID int64     `json:"channelId"`
	MessageID int64     `json:"messageId"`
	PinnedBy  int64     `json:"pinnedBy"`
	PinnedAt  time.Time `json:"pinnedAt"`
}

// AttachmentResponse represents attachment metadata.
type AttachmentResponse struct {
	ID         int64     `json:"id"`
	MessageID  int64     `json:"messageId"`
	FileName   string    `json:"fileName"`
	MimeType   string    `json:"mimeType"`
	SizeBytes  int64     `json:"sizeBytes"`
	StorageKey string    `json:"storageKey"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toUserResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Status:      u.Status,
	}
}

func toWorkspaceResponse(w *store.Workspace) WorkspaceResponse {
	return WorkspaceResponse{
		ID:        w.ID,
		Name:      w.Name,
		OwnerID:   w.OwnerID,
		CreatedAt: w.CreatedAt,
	}
}

func toWorkspaceResponses(workspaces []*store.Workspace) []WorkspaceResponse {
	return lo.Map(workspaces, func(w *store.Workspace, _ int) WorkspaceResponse {
		return toWorkspaceResponse(w)
	})
}

func toChannelResponse(ch *store.Channel) ChannelResponse {
	return ChannelResponse{
		ID:          ch.ID,
		WorkspaceID: ch.WorkspaceID,
		Name:        ch.Name,
		Topic:       ch.Topic,
		ChannelType: string(ch.Type),
		Archived:    ch.Archived,
		CreatedAt:   ch.CreatedAt,
	}
}

func toChannelResponses(channels []*store.Channel) []ChannelResponse {
	return lo.Map(channels, func(ch *store.Channel, _ int) ChannelResponse {
		return toChannelResponse(ch)
	})
}

// toMessageResponse hides the content of soft-deleted messages.
func toMessageResponse(m *store.Message, counts map[string]int) MessageResponse {
	content := m.Content
	if m.Deleted {
		content = ""
	}
	resp := MessageResponse{
		MessageID:      m.ID,
		ChannelID:      m.ChannelID,
		UserID:         m.UserID,
		Content:        content,
		Deleted:        m.Deleted,
		PostedAt:       m.CreatedAt,
		ReactionCounts: counts,
	}
	if m.ParentID != nil {
		resp.ParentMessageID = *m.ParentID
	}
	return resp
}

func toMessageResponses(messages []*store.Message, countsByID map[int64]map[string]int) []MessageResponse {
	return lo.Map(messages, func(m *store.Message, _ int) MessageResponse {
		return toMessageResponse(m, countsByID[m.ID])
	})
}

func toPinResponses(pins []*store.Pin) []PinResponse {
	return lo.Map(pins, func(p *store.Pin, _ int) PinResponse {
		return PinResponse{
			ChannelID: p.ChannelID,
			MessageID: p.MessageID,
			PinnedBy:  p.PinnedBy,
			PinnedAt:  p.PinnedAt,
		}
	})
}

func toAttachmentResponse(a *store.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:         a.ID,
		MessageID:  a.MessageID,
		FileName:   a.FileName,
		MimeType:   a.MimeType,
		SizeBytes:  a.SizeBytes,
		StorageKey: a.StorageKey,
		CreatedAt:  a.CreatedAt,
	}
}

func toAttachmentResponses(attachments []*store.Attachment) []AttachmentResponse {
	return lo.Map(attachments, func(a *store.Attachment, _ int) AttachmentResponse {
		return toAttachmentResponse(a)
	})
}

// channelEventPayload builds the shared payload for channel lifecycle events.
func channelEventPayload(ch *store.Channel) realtime.ChannelPayload {
	return realtime.ChannelPayload{
		ChannelID:   ch.ID,
		WorkspaceID: ch.WorkspaceID,
		Name:        ch.Name,
		Topic:       ch.Topic,
		ChannelType: string(ch.Type),
		Archived:    ch.Archived,
	}
}
