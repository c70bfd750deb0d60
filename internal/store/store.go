package store

import (
	"context"
	"errors"
	"time"
)

// AvatarUserID is the reserved identity for AI-authored replies. It is negative
// so clients can tell synthetic authors from real ones.
const AvatarUserID int64 = -1

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// User represents an account in the system.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	DisplayName  string
	AvatarURL    string
	Status       string
	CreatedAt    time.Time
}

// Workspace is the top-level tenant grouping channels and members.
type Workspace struct {
	ID        int64
	Name      string
	OwnerID   int64
	CreatedAt time.Time
}

// WorkspaceMember represents workspace membership.
type WorkspaceMember struct {
	WorkspaceID int64
	UserID      int64
	Role        string
	JoinedAt    time.Time
}

// ChannelType defines different kinds of channels.
type ChannelType string

const (
	ChannelTypePublic  ChannelType = "public"
	ChannelTypePrivate ChannelType = "private"
	ChannelTypeDirect  ChannelType = "direct"
)

// Channel is a conversation stream within a workspace.
type Channel struct {
	ID          int64
	WorkspaceID int64
	Name        string
	Topic       string
	Type        ChannelType
	DirectKey   *string // for direct channels: "dm:{workspaceId}:{minUserId}:{maxUserId}"
	Archived    bool
	CreatedBy   *int64
	CreatedAt   time.Time
}

// Message represents a persisted chat message. ParentID is set for thread replies.
type Message struct {
	ID        int64
	ChannelID int64
	UserID    int64
	ParentID  *int64
	Content   string
	Deleted   bool
	CreatedAt time.Time
}

// Reaction is a single user's emoji reaction on a message.
type Reaction struct {
	MessageID int64
	UserID    int64
	Emoji     string
	CreatedAt time.Time
}

// Pin marks a message as pinned in its channel.
type Pin struct {
	ChannelID int64
	MessageID int64
	PinnedBy  int64
	PinnedAt  time.Time
}

// Attachment holds file metadata attached to a message. The bytes themselves
// live outside this store.
type Attachment struct {
	ID         int64
	MessageID  int64
	FileName   string
	MimeType   string
	SizeBytes  int64
	StorageKey string
	CreatedAt  time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// UpdateProfile updates display name and avatar URL. Empty values keep
	// the stored ones.
	UpdateProfile(ctx context.Context, userID int64, displayName, avatarURL string) (*User, error)

	// UpdateStatus sets the user's presence status string.
	UpdateStatus(ctx context.Context, userID int64, status string) error
}

// WorkspaceStore handles workspace persistence.
type WorkspaceStore interface {
	// CreateWorkspace creates a workspace and adds the owner as a member.
	CreateWorkspace(ctx context.Context, name string, ownerID int64) (*Workspace, error)

	// GetWorkspaceByID retrieves a workspace by ID.
	GetWorkspaceByID(ctx context.Context, id int64) (*Workspace, error)

	// ListWorkspaces lists workspaces the user is a member of.
	ListWorkspaces(ctx context.Context, userID int64) ([]*Workspace, error)

	// AddWorkspaceMember adds a user to a workspace.
	AddWorkspaceMember(ctx context.Context, workspaceID, userID int64, role string) error

	// IsWorkspaceMember checks workspace membership.
	IsWorkspaceMember(ctx context.Context, workspaceID, userID int64) (bool, error)

	// ListMemberWorkspaceIDs returns the IDs of every workspace the user belongs to.
	ListMemberWorkspaceIDs(ctx context.Context, userID int64) ([]int64, error)
}

// ChannelStore handles channel persistence.
type ChannelStore interface {
	// CreateChannel creates a channel inside a workspace.
	CreateChannel(ctx context.Context, workspaceID int64, name, topic string, channelType ChannelType, createdBy int64) (*Channel, error)

	// CreateDirectChannel creates (or returns the existing) direct-message
	// channel between two users, deduplicated via directKey.
	CreateDirectChannel(ctx context.Context, workspaceID int64, directKey string, user1ID, user2ID int64) (*Channel, error)

	// GetChannelByID retrieves a channel by ID.
	GetChannelByID(ctx context.Context, id int64) (*Channel, error)

	// ListChannels lists non-archived channels in a workspace.
	ListChannels(ctx context.Context, workspaceID int64) ([]*Channel, error)

	// UpdateChannel updates name and/or topic; empty values keep the stored ones.
	UpdateChannel(ctx context.Context, id int64, name, topic string) (*Channel, error)

	// ArchiveChannel marks a channel archived.
	ArchiveChannel(ctx context.Context, id int64) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and fills its ID and CreatedAt.
	SaveMessage(ctx context.Context, msg *Message) error

	// GetMessageByID retrieves a message by ID.
	GetMessageByID(ctx context.Context, id int64) (*Message, error)

	// ListMessages retrieves channel messages oldest-first. If parentID is
	// nil, only top-level messages are returned; otherwise only replies to
	// that parent. If beforeID is provided, returns messages older than that
	// ID. Limit bounds the page size.
	ListMessages(ctx context.Context, channelID int64, parentID *int64, limit int, beforeID *int64) ([]*Message, error)

	// SoftDeleteMessage flags a message deleted without removing the row.
	SoftDeleteMessage(ctx context.Context, id int64) error
}

// ReactionStore handles reaction persistence.
type ReactionStore interface {
	// AddReaction records a reaction; adding the same one twice is an error.
	AddReaction(ctx context.Context, messageID, userID int64, emoji string) error

	// RemoveReaction removes a reaction if present.
	RemoveReaction(ctx context.Context, messageID, userID int64, emoji string) error

	// CountReactions aggregates reaction counts per emoji for the given messages.
	CountReactions(ctx context.Context, messageIDs []int64) (map[int64]map[string]int, error)
}

// PinStore handles pin persistence.
type PinStore interface {
	// PinMessage pins a message in its channel.
	PinMessage(ctx context.Context, channelID, messageID, pinnedBy int64) error

	// UnpinMessage removes a pin if present.
	UnpinMessage(ctx context.Context, channelID, messageID int64) error

	// ListPins lists pins for a channel, newest first.
	ListPins(ctx context.Context, channelID int64) ([]*Pin, error)
}

// AttachmentStore handles attachment metadata persistence.
type AttachmentStore interface {
	// AddAttachment records attachment metadata for a message.
	AddAttachment(ctx context.Context, att *Attachment) error

	// ListAttachments lists attachments for a message.
	ListAttachments(ctx context.Context, messageID int64) ([]*Attachment, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	WorkspaceStore
	ChannelStore
	MessageStore
	ReactionStore
	PinStore
	AttachmentStore

	// Close closes the underlying database connection.
	Close() error
}
