package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"crewchat/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function once the
// schema is applied. Useful for tests that seed fixture rows.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, display_name)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash, username)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, display_name, avatar_url, status, created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.DisplayName,
		&user.AvatarURL,
		&user.Status,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, display_name, avatar_url, status, created_at
		FROM users
		WHERE username = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.DisplayName,
		&user.AvatarURL,
		&user.Status,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// UpdateProfile updates display name and avatar URL. Empty values keep the stored ones.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, userID int64, displayName, avatarURL string) (*store.User, error) {
	query := `
		UPDATE users
		SET display_name = CASE WHEN ? = '' THEN display_name ELSE ? END,
		    avatar_url   = CASE WHEN ? = '' THEN avatar_url ELSE ? END
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, displayName, displayName, avatarURL, avatarURL, userID)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("user %d: %w", userID, store.ErrNotFound)
	}

	return s.GetUserByID(ctx, userID)
}

// UpdateStatus sets the user's presence status string.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, userID int64, status string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET status = ? WHERE id = ?`, status, userID)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %d: %w", userID, store.ErrNotFound)
	}
	return nil
}

// ==== WorkspaceStore implementation ====

// CreateWorkspace creates a workspace and adds the owner as a member.
func (s *SQLiteStore) CreateWorkspace(ctx context.Context, name string, ownerID int64) (*store.Workspace, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `INSERT INTO workspaces (name, owner_id) VALUES (?, ?)`, name, ownerID)
	if err != nil {
		return nil, fmt.Errorf("insert workspace: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO workspace_members (workspace_id, user_id, role) VALUES (?, ?, 'owner')`, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.GetWorkspaceByID(ctx, id)
}

// GetWorkspaceByID retrieves a workspace by ID.
func (s *SQLiteStore) GetWorkspaceByID(ctx context.Context, id int64) (*store.Workspace, error) {
	query := `SELECT id, name, owner_id, created_at FROM workspaces WHERE id = ?`

	var ws store.Workspace
	err := s.db.QueryRowContext(ctx, query, id).Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("workspace %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query workspace: %w", err)
	}
	return &ws, nil
}

// ListWorkspaces lists workspaces the user is a member of.
func (s *SQLiteStore) ListWorkspaces(ctx context.Context, userID int64) ([]*store.Workspace, error) {
	query := `
		SELECT w.id, w.name, w.owner_id, w.created_at
		FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = ?
		ORDER BY w.id
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query workspaces: %w", err)
	}
	defer rows.Close()

	var out []*store.Workspace
	for rows.Next() {
		var ws store.Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		out = append(out, &ws)
	}
	return out, rows.Err()
}

// AddWorkspaceMember adds a user to a workspace.
func (s *SQLiteStore) AddWorkspaceMember(ctx context.Context, workspaceID, userID int64, role string) error {
	if role == "" {
		role = "member"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workspace_members (workspace_id, user_id, role) VALUES (?, ?, ?)`,
		workspaceID, userID, role)
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

// IsWorkspaceMember checks workspace membership.
func (s *SQLiteStore) IsWorkspaceMember(ctx context.Context, workspaceID, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM workspace_members WHERE workspace_id = ? AND user_id = ?`,
		workspaceID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query membership: %w", err)
	}
	return true, nil
}

// ListMemberWorkspaceIDs returns the IDs of every workspace the user belongs to.
func (s *SQLiteStore) ListMemberWorkspaceIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT workspace_id FROM workspace_members WHERE user_id = ? ORDER BY workspace_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query member workspaces: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan workspace id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ==== ChannelStore implementation ====

const channelColumns = `id, workspace_id, name, topic, type, direct_key, archived, created_by, created_at`

func scanChannel(row interface{ Scan(...any) error }) (*store.Channel, error) {
	var ch store.Channel
	var chType string
	err := row.Scan(
		&ch.ID,
		&ch.WorkspaceID,
		&ch.Name,
		&ch.Topic,
		&chType,
		&ch.DirectKey,
		&ch.Archived,
		&ch.CreatedBy,
		&ch.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	ch.Type = store.ChannelType(chType)
	return &ch, nil
}

// CreateChannel creates a channel inside a workspace.
func (s *SQLiteStore) CreateChannel(ctx context.Context, workspaceID int64, name, topic string, channelType store.ChannelType, createdBy int64) (*store.Channel, error) {
	query := `
		INSERT INTO channels (workspace_id, name, topic, type, created_by)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, workspaceID, name, topic, string(channelType), createdBy)
	if err != nil {
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return s.GetChannelByID(ctx, id)
}

// CreateDirectChannel creates (or returns the existing) direct-message channel
// between two users, deduplicated via directKey.
func (s *SQLiteStore) CreateDirectChannel(ctx context.Context, workspaceID int64, directKey string, user1ID, user2ID int64) (*store.Channel, error) {
	existing, err := s.getChannelByDirectKey(ctx, directKey)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	query := `
		INSERT INTO channels (workspace_id, name, type, direct_key, created_by)
		VALUES (?, ?, 'direct', ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, workspaceID, directKey, directKey, user1ID)
	if err != nil {
		// Lost a race with a concurrent creator; the existing row wins.
		if strings.Contains(err.Error(), "UNIQUE") {
			return s.getChannelByDirectKey(ctx, directKey)
		}
		return nil, fmt.Errorf("insert direct channel: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	_ = user2ID // participants are encoded in the direct key
	return s.GetChannelByID(ctx, id)
}

func (s *SQLiteStore) getChannelByDirectKey(ctx context.Context, directKey string) (*store.Channel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE direct_key = ?`, directKey)
	ch, err := scanChannel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("direct channel %q: %w", directKey, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query direct channel: %w", err)
	}
	return ch, nil
}

// GetChannelByID retrieves a channel by ID.
func (s *SQLiteStore) GetChannelByID(ctx context.Context, id int64) (*store.Channel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE id = ?`, id)
	ch, err := scanChannel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("channel %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query channel: %w", err)
	}
	return ch, nil
}

// ListChannels lists non-archived channels in a workspace.
func (s *SQLiteStore) ListChannels(ctx context.Context, workspaceID int64) ([]*store.Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE workspace_id = ? AND archived = 0 ORDER BY id`,
		workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var out []*store.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// UpdateChannel updates name and/or topic; empty values keep the stored ones.
func (s *SQLiteStore) UpdateChannel(ctx context.Context, id int64, name, topic string) (*store.Channel, error) {
	query := `
		UPDATE channels
		SET name  = CASE WHEN ? = '' THEN name ELSE ? END,
		    topic = CASE WHEN ? = '' THEN topic ELSE ? END
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, name, name, topic, topic, id)
	if err != nil {
		return nil, fmt.Errorf("update channel: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("channel %d: %w", id, store.ErrNotFound)
	}
	return s.GetChannelByID(ctx, id)
}

// ArchiveChannel marks a channel archived.
func (s *SQLiteStore) ArchiveChannel(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE channels SET archived = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("archive channel: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("channel %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// ==== MessageStore implementation ====

// SaveMessage persists a message and fills its ID and CreatedAt.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO messages (channel_id, user_id, parent_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.ChannelID, msg.UserID, msg.ParentID, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	msg.ID = id
	return nil
}

// GetMessageByID retrieves a message by ID.
func (s *SQLiteStore) GetMessageByID(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT id, channel_id, user_id, parent_id, content, deleted, created_at
		FROM messages
		WHERE id = ?
	`
	var msg store.Message
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.ChannelID,
		&msg.UserID,
		&msg.ParentID,
		&msg.Content,
		&msg.Deleted,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	return &msg, nil
}

// ListMessages retrieves channel messages oldest-first; see store.MessageStore.
func (s *SQLiteStore) ListMessages(ctx context.Context, channelID int64, parentID *int64, limit int, beforeID *int64) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT id, channel_id, user_id, parent_id, content, deleted, created_at
		FROM messages
		WHERE channel_id = ?
	`)
	args := []any{channelID}

	if parentID != nil {
		sb.WriteString(` AND parent_id = ?`)
		args = append(args, *parentID)
	} else {
		sb.WriteString(` AND parent_id IS NULL`)
	}
	if beforeID != nil {
		sb.WriteString(` AND id < ?`)
		args = append(args, *beforeID)
	}
	sb.WriteString(` ORDER BY id DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var page []*store.Message
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ChannelID,
			&msg.UserID,
			&msg.ParentID,
			&msg.Content,
			&msg.Deleted,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		page = append(page, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The query walks newest-first to find the page; callers want it ascending.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

// SoftDeleteMessage flags a message deleted without removing the row.
func (s *SQLiteStore) SoftDeleteMessage(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE messages SET deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("message %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// ==== ReactionStore implementation ====

// AddReaction records a reaction; adding the same one twice is an error.
func (s *SQLiteStore) AddReaction(ctx context.Context, messageID, userID int64, emoji string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reactions (message_id, user_id, emoji) VALUES (?, ?, ?)`,
		messageID, userID, emoji)
	if err != nil {
		return fmt.Errorf("insert reaction: %w", err)
	}
	return nil
}

// RemoveReaction removes a reaction if present.
func (s *SQLiteStore) RemoveReaction(ctx context.Context, messageID, userID int64, emoji string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM reactions WHERE message_id = ? AND user_id = ? AND emoji = ?`,
		messageID, userID, emoji)
	if err != nil {
		return fmt.Errorf("delete reaction: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("reaction: %w", store.ErrNotFound)
	}
	return nil
}

// CountReactions aggregates reaction counts per emoji for the given messages.
func (s *SQLiteStore) CountReactions(ctx context.Context, messageIDs []int64) (map[int64]map[string]int, error) {
	out := make(map[int64]map[string]int)
	if len(messageIDs) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(messageIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(messageIDs))
	for i, id := range messageIDs {
		args[i] = id
	}

	query := `
		SELECT message_id, emoji, COUNT(*)
		FROM reactions
		WHERE message_id IN (` + placeholders + `)
		GROUP BY message_id, emoji
	`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reaction counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var emoji string
		var count int
		if err := rows.Scan(&id, &emoji, &count); err != nil {
			return nil, fmt.Errorf("scan reaction count: %w", err)
		}
		if out[id] == nil {
			out[id] = make(map[string]int)
		}
		out[id][emoji] = count
	}
	return out, rows.Err()
}

// ==== PinStore implementation ====

// PinMessage pins a message in its channel.
func (s *SQLiteStore) PinMessage(ctx context.Context, channelID, messageID, pinnedBy int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pins (channel_id, message_id, pinned_by) VALUES (?, ?, ?)`,
		channelID, messageID, pinnedBy)
	if err != nil {
		return fmt.Errorf("insert pin: %w", err)
	}
	return nil
}

// UnpinMessage removes a pin if present.
func (s *SQLiteStore) UnpinMessage(ctx context.Context, channelID, messageID int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM pins WHERE channel_id = ? AND message_id = ?`, channelID, messageID)
	if err != nil {
		return fmt.Errorf("delete pin: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("pin: %w", store.ErrNotFound)
	}
	return nil
}

// ListPins lists pins for a channel, newest first.
func (s *SQLiteStore) ListPins(ctx context.Context, channelID int64) ([]*store.Pin, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel_id, message_id, pinned_by, pinned_at FROM pins WHERE channel_id = ? ORDER BY pinned_at DESC`,
		channelID)
	if err != nil {
		return nil, fmt.Errorf("query pins: %w", err)
	}
	defer rows.Close()

	var out []*store.Pin
	for rows.Next() {
		var pin store.Pin
		if err := rows.Scan(&pin.ChannelID, &pin.MessageID, &pin.PinnedBy, &pin.PinnedAt); err != nil {
			return nil, fmt.Errorf("scan pin: %w", err)
		}
		out = append(out, &pin)
	}
	return out, rows.Err()
}

// ==== AttachmentStore implementation ====

// AddAttachment records attachment metadata for a message.
func (s *SQLiteStore) AddAttachment(ctx context.Context, att *store.Attachment) error {
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO attachments (message_id, file_name, mime_type, size_bytes, storage_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		att.MessageID, att.FileName, att.MimeType, att.SizeBytes, att.StorageKey, att.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	att.ID = id
	return nil
}

// ListAttachments lists attachments for a message.
func (s *SQLiteStore) ListAttachments(ctx context.Context, messageID int64) ([]*store.Attachment, error) {
	query := `
		SELECT id, message_id, file_name, mime_type, size_bytes, storage_key, created_at
		FROM attachments
		WHERE message_id = ?
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	var out []*store.Attachment
	for rows.Next() {
		var att store.Attachment
		if err := rows.Scan(
			&att.ID,
			&att.MessageID,
			&att.FileName,
			&att.MimeType,
			&att.SizeBytes,
			&att.StorageKey,
			&att.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		out = append(out, &att)
	}
	return out, rows.Err()
}
