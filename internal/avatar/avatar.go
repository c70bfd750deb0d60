// Package avatar turns messages addressed to the workspace AI avatar into
// replies. The retrieval pipeline itself is an external collaborator; this
// package only adapts it into a second, asynchronous event producer feeding
// the same broadcast path as the REST handlers.
package avatar

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"crewchat/internal/realtime"
	"crewchat/internal/store"
)

// mentionPrefix marks a message as addressed to the avatar.
const mentionPrefix = "@avatar"

// Responder produces an answer for a prompt. Implementations may take
// seconds; callers bound them with the context.
type Responder interface {
	Reply(ctx context.Context, prompt string) (string, error)
}

// Service watches committed messages for avatar mentions and produces
// replies asynchronously. Replies are persisted under the seeded avatar user
// and broadcast like any other message; the negative userId tells clients the
// entry is AI-authored.
type Service struct {
	responder  Responder
	messages   store.MessageStore
	dispatcher *realtime.Dispatcher
	logger     *zerolog.Logger
}

// NewService wires the avatar producer. A nil responder disables it: mentions
// are then ignored entirely.
func NewService(responder Responder, messages store.MessageStore, dispatcher *realtime.Dispatcher, logger *zerolog.Logger) *Service {
	return &Service{
		responder:  responder,
		messages:   messages,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Enabled reports whether a responder is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.responder != nil
}

// HandleMessage inspects a freshly committed message and, when it addresses
// the avatar, produces a reply in the background. It returns immediately;
// the originating request never waits on the pipeline.
func (s *Service) HandleMessage(workspaceID int64, msg *store.Message) {
	if !s.Enabled() || msg == nil || msg.UserID == store.AvatarUserID {
		return
	}
	prompt, ok := mentionPrompt(msg.Content)
	if !ok {
		return
	}
	go s.respond(workspaceID, msg, prompt)
}

// respond runs on its own goroutine. Failures are logged and dropped; there
// is no caller to surface them to.
func (s *Service) respond(workspaceID int64, parent *store.Message, prompt string) {
	ctx := context.Background()

	answer, err := s.responder.Reply(ctx, prompt)
	if err != nil {
		s.logger.Warn().
			Int64("channel_id", parent.ChannelID).
			Int64("message_id", parent.ID).
			Err(err).
			Msg("avatar reply failed")
		return
	}

	// Reply in the same thread context as the mention.
	reply := &store.Message{
		ChannelID: parent.ChannelID,
		UserID:    store.AvatarUserID,
		ParentID:  parent.ParentID,
		Content:   answer,
	}
	if err := s.messages.SaveMessage(ctx, reply); err != nil {
		s.logger.Error().
			Int64("channel_id", parent.ChannelID).
			Err(err).
			Msg("persist avatar reply failed")
		return
	}

	ev := realtime.MessageCreated{
		MessageID: reply.ID,
		ChannelID: reply.ChannelID,
		UserID:    store.AvatarUserID,
		Content:   reply.Content,
		PostedAt:  reply.CreatedAt,
	}
	if reply.ParentID != nil {
		ev.ParentMessageID = *reply.ParentID
	}
	s.dispatcher.Broadcast(ctx, workspaceID, ev)

	s.logger.Info().
		Int64("channel_id", reply.ChannelID).
		Int64("message_id", reply.ID).
		Msg("avatar reply delivered")
}

// mentionPrompt extracts the prompt from a message addressed to the avatar.
// The mention must be the leading word; a bare mention with nothing to answer
// is not a prompt.
func mentionPrompt(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, mentionPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(trimmed, mentionPrefix)
	if rest != "" && !strings.ContainsRune(" \t:,", rune(rest[0])) {
		return "", false
	}
	prompt := strings.TrimSpace(strings.TrimLeft(rest, " \t:,"))
	if prompt == "" {
		return "", false
	}
	return prompt, true
}
