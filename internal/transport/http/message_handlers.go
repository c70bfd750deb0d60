package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"crewchat/internal/avatar"
	"crewchat/internal/realtime"
	"crewchat/internal/store"
)

const defaultHistoryLimit = 50

// MessageHandlers provides HTTP handlers for messages, reactions, pins and
// attachments. Mutations that clients render live are event producers.
type MessageHandlers struct {
	store      store.Store
	dispatcher *realtime.Dispatcher
	avatar     *avatar.Service
	log        *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(st store.Store, dispatcher *realtime.Dispatcher, avatarSvc *avatar.Service, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		store:      st,
		dispatcher: dispatcher,
		avatar:     avatarSvc,
		log:        logger,
	}
}

// CreateMessageRequest represents the post message request body. Identifier
// is the client's correlation value; the server echoes it back inside the
// MESSAGE_CREATED event so the sender can confirm its optimistic entry.
type CreateMessageRequest struct {
	Content         string `json:"content" binding:"required,max=4000"`
	ParentMessageID int64  `json:"parentMessageId"`
	Identifier      string `json:"identifier" binding:"max=64"`
}

// AddReactionRequest represents the add reaction request body.
type AddReactionRequest struct {
	Emoji string `json:"emoji" binding:"required,max=16"`
}

// AddAttachmentRequest represents the attachment metadata request body.
type AddAttachmentRequest struct {
	FileName  string `json:"fileName" binding:"required,max=255"`
	MimeType  string `json:"mimeType" binding:"required,max=128"`
	SizeBytes int64  `json:"sizeBytes" binding:"required,min=1"`
}

// memberChannel loads a channel and checks the caller's membership, writing
// the error response itself on failure.
func (h *MessageHandlers) memberChannel(c *gin.Context, channelID, userID int64) (*store.Channel, bool) {
	channel, err := h.store.GetChannelByID(c.Request.Context(), channelID)
	if err != nil {
		respondStoreError(c, h.log, err, "channel")
		return nil, false
	}
	if !requireMember(c, h.store, h.log, channel.WorkspaceID, userID) {
		return nil, false
	}
	return channel, true
}

// memberMessage loads a message with its channel and checks membership.
func (h *MessageHandlers) memberMessage(c *gin.Context, messageID, userID int64) (*store.Message, *store.Channel, bool) {
	msg, err := h.store.GetMessageByID(c.Request.Context(), messageID)
	if err != nil {
		respondStoreError(c, h.log, err, "message")
		return nil, nil, false
	}
	channel, ok := h.memberChannel(c, msg.ChannelID, userID)
	if !ok {
		return nil, nil, false
	}
	return msg, channel, true
}

// ListMessages handles fetching channel or thread history, oldest first.
// GET /api/channels/:id/messages?limit=&before=&parentMessageId=
func (h *MessageHandlers) ListMessages(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	channelID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, ok := h.memberChannel(c, channelID, userID); !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = parsed
	}

	var beforeID *int64
	if raw := c.Query("before"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before"})
			return
		}
		beforeID = &parsed
	}

	var parentID *int64
	if raw := c.Query("parentMessageId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid parentMessageId"})
			return
		}
		parentID = &parsed
	}

	messages, err := h.store.ListMessages(c.Request.Context(), channelID, parentID, limit, beforeID)
	if err != nil {
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	ids := make([]int64, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	counts, err := h.store.CountReactions(c.Request.Context(), ids)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to count reactions")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, toMessageResponses(messages, counts))
}

// CreateMessage handles posting a message or thread reply. After the row
// commits it broadcasts MESSAGE_CREATED, echoing the client's identifier, and
// lets the avatar service inspect the message for mentions.
// POST /api/channels/:id/messages
func (h *MessageHandlers) CreateMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	channelID, ok := paramID(c, "id")
	if !ok {
		return
	}
	channel, ok := h.memberChannel(c, channelID, userID)
	if !ok {
		return
	}
	if channel.Archived {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "channel is archived"})
		return
	}

	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "content is empty"})
		return
	}

	msg := &store.Message{
		ChannelID: channelID,
		UserID:    userID,
		Content:   req.Content,
	}
	if req.ParentMessageID > 0 {
		parent, err := h.store.GetMessageByID(c.Request.Context(), req.ParentMessageID)
		if err != nil {
			respondStoreError(c, h.log, err, "parent message")
			return
		}
		if parent.ChannelID != channelID {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "parent message belongs to another channel"})
			return
		}
		if parent.ParentID != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot reply to a thread reply"})
			return
		}
		msg.ParentID = &req.ParentMessageID
	}

	if err := h.store.SaveMessage(c.Request.Context(), msg); err != nil {
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("failed to save message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	ev := realtime.MessageCreated{
		MessageID:  msg.ID,
		ChannelID:  msg.ChannelID,
		UserID:     msg.UserID,
		Content:    msg.Content,
		Identifier: req.Identifier,
		PostedAt:   msg.CreatedAt,
	}
	if msg.ParentID != nil {
		ev.ParentMessageID = *msg.ParentID
	}
	h.dispatcher.Broadcast(c.Request.Context(), channel.WorkspaceID, ev)

	h.avatar.HandleMessage(channel.WorkspaceID, msg)

	c.JSON(http.StatusCreated, toMessageResponse(msg, nil))
}

// DeleteMessage handles soft-deleting the caller's own message. The row is
// flagged, not removed; clients pick the change up on their next fetch.
// DELETE /api/messages/:id
func (h *MessageHandlers) DeleteMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}
	msg, _, ok := h.memberMessage(c, messageID, userID)
	if !ok {
		return
	}
	if msg.UserID != userID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "cannot delete another user's message"})
		return
	}

	if err := h.store.SoftDeleteMessage(c.Request.Context(), messageID); err != nil {
		respondStoreError(c, h.log, err, "message")
		return
	}

	h.log.Info().Int64("message_id", messageID).Int64("user_id", userID).Msg("message deleted")
	c.Status(http.StatusNoContent)
}

// AddReaction handles placing a reaction on a message.
// POST /api/messages/:id/reactions
func (h *MessageHandlers) AddReaction(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}
	msg, channel, ok := h.memberMessage(c, messageID, userID)
	if !ok {
		return
	}

	var req AddReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid add reaction request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.store.AddReaction(c.Request.Context(), messageID, userID, req.Emoji); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "reaction already exists"})
			return
		}
		h.log.Error().Err(err).Int64("message_id", messageID).Msg("failed to add reaction")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.dispatcher.Broadcast(c.Request.Context(), channel.WorkspaceID, realtime.ReactionAdded{
		ReactionPayload: realtime.ReactionPayload{
			MessageID: msg.ID,
			ChannelID: msg.ChannelID,
			UserID:    userID,
			Emoji:     req.Emoji,
		},
	})

	c.Status(http.StatusNoContent)
}

// RemoveReaction handles withdrawing the caller's reaction.
// DELETE /api/messages/:id/reactions/:emoji
func (h *MessageHandlers) RemoveReaction(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}
	emoji := c.Param("emoji")
	if emoji == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid emoji"})
		return
	}
	msg, channel, ok := h.memberMessage(c, messageID, userID)
	if !ok {
		return
	}

	if err := h.store.RemoveReaction(c.Request.Context(), messageID, userID, emoji); err != nil {
		respondStoreError(c, h.log, err, "reaction")
		return
	}

	h.dispatcher.Broadcast(c.Request.Context(), channel.WorkspaceID, realtime.ReactionRemoved{
		ReactionPayload: realtime.ReactionPayload{
			MessageID: msg.ID,
			ChannelID: msg.ChannelID,
			UserID:    userID,
			Emoji:     emoji,
		},
	})

	c.Status(http.StatusNoContent)
}

// PinMessage handles pinning a message in its channel.
// POST /api/messages/:id/pin
func (h *MessageHandlers) PinMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}
	msg, _, ok := h.memberMessage(c, messageID, userID)
	if !ok {
		return
	}

	if err := h.store.PinMessage(c.Request.Context(), msg.ChannelID, messageID, userID); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "message already pinned"})
			return
		}
		h.log.Error().Err(err).Int64("message_id", messageID).Msg("failed to pin message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}

// UnpinMessage handles unpinning a message.
// DELETE /api/messages/:id/pin
func (h *MessageHandlers) UnpinMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}
	msg, _, ok := h.memberMessage(c, messageID, userID)
	if !ok {
		return
	}

	if err := h.store.UnpinMessage(c.Request.Context(), msg.ChannelID, messageID); err != nil {
		respondStoreError(c, h.log, err, "pin")
		return
	}

	c.Status(http.StatusNoContent)
}

// ListPins handles listing a channel's pinned messages.
// GET /api/channels/:id/pins
func (h *MessageHandlers) ListPins(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	channelID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, ok := h.memberChannel(c, channelID, userID); !ok {
		return
	}

	pins, err := h.store.ListPins(c.Request.Context(), channelID)
	if err != nil {
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("failed to list pins")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, toPinResponses(pins))
}

// AddAttachment handles recording attachment metadata for a message. Binary
// upload and storage live elsewhere; this endpoint only tracks what was
// attached.
// POST /api/messages/:id/attachments
func (h *MessageHandlers) AddAttachment(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}
	msg, _, ok := h.memberMessage(c, messageID, userID)
	if !ok {
		return
	}
	if msg.UserID != userID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "cannot attach to another user's message"})
		return
	}

	var req AddAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid add attachment request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	att := &store.Attachment{
		MessageID:  messageID,
		FileName:   req.FileName,
		MimeType:   req.MimeType,
		SizeBytes:  req.SizeBytes,
		StorageKey: attachmentStorageKey(messageID, req.FileName),
	}
	if err := h.store.AddAttachment(c.Request.Context(), att); err != nil {
		h.log.Error().Err(err).Int64("message_id", messageID).Msg("failed to add attachment")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, toAttachmentResponse(att))
}

// ListAttachments handles listing a message's attachment metadata.
// GET /api/messages/:id/attachments
func (h *MessageHandlers) ListAttachments(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, _, ok := h.memberMessage(c, messageID, userID); !ok {
		return
	}

	attachments, err := h.store.ListAttachments(c.Request.Context(), messageID)
	if err != nil {
		h.log.Error().Err(err).Int64("message_id", messageID).Msg("failed to list attachments")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, toAttachmentResponses(attachments))
}

func attachmentStorageKey(messageID int64, fileName string) string {
	return "uploads/" + strconv.FormatInt(messageID, 10) + "/" + fileName
}
