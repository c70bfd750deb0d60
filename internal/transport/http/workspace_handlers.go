package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"crewchat/internal/realtime"
	"crewchat/internal/store"
)

// WorkspaceHandlers provides HTTP handlers for workspace and channel
// management. Channel mutations are event producers: after the write commits
// they hand the committed entity to the dispatcher.
type WorkspaceHandlers struct {
	store      store.Store
	dispatcher *realtime.Dispatcher
	log        *zerolog.Logger
}

// NewWorkspaceHandlers creates a new workspace handlers instance.
func NewWorkspaceHandlers(st store.Store, dispatcher *realtime.Dispatcher, logger *zerolog.Logger) *WorkspaceHandlers {
	return &WorkspaceHandlers{
		store:      st,
		dispatcher: dispatcher,
		log:        logger,
	}
}

// CreateWorkspaceRequest represents the create workspace request body.
type CreateWorkspaceRequest struct {
	Name string `json:"name" binding:"required,min=1,max=64"`
}

// CreateChannelRequest represents the create channel request body.
type CreateChannelRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=64"`
	Topic       string `json:"topic" binding:"max=256"`
	ChannelType string `json:"channelType"`
}

// UpdateChannelRequest represents the update channel request body.
type UpdateChannelRequest struct {
	Name  string `json:"name" binding:"max=64"`
	Topic string `json:"topic" binding:"max=256"`
}

// CreateDirectChannelRequest represents the direct-message pairing request.
type CreateDirectChannelRequest struct {
	UserID int64 `json:"userId" binding:"required"`
}

// AddMemberRequest represents the add workspace member request body.
type AddMemberRequest struct {
	UserID int64 `json:"userId" binding:"required"`
}

// paramID parses a positive integer path parameter, answering 400 itself on
// bad input.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name})
		return 0, false
	}
	return id, true
}

// requireMember answers 403 (or 500) itself when the user is not a member of
// the workspace.
func requireMember(c *gin.Context, st store.WorkspaceStore, logger *zerolog.Logger, workspaceID, userID int64) bool {
	isMember, err := st.IsWorkspaceMember(c.Request.Context(), workspaceID, userID)
	if err != nil {
		logger.Error().Err(err).Int64("workspace_id", workspaceID).Msg("membership check failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return false
	}
	if !isMember {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a workspace member"})
		return false
	}
	return true
}

// CreateWorkspace handles workspace creation; the creator becomes the owner
// and first member.
// POST /api/workspaces
func (h *WorkspaceHandlers) CreateWorkspace(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create workspace request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	workspace, err := h.store.CreateWorkspace(c.Request.Context(), req.Name, userID)
	if err != nil {
		h.log.Error().Err(err).Str("name", req.Name).Msg("failed to create workspace")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("workspace_id", workspace.ID).Int64("owner_id", userID).Msg("workspace created")
	c.JSON(http.StatusCreated, toWorkspaceResponse(workspace))
}

// ListWorkspaces handles listing the caller's workspaces.
// GET /api/workspaces
func (h *WorkspaceHandlers) ListWorkspaces(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	workspaces, err := h.store.ListWorkspaces(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to list workspaces")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, toWorkspaceResponses(workspaces))
}

// AddMember handles adding a user to a workspace. Any existing member may
// add; there is no push kind for membership, so clients see new members on
// their next fetch.
// POST /api/workspaces/:id/members
func (h *WorkspaceHandlers) AddMember(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	workspaceID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if !requireMember(c, h.store, h.log, workspaceID, userID) {
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid add member request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if _, err := h.store.GetUserByID(c.Request.Context(), req.UserID); err != nil {
		respondStoreError(c, h.log, err, "user")
		return
	}

	if err := h.store.AddWorkspaceMember(c.Request.Context(), workspaceID, req.UserID, ""); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "user is already a member"})
			return
		}
		h.log.Error().Err(err).Int64("workspace_id", workspaceID).Msg("failed to add member")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("workspace_id", workspaceID).Int64("user_id", req.UserID).Msg("member added")
	c.Status(http.StatusNoContent)
}

// CreateChannel handles channel creation inside a workspace.
// POST /api/workspaces/:id/channels
func (h *WorkspaceHandlers) CreateChannel(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	workspaceID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if !requireMember(c, h.store, h.log, workspaceID, userID) {
		return
	}

	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create channel request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	channelType := store.ChannelTypePublic
	switch req.ChannelType {
	case "", string(store.ChannelTypePublic):
	case string(store.ChannelTypePrivate):
		channelType = store.ChannelTypePrivate
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid channel type"})
		return
	}

	channel, err := h.store.CreateChannel(c.Request.Context(), workspaceID, req.Name, req.Topic, channelType, userID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "channel with this name already exists"})
			return
		}
		h.log.Error().Err(err).Str("name", req.Name).Msg("failed to create channel")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.dispatcher.Broadcast(c.Request.Context(), workspaceID, realtime.ChannelCreated{
		ChannelPayload: channelEventPayload(channel),
	})

	h.log.Info().Int64("channel_id", channel.ID).Int64("workspace_id", workspaceID).Msg("channel created")
	c.JSON(http.StatusCreated, toChannelResponse(channel))
}

// ListChannels handles listing a workspace's active channels.
// GET /api/workspaces/:id/channels
func (h *WorkspaceHandlers) ListChannels(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	workspaceID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if !requireMember(c, h.store, h.log, workspaceID, userID) {
		return
	}

	channels, err := h.store.ListChannels(c.Request.Context(), workspaceID)
	if err != nil {
		h.log.Error().Err(err).Int64("workspace_id", workspaceID).Msg("failed to list channels")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, toChannelResponses(channels))
}

// UpdateChannel handles renaming or retopicing a channel.
// PATCH /api/channels/:id
func (h *WorkspaceHandlers) UpdateChannel(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	channelID, ok := paramID(c, "id")
	if !ok {
		return
	}

	channel, err := h.store.GetChannelByID(c.Request.Context(), channelID)
	if err != nil {
		respondStoreError(c, h.log, err, "channel")
		return
	}
	if !requireMember(c, h.store, h.log, channel.WorkspaceID, userID) {
		return
	}

	var req UpdateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid update channel request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Name == "" && req.Topic == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "nothing to update"})
		return
	}

	updated, err := h.store.UpdateChannel(c.Request.Context(), channelID, req.Name, req.Topic)
	if err != nil {
		respondStoreError(c, h.log, err, "channel")
		return
	}

	h.dispatcher.Broadcast(c.Request.Context(), updated.WorkspaceID, realtime.ChannelUpdated{
		ChannelPayload: channelEventPayload(updated),
	})

	c.JSON(http.StatusOK, toChannelResponse(updated))
}

// ArchiveChannel handles archiving a channel.
// POST /api/channels/:id/archive
func (h *WorkspaceHandlers) ArchiveChannel(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	channelID, ok := paramID(c, "id")
	if !ok {
		return
	}

	channel, err := h.store.GetChannelByID(c.Request.Context(), channelID)
	if err != nil {
		respondStoreError(c, h.log, err, "channel")
		return
	}
	if !requireMember(c, h.store, h.log, channel.WorkspaceID, userID) {
		return
	}

	if err := h.store.ArchiveChannel(c.Request.Context(), channelID); err != nil {
		respondStoreError(c, h.log, err, "channel")
		return
	}
	channel.Archived = true

	h.dispatcher.Broadcast(c.Request.Context(), channel.WorkspaceID, realtime.ChannelArchived{
		ChannelPayload: channelEventPayload(channel),
	})

	h.log.Info().Int64("channel_id", channelID).Msg("channel archived")
	c.JSON(http.StatusOK, toChannelResponse(channel))
}

// CreateDirectChannel handles direct-message pairing. The pairing is
// deduplicated: asking again for the same pair returns the existing channel.
// POST /api/workspaces/:id/channels/direct
func (h *WorkspaceHandlers) CreateDirectChannel(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	workspaceID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if !requireMember(c, h.store, h.log, workspaceID, userID) {
		return
	}

	var req CreateDirectChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid direct channel request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.UserID == userID {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot open a direct channel with yourself"})
		return
	}

	peerIsMember, err := h.store.IsWorkspaceMember(c.Request.Context(), workspaceID, req.UserID)
	if err != nil {
		h.log.Error().Err(err).Msg("membership check failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if !peerIsMember {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user is not a workspace member"})
		return
	}

	channel, err := h.store.CreateDirectChannel(c.Request.Context(), workspaceID,
		directKey(workspaceID, userID, req.UserID), userID, req.UserID)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to create direct channel")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, toChannelResponse(channel))
}

// directKey canonicalizes a direct pairing so both participants resolve to
// the same channel regardless of who asks first.
func directKey(workspaceID, a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("dm:%d:%d:%d", workspaceID, a, b)
}

// respondStoreError maps store failures to HTTP responses: ErrNotFound turns
// into 404, anything else is logged as a 500.
func respondStoreError(c *gin.Context, logger *zerolog.Logger, err error, entity string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: entity + " not found"})
		return
	}
	logger.Error().Err(err).Str("entity", entity).Msg("store operation failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}
