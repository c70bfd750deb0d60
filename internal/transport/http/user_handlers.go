package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"crewchat/internal/realtime"
	"crewchat/internal/store"
)

// UserHandlers provides HTTP handlers for the current user's profile and
// presence status. Both mutations fan out to every workspace the user is a
// member of, since profile data is rendered across workspace boundaries.
type UserHandlers struct {
	store      store.Store
	dispatcher *realtime.Dispatcher
	log        *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(st store.Store, dispatcher *realtime.Dispatcher, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		store:      st,
		dispatcher: dispatcher,
		log:        logger,
	}
}

// UpdateProfileRequest represents the profile update request body. Empty
// fields keep their current value.
type UpdateProfileRequest struct {
	DisplayName string `json:"displayName" binding:"max=64"`
	AvatarURL   string `json:"avatarUrl" binding:"max=512"`
}

// UpdateStatusRequest represents the presence status request body.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

var validStatuses = map[string]bool{
	"online":  true,
	"away":    true,
	"offline": true,
}

// GetMe handles fetching the current user's profile.
// GET /api/users/me
func (h *UserHandlers) GetMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.store.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondStoreError(c, h.log, err, "user")
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

// UpdateProfile handles changing the current user's display name or avatar
// URL and announces the change to all of the user's workspaces.
// PATCH /api/users/me
func (h *UserHandlers) UpdateProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid update profile request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" && req.AvatarURL == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "nothing to update"})
		return
	}

	user, err := h.store.UpdateProfile(c.Request.Context(), userID, req.DisplayName, req.AvatarURL)
	if err != nil {
		respondStoreError(c, h.log, err, "user")
		return
	}

	h.fanOut(c, userID, realtime.UserProfileUpdated{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
	})

	h.log.Info().Int64("user_id", userID).Msg("profile updated")
	c.JSON(http.StatusOK, toUserResponse(user))
}

// UpdateStatus handles setting the current user's presence status and
// announces it to all of the user's workspaces.
// PUT /api/users/me/status
func (h *UserHandlers) UpdateStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid update status request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if !validStatuses[req.Status] {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "status must be online, away or offline"})
		return
	}

	if err := h.store.UpdateStatus(c.Request.Context(), userID, req.Status); err != nil {
		respondStoreError(c, h.log, err, "user")
		return
	}

	h.fanOut(c, userID, realtime.UserStatusUpdate{
		UserID: userID,
		Status: req.Status,
	})

	c.Status(http.StatusNoContent)
}

// fanOut broadcasts an event to every workspace the user belongs to. A
// failure to resolve the workspace list is logged and swallowed; the REST
// mutation already committed.
func (h *UserHandlers) fanOut(c *gin.Context, userID int64, ev realtime.Event) {
	workspaceIDs, err := h.store.ListMemberWorkspaceIDs(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to list workspaces for fan-out")
		return
	}
	for _, wsID := range workspaceIDs {
		h.dispatcher.Broadcast(c.Request.Context(), wsID, ev)
	}
}
