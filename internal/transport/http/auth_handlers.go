package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"crewchat/internal/auth"
)

// AuthHandlers serves the unauthenticated account endpoints.
type AuthHandlers struct {
	auth *auth.Service
	log  *zerolog.Logger
}

func NewAuthHandlers(authService *auth.Service, logger *zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{auth: authService, log: logger}
}

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Register creates an account and signs the first session token.
// POST /api/register
func (h *AuthHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, token, err := h.auth.Register(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "user already exists"})
	case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case err != nil:
		h.log.Error().Err(err).Str("username", req.Username).Msg("register failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	default:
		h.log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user registered")
		c.JSON(http.StatusCreated, AuthResponse{Token: token, User: toUserResponse(user)})
	}
}

// Login checks credentials and signs a session token.
// POST /api/login
func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, token, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.log.Warn().Str("username", req.Username).Str("origin", c.ClientIP()).Msg("login rejected")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
	case err != nil:
		h.log.Error().Err(err).Str("username", req.Username).Msg("login failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	default:
		h.log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user logged in")
		c.JSON(http.StatusOK, AuthResponse{Token: token, User: toUserResponse(user)})
	}
}
