package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imuhira/backend/internal/auth"
	"github.com/imuhira/backend/internal/logger"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// AuthHandler logs in the single configured admin account
type AuthHandler struct {
	username     string
	passwordHash string
	jwtService   *auth.JWTService
	log          *logger.Logger
}

func NewAuthHandler(username, passwordHash string, jwtService *auth.JWTService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		username:     username,
		passwordHash: passwordHash,
		jwtService:   jwtService,
		log:          log.With("handler", "AuthHandler"),
	}
}

// Login handles admin login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if req.Username != h.username {
		ErrorResponse(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	// Check password
	if err := auth.CheckPassword(h.passwordHash, req.Password); err != nil {
		h.log.Warn("Admin login rejected", "username", req.Username, "client_ip", c.ClientIP())
		ErrorResponse(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	// Generate token
	token, err := h.jwtService.GenerateToken(req.Username)
	if err != nil {
		h.log.Error("Failed to generate token", "error", err)
		ErrorResponse(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{Token: token, Username: req.Username})
}
