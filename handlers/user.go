package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chatwire/middleware"
	"chatwire/services"
	"chatwire/utils"
)

type UserHandler struct {
	store    services.Store
	presence *services.PresenceService
	logger   *utils.Logger
}

func NewUserHandler(store services.Store, presence *services.PresenceService, logger *utils.Logger) *UserHandler {
	return &UserHandler{store: store, presence: presence, logger: logger}
}

// ListUsers handles GET /api/users?q=
func (h *UserHandler) ListUsers(c *gin.Context) {
	user := middleware.CurrentUser(c)

	users, err := h.store.SearchUsers(c.Request.Context(), c.Query("q"), user.ID, 50)
	if err != nil {
		h.logger.Error("Failed to search users", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "users": users})
}

// GetStatus handles GET /api/users/:id/status. Online status is polled on
// demand from the presence marker.
func (h *UserHandler) GetStatus(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid user id"})
		return
	}

	target, err := h.store.UserByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"userId":   target.ID,
		"isOnline": h.presence.IsOnline(c.Request.Context(), target.ID.String()),
		"lastSeen": target.LastSeen,
	})
}

// GetOnlineUsers handles GET /api/users/online
func (h *UserHandler) GetOnlineUsers(c *gin.Context) {
	online, err := h.presence.OnlineUsers(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to fetch online users", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch online users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(online),
		"users":   online,
	})
}
