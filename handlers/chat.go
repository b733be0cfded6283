package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chatwire/middleware"
	"chatwire/services"
	"chatwire/utils"
)

type ChatHandler struct {
	store    services.Store
	presence *services.PresenceService
	logger   *utils.Logger
}

func NewChatHandler(store services.Store, presence *services.PresenceService, logger *utils.Logger) *ChatHandler {
	return &ChatHandler{store: store, presence: presence, logger: logger}
}

// GetChatHistory handles GET /api/chats/:userId
func (h *ChatHandler) GetChatHistory(c *gin.Context) {
	user := middleware.CurrentUser(c)
	peerID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid user id"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	messages, err := h.store.ChatHistory(c.Request.Context(), user.ID, peerID, page, limit)
	if err != nil {
		h.logger.Error("Failed to fetch chat history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch chat history"})
		return
	}

	// Opening the conversation clears its unread counter
	if err := h.presence.ClearUnread(c.Request.Context(), user.ID.String(), peerID.String()); err != nil {
		h.logger.Warn("Failed to clear unread counter", "userId", user.ID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"messages": messages,
		"page":     page,
		"hasMore":  len(messages) == limit,
	})
}

// GetUnreadCounts handles GET /api/chats/unread
func (h *ChatHandler) GetUnreadCounts(c *gin.Context) {
	user := middleware.CurrentUser(c)

	counts, err := h.presence.UnreadCounts(c.Request.Context(), user.ID.String())
	if err != nil {
		h.logger.Error("Failed to fetch unread counts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch unread counts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"unreadCounts": counts,
	})
}

// MarkAsRead handles PUT /api/chats/messages/:id/read
func (h *ChatHandler) MarkAsRead(c *gin.Context) {
	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid message id"})
		return
	}

	msg, _, err := h.store.MarkMessageRead(c.Request.Context(), msgID, time.Now())
	if err != nil {
		h.logger.Error("Failed to mark message read", "messageId", msgID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to mark message read"})
		return
	}
	if msg == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Message not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Message marked as read",
	})
}
