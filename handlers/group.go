package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chatwire/middleware"
	"chatwire/models"
	"chatwire/services"
	"chatwire/utils"
)

type GroupHandler struct {
	store  services.Store
	logger *utils.Logger
}

func NewGroupHandler(store services.Store, logger *utils.Logger) *GroupHandler {
	return &GroupHandler{store: store, logger: logger}
}

type createGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateGroup handles POST /api/groups. The creator becomes both member
// and admin.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Group name is required"})
		return
	}

	group := &models.Group{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   user.ID,
		Members:     []models.User{*user},
		Admins:      []models.User{*user},
	}
	if err := h.store.CreateGroup(c.Request.Context(), group); err != nil {
		h.logger.Error("Failed to create group", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to create group"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "group": group})
}

// ListGroups handles GET /api/groups
func (h *GroupHandler) ListGroups(c *gin.Context) {
	user := middleware.CurrentUser(c)

	groups, err := h.store.GroupsForUser(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("Failed to fetch groups", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch groups"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "groups": groups})
}

// GetGroupHistory handles GET /api/groups/:id/messages
func (h *GroupHandler) GetGroupHistory(c *gin.Context) {
	user := middleware.CurrentUser(c)
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid group id"})
		return
	}

	member, err := h.store.IsGroupMember(c.Request.Context(), groupID, user.ID)
	if err != nil {
		h.logger.Error("Membership check failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch group messages"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Not a member of this group"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	messages, err := h.store.GroupHistory(c.Request.Context(), groupID, page, limit)
	if err != nil {
		h.logger.Error("Failed to fetch group history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch group messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"messages": messages,
		"page":     page,
		"hasMore":  len(messages) == limit,
	})
}

type addMemberRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// AddMember handles POST /api/groups/:id/members. Only existing members
// can add new ones.
func (h *GroupHandler) AddMember(c *gin.Context) {
	user := middleware.CurrentUser(c)
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid group id"})
		return
	}

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "userId is required"})
		return
	}
	newMemberID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid user id"})
		return
	}

	member, err := h.store.IsGroupMember(c.Request.Context(), groupID, user.ID)
	if err != nil {
		h.logger.Error("Membership check failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to add member"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Not a member of this group"})
		return
	}

	if err := h.store.AddGroupMember(c.Request.Context(), groupID, newMemberID); err != nil {
		h.logger.Error("Failed to add member", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to add member"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Member added"})
}
