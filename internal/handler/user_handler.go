package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Unknownlegend09/Chathub/internal/event"
	"github.com/Unknownlegend09/Chathub/internal/hub"
	"github.com/Unknownlegend09/Chathub/internal/model"
	"github.com/Unknownlegend09/Chathub/internal/repo"
)

// UserHandler serves the user list, the activity view, explicit status and
// typing updates, and the admin delete path.
type UserHandler interface {
	ListUsers(c *gin.Context)
	GetActivity(c *gin.Context)
	UpdateStatus(c *gin.Context)
	SetTyping(c *gin.Context)
	DeleteUser(c *gin.Context)
}

type userHandler struct {
	users    repo.UserRepository
	presence *hub.Presence
	router   hub.Broadcaster
}

func NewUserHandler(users repo.UserRepository, presence *hub.Presence, router hub.Broadcaster) UserHandler {
	return &userHandler{
		users:    users,
		presence: presence,
		router:   router,
	}
}

func (h *userHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}
	c.JSON(http.StatusOK, users)
}

// GetActivity is the admin view of who is online, typing, and when everyone
// was last seen.
func (h *userHandler) GetActivity(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	users, err := h.users.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}

	activity := make([]model.UserActivity, 0, len(users))
	for _, u := range users {
		activity = append(activity, model.UserActivity{
			ID:       u.ID,
			Username: u.Username,
			IsOnline: u.IsOnline,
			LastSeen: u.LastSeen,
			IsTyping: u.IsTyping,
		})
	}
	c.JSON(http.StatusOK, activity)
}

type updateStatusRequest struct {
	IsOnline bool `json:"isOnline"`
}

// UpdateStatus handles an explicit online/offline toggle, e.g. logout from a
// tab whose socket is still open.
func (h *userHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	me := identity(c)
	ctx := c.Request.Context()

	var err error
	if req.IsOnline {
		err = h.presence.Connect(ctx, me)
	} else {
		err = h.presence.Disconnect(ctx, me)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type setTypingRequest struct {
	IsTyping    bool   `json:"isTyping"`
	RecipientID *int64 `json:"recipientId"`
}

func (h *userHandler) SetTyping(c *gin.Context) {
	var req setTypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	if err := h.presence.SetTyping(c.Request.Context(), identity(c), req.IsTyping, req.RecipientID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update typing status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteUser removes a user and tells every client to forget them.
func (h *userHandler) DeleteUser(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	targetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if targetID == identity(c) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot delete yourself"})
		return
	}

	deleted, err := h.users.Delete(c.Request.Context(), targetID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete user"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	h.router.Broadcast(event.NewUserDeleted(targetID))
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

func (h *userHandler) requireAdmin(c *gin.Context) bool {
	me, err := h.users.Get(c.Request.Context(), identity(c))
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return false
	}
	if !me.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
		return false
	}
	return true
}
