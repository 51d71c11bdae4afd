package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Unknownlegend09/Chathub/internal/hub"
	"github.com/Unknownlegend09/Chathub/internal/repo"
)

// MessageHandler exposes the message lifecycle over HTTP. Creation and the
// delivery marks run through the same coordinator as the socket events, so
// the broadcast-after-persist ordering holds on both paths.
type MessageHandler interface {
	ListMessages(c *gin.Context)
	CreateMessage(c *gin.Context)
	MarkDelivered(c *gin.Context)
	MarkRead(c *gin.Context)
	MarkAllRead(c *gin.Context)
}

type messageHandler struct {
	lifecycle *hub.Lifecycle
	messages  repo.MessageRepository
}

func NewMessageHandler(lifecycle *hub.Lifecycle, messages repo.MessageRepository) MessageHandler {
	return &messageHandler{
		lifecycle: lifecycle,
		messages:  messages,
	}
}

// ListMessages returns a direct conversation (?userId=), a group's history
// (?groupId=), or all of the caller's direct messages for sidebar metadata.
func (h *messageHandler) ListMessages(c *gin.Context) {
	me := identity(c)
	ctx := c.Request.Context()

	if raw := c.Query("userId"); raw != "" {
		peerID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid userId"})
			return
		}
		msgs, err := h.messages.ListBetween(ctx, me, peerID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get messages"})
			return
		}
		c.JSON(http.StatusOK, msgs)
		return
	}

	if raw := c.Query("groupId"); raw != "" {
		groupID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid groupId"})
			return
		}
		msgs, err := h.messages.ListGroup(ctx, groupID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get messages"})
			return
		}
		c.JSON(http.StatusOK, msgs)
		return
	}

	msgs, err := h.messages.ListForUser(ctx, me)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get messages"})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

type createMessageRequest struct {
	Content    string `json:"content"`
	ReceiverID *int64 `json:"receiverId"`
	GroupID    *int64 `json:"groupId"`
}

func (h *messageHandler) CreateMessage(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	msg, err := h.lifecycle.Send(c.Request.Context(), identity(c), req.Content, req.ReceiverID, req.GroupID)
	if err != nil {
		if errors.Is(err, repo.ErrInvalidMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *messageHandler) MarkDelivered(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	msg, err := h.lifecycle.MarkDelivered(c.Request.Context(), messageID)
	if err != nil {
		if errors.Is(err, repo.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark delivered"})
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *messageHandler) MarkRead(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	msg, err := h.lifecycle.MarkRead(c.Request.Context(), messageID)
	if err != nil {
		if errors.Is(err, repo.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark read"})
		return
	}
	c.JSON(http.StatusOK, msg)
}

type markAllReadRequest struct {
	SenderID int64 `json:"senderId"`
}

func (h *messageHandler) MarkAllRead(c *gin.Context) {
	var req markAllReadRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SenderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "senderId is required"})
		return
	}

	count, err := h.lifecycle.MarkAllRead(c.Request.Context(), identity(c), req.SenderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark messages read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}
