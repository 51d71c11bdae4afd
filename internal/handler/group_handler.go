package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Unknownlegend09/Chathub/internal/repo"
)

// GroupHandler serves group creation and the caller's group list.
type GroupHandler interface {
	CreateGroup(c *gin.Context)
	ListGroups(c *gin.Context)
}

type groupHandler struct {
	groups repo.GroupRepository
}

func NewGroupHandler(groups repo.GroupRepository) GroupHandler {
	return &groupHandler{groups: groups}
}

type createGroupRequest struct {
	Name      string  `json:"name"`
	MemberIDs []int64 `json:"memberIds"`
}

func (h *groupHandler) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	group, err := h.groups.Create(c.Request.Context(), req.Name, identity(c), req.MemberIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create group"})
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (h *groupHandler) ListGroups(c *gin.Context) {
	groups, err := h.groups.ListForUser(c.Request.Context(), identity(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list groups"})
		return
	}
	c.JSON(http.StatusOK, groups)
}
