// Group HTTP handlers. Authorization (owner-only operations, membership)
// is enforced by the group service; these handlers only shape requests.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-realtime/internal/services"
)

// CreateGroupRequest is the JSON payload for creating a group.
type CreateGroupRequest struct {
	Name      string   `json:"name" binding:"required" example:"Weekend plans"`
	AvatarURL string   `json:"avatar_url,omitempty"`
	MemberIDs []string `json:"member_ids" binding:"required,min=1"`
}

// UpdateGroupRequest is the JSON payload for renaming a group. Absent fields
// are left unchanged.
type UpdateGroupRequest struct {
	Name      *string `json:"name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// AddMembersRequest lists users to add.
type AddMembersRequest struct {
	MemberIDs []string `json:"member_ids" binding:"required,min=1"`
}

// AddMembersResponse lists the users that were actually added.
type AddMembersResponse struct {
	Added []string `json:"added"`
}

// CreateGroup godoc
// @ID          createGroup
// @Summary     Create a group
// @Description The caller becomes the owner. Every initial member receives group_created.
// @Tags        Groups
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.CreateGroupRequest  true  "Group"
// @Success     201  {object}  services.GroupView
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown member"
// @Router      /groups [post]
func (h *Handlers) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name and member_ids required")
		return
	}
	g, err := h.Groups.Create(c.Request.Context(), userID(c), req.Name, req.AvatarURL, req.MemberIDs)
	if err != nil {
		writeServiceError(c, err, ErrCodeWriteFailed)
		return
	}
	ok(c, http.StatusCreated, g)
}

// GetGroup godoc
// @ID          getGroup
// @Summary     Get a group
// @Tags        Groups
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Group ID (UUID)"
// @Success     200  {object}  services.GroupView
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /groups/{id} [get]
func (h *Handlers) GetGroup(c *gin.Context) {
	g, err := h.Groups.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		writeServiceError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, g)
}

// UpdateGroup godoc
// @ID          updateGroup
// @Summary     Rename a group or change its avatar (owner only)
// @Tags        Groups
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Group ID (UUID)"
// @Param       body  body  handlers.UpdateGroupRequest  true  "Changes"
// @Success     200  {object}  services.GroupView
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /groups/{id} [patch]
func (h *Handlers) UpdateGroup(c *gin.Context) {
	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	g, err := h.Groups.Update(c.Request.Context(), userID(c), c.Param("id"), services.GroupPatch{
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		writeServiceError(c, err, ErrCodeWriteFailed)
		return
	}
	ok(c, http.StatusOK, g)
}

// AddGroupMembers godoc
// @ID          addGroupMembers
// @Summary     Add members to a group
// @Description Any member may add. New members' live connections join the room before group-members-added is sent.
// @Tags        Groups
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Group ID (UUID)"
// @Param       body  body  handlers.AddMembersRequest  true  "Users to add"
// @Success     200  {object}  handlers.AddMembersResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /groups/{id}/members [post]
func (h *Handlers) AddGroupMembers(c *gin.Context) {
	var req AddMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "member_ids required")
		return
	}
	added, err := h.Groups.AddMembers(c.Request.Context(), userID(c), c.Param("id"), req.MemberIDs)
	if err != nil {
		writeServiceError(c, err, ErrCodeWriteFailed)
		return
	}
	ok(c, http.StatusOK, AddMembersResponse{Added: added})
}

// RemoveGroupMember godoc
// @ID          removeGroupMember
// @Summary     Remove a member (owner only)
// @Description The removed user's connections leave the room immediately and receive removed-from-group.
// @Tags        Groups
// @Security    BearerAuth
// @Param       id      path  string  true  "Group ID (UUID)"
// @Param       userId  path  string  true  "Member to remove"
// @Success     204  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /groups/{id}/members/{userId} [delete]
func (h *Handlers) RemoveGroupMember(c *gin.Context) {
	if err := h.Groups.RemoveMember(c.Request.Context(), userID(c), c.Param("id"), c.Param("userId")); err != nil {
		writeServiceError(c, err, ErrCodeWriteFailed)
		return
	}
	noContent(c)
}

// LeaveGroup godoc
// @ID          leaveGroup
// @Summary     Leave a group
// @Description The owner cannot leave and must delete the group instead.
// @Tags        Groups
// @Security    BearerAuth
// @Param       id  path  string  true  "Group ID (UUID)"
// @Success     204  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Owner cannot leave"
// @Router      /groups/{id}/leave [post]
func (h *Handlers) LeaveGroup(c *gin.Context) {
	if err := h.Groups.Leave(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		writeServiceError(c, err, ErrCodeWriteFailed)
		return
	}
	noContent(c)
}

// DeleteGroup godoc
// @ID          deleteGroup
// @Summary     Delete a group (owner only)
// @Tags        Groups
// @Security    BearerAuth
// @Param       id  path  string  true  "Group ID (UUID)"
// @Success     204  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /groups/{id} [delete]
func (h *Handlers) DeleteGroup(c *gin.Context) {
	if err := h.Groups.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		writeServiceError(c, err, ErrCodeWriteFailed)
		return
	}
	noContent(c)
}
