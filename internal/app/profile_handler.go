package app

import (
	"net/http"

	"classmate/internal/model"
	"classmate/internal/service"
	"classmate/internal/util"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	profileService service.ProfileService
}

func NewProfileHandler(profileService service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// GetMyProfile handles getting the signed-in user's own profile
// GET /api/v1/profiles/me
func (h *ProfileHandler) GetMyProfile(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	profile, err := h.profileService.GetMyProfile(c.Request.Context(), userID.(string))
	if err != nil {
		util.RespondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Profile retrieved successfully", profile)
}

// UpdateMyProfile handles editing username, school and student id
// PUT /api/v1/profiles/me
func (h *ProfileHandler) UpdateMyProfile(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	var patch model.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	profile, err := h.profileService.UpdateMyProfile(c.Request.Context(), userID.(string), patch)
	if err != nil {
		util.RespondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Profile updated successfully", profile)
}

// SearchByFriendCode handles friend code lookup
// GET /api/v1/profiles/search?code=
func (h *ProfileHandler) SearchByFriendCode(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	profile, err := h.profileService.SearchByFriendCode(c.Request.Context(), userID.(string), c.Query("code"))
	if err != nil {
		util.RespondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Profile found", profile)
}

// GetPublicProfile handles viewing another user's public profile
// GET /api/v1/users/:id/profile
func (h *ProfileHandler) GetPublicProfile(c *gin.Context) {
	profile, err := h.profileService.GetPublicProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		util.RespondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Profile retrieved successfully", profile)
}
