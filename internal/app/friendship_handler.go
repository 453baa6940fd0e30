package app

import (
	"net/http"
	"strconv"

	"classmate/internal/schedule"
	"classmate/internal/service"
	"classmate/internal/util"

	"github.com/gin-gonic/gin"
)

type FriendshipHandler struct {
	friendshipService   service.FriendshipService
	availabilityService service.AvailabilityService
}

func NewFriendshipHandler(friendshipService service.FriendshipService, availabilityService service.AvailabilityService) *FriendshipHandler {
	return &FriendshipHandler{
		friendshipService:   friendshipService,
		availabilityService: availabilityService,
	}
}

// SendFriendRequest handles sending a friend request
// POST /api/v1/friends/requests
func (h *FriendshipHandler) SendFriendRequest(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	var req struct {
		ToUserID string `json:"to_user_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	request, err := h.friendshipService.SendRequest(c.Request.Context(), userID.(string), req.ToUserID)
	if err != nil {
		util.RespondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusCreated, "Friend request sent successfully", gin.H{"request": request})
}

// GetIncomingRequests handles listing pending requests addressed to the caller
// GET /api/v1/friends/requests
func (h *FriendshipHandler) GetIncomingRequests(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	requests, err := h.friendshipService.ListIncomingRequests(c.Request.Context(), userID.(string))
	if err != nil {
		util.RespondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Friend requests retrieved successfully", gin.H{"requests": requests})
}

// AcceptFriendRequest handles accepting a friend request. The body may carry
// from_user_id, which must match the request's sender.
// POST /api/v1/friends/requests/:id/accept
func (h *FriendshipHandler) AcceptFriendRequest(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	var req struct {
		FromUserID string `json:"from_user_id"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			util.BadRequest(c, err.Error())
			return
		}
	}

	request, err := h.friendshipService.AcceptRequest(c.Request.Context(), c.Param("id"), req.FromUserID, userID.(string))
	if err != nil {
		util.RespondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Friend request accepted", gin.H{"request": request})
}

// RejectFriendRequest handles rejecting a friend request
// POST /api/v1/friends/requests/:id/reject
func (h *FriendshipHandler) RejectFriendRequest(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	request, err := h.friendshipService.RejectRequest(c.Request.Context(), c.Param("id"), userID.(string))
	if err != nil {
		util.RespondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Friend request rejected", gin.H{"request": request})
}

// GetFriends handles listing the caller's friends, newest first
// GET /api/v1/friends
func (h *FriendshipHandler) GetFriends(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	friends, err := h.friendshipService.ListFriends(c.Request.Context(), userID.(string))
	if err != nil {
		util.RespondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Friends retrieved successfully", gin.H{"friends": friends})
}

// RemoveFriend handles unfriending; both directions are removed
// DELETE /api/v1/friends/:friendId
func (h *FriendshipHandler) RemoveFriend(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	if err := h.friendshipService.RemoveFriend(c.Request.Context(), userID.(string), c.Param("friendId")); err != nil {
		util.RespondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Friend removed successfully", nil)
}

// GetAvailableFriends handles finding friends free during a slot
// GET /api/v1/friends/available?day=&start=&end=
func (h *FriendshipHandler) GetAvailableFriends(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	day, err := strconv.Atoi(c.Query("day"))
	if err != nil {
		util.BadRequest(c, "day must be a number between 1 and 7")
		return
	}
	start, err := strconv.Atoi(c.Query("start"))
	if err != nil {
		util.BadRequest(c, "start must be a period number")
		return
	}
	end, err := strconv.Atoi(c.DefaultQuery("end", c.Query("start")))
	if err != nil {
		util.BadRequest(c, "end must be a period number")
		return
	}

	slot := schedule.TimeSlot{Day: schedule.Weekday(day), StartPeriod: start, EndPeriod: end}
	friends, err := h.availabilityService.FindAvailableFriends(c.Request.Context(), userID.(string), slot)
	if err != nil {
		util.RespondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Available friends retrieved successfully", gin.H{
		"slot":    slot,
		"friends": friends,
	})
}
