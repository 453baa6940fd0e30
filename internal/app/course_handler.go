package app

import (
	"net/http"
	"strconv"

	"classmate/internal/model"
	"classmate/internal/service"
	"classmate/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseHandler struct {
	courseService service.CourseService
}

func NewCourseHandler(courseService service.CourseService) *CourseHandler {
	return &CourseHandler{courseService: courseService}
}

// strict=true turns advisory conflicts into a rejection.
func strictMode(c *gin.Context) bool {
	strict, _ := strconv.ParseBool(c.DefaultQuery("strict", "false"))
	return strict
}

// GetMyCourses handles listing the caller's timetable
// GET /api/v1/courses
func (h *CourseHandler) GetMyCourses(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	courses, err := h.courseService.ListCourses(c.Request.Context(), userID.(string), userID.(string))
	if err != nil {
		util.RespondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Courses retrieved successfully", gin.H{"courses": courses})
}

// GetUserCourses handles viewing a friend's timetable
// GET /api/v1/users/:id/courses
func (h *CourseHandler) GetUserCourses(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	courses, err := h.courseService.ListCourses(c.Request.Context(), userID.(string), c.Param("id"))
	if err != nil {
		util.RespondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Courses retrieved successfully", gin.H{"courses": courses})
}

// CreateCourse handles adding a course
// POST /api/v1/courses
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	var input model.CourseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	result, err := h.courseService.CreateCourse(c.Request.Context(), userID.(string), input, strictMode(c))
	if err != nil {
		util.RespondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusCreated, "Course created successfully", result)
}

// UpdateCourse handles editing a course
// PUT /api/v1/courses/:id
func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	var input model.CourseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	result, err := h.courseService.UpdateCourse(c.Request.Context(), userID.(string), c.Param("id"), input, strictMode(c))
	if err != nil {
		util.RespondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Course updated successfully", result)
}

// DeleteCourse handles removing a course
// DELETE /api/v1/courses/:id
func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	if err := h.courseService.DeleteCourse(c.Request.Context(), userID.(string), c.Param("id")); err != nil {
		util.RespondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Course deleted successfully", nil)
}

// PreviewConflicts checks a draft course against the timetable without saving
// POST /api/v1/courses/conflicts?exclude=
func (h *CourseHandler) PreviewConflicts(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	var input model.CourseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	conflicts, err := h.courseService.PreviewConflicts(c.Request.Context(), userID.(string), input, c.Query("exclude"))
	if err != nil {
		util.RespondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Conflicts checked", gin.H{
		"conflicts":    conflicts,
		"has_conflict": len(conflicts) > 0,
	})
}

// ExportCalendar handles downloading the timetable as iCalendar
// GET /api/v1/courses/export.ics
func (h *CourseHandler) ExportCalendar(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	ics, err := h.courseService.ExportCalendar(c.Request.Context(), userID.(string))
	if err != nil {
		util.RespondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="timetable.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(ics))
}

// GetPeriods returns the configured period table
// GET /api/v1/periods
func (h *CourseHandler) GetPeriods(c *gin.Context) {
	util.SuccessResponse(c, http.StatusOK, "Periods retrieved successfully", gin.H{
		"periods": h.courseService.Periods(),
		"colors":  model.CourseColors(),
	})
}
