package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dafibh/brokewise/brokewise-backend/internal/domain"
	"github.com/dafibh/brokewise/brokewise-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// GroupHandler handles expense group HTTP requests
type GroupHandler struct {
	groupService *service.GroupService
}

// NewGroupHandler creates a new GroupHandler
func NewGroupHandler(groupService *service.GroupService) *GroupHandler {
	return &GroupHandler{
		groupService: groupService,
	}
}

// SaveGroupRequest represents the JSON request for replacing a group's contents
type SaveGroupRequest struct {
	Participants []string         `json:"participants"`
	Expenses     []ExpenseRequest `json:"expenses"`
}

// GroupContentsResponse is the participants and expenses of a group
type GroupContentsResponse struct {
	Participants []string          `json:"participants"`
	Expenses     []ExpenseResponse `json:"expenses"`
}

// GroupResponse describes a group opened by its link
type GroupResponse struct {
	ID           string            `json:"id"`
	Participants []string          `json:"participants"`
	Expenses     []ExpenseResponse `json:"expenses"`
	CreatedAt    string            `json:"createdAt"`
	LastAccessed string            `json:"lastAccessed"`
}

// GroupExportResponse is the downloadable group snapshot
type GroupExportResponse struct {
	GroupID      string            `json:"group_id"`
	Participants []string          `json:"participants"`
	Expenses     []ExpenseResponse `json:"expenses"`
	ExportedAt   string            `json:"exported_at"`
}

// StatusResponse is the acknowledgement for write operations
type StatusResponse struct {
	Status string `json:"status"`
}

// Index redirects to a freshly generated group
// @Summary Start a new group
// @Tags groups
// @Success 302
// @Router / [get]
func (h *GroupHandler) Index(c echo.Context) error {
	return c.Redirect(http.StatusFound, "/g/"+h.groupService.NewGroupID())
}

// OpenGroup opens a group by its link, creating it on first visit
// @Summary Open group
// @Tags groups
// @Produce json
// @Param groupId path string true "Group ID"
// @Success 200 {object} GroupResponse
// @Failure 400 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /g/{groupId} [get]
func (h *GroupHandler) OpenGroup(c echo.Context) error {
	groupID := c.Param("groupId")

	group, err := h.groupService.Open(c.Request().Context(), groupID)
	if err != nil {
		return h.handleServiceError(c, groupID, err)
	}

	return c.JSON(http.StatusOK, GroupResponse{
		ID:           group.ID,
		Participants: group.Participants,
		Expenses:     toExpenseResponses(group.Expenses),
		CreatedAt:    group.CreatedAt.UTC().Format(time.RFC3339),
		LastAccessed: group.LastAccessed.UTC().Format(time.RFC3339),
	})
}

// GetGroup returns the participants and expenses of a group
// @Summary Get group contents
// @Tags groups
// @Produce json
// @Param groupId path string true "Group ID"
// @Success 200 {object} GroupContentsResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /api/g/{groupId} [get]
func (h *GroupHandler) GetGroup(c echo.Context) error {
	groupID := c.Param("groupId")

	group, err := h.groupService.Get(c.Request().Context(), groupID)
	if err != nil {
		return h.handleServiceError(c, groupID, err)
	}

	return c.JSON(http.StatusOK, GroupContentsResponse{
		Participants: group.Participants,
		Expenses:     toExpenseResponses(group.Expenses),
	})
}

// SaveGroup replaces the participants and expenses of a group
// @Summary Save group contents
// @Tags groups
// @Accept json
// @Produce json
// @Param groupId path string true "Group ID"
// @Param request body SaveGroupRequest true "Participants and expenses"
// @Success 200 {object} StatusResponse
// @Failure 400 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /api/g/{groupId} [post]
func (h *GroupHandler) SaveGroup(c echo.Context) error {
	groupID := c.Param("groupId")

	var req SaveGroupRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	expenses, err := toDomainExpenses(req.Expenses)
	if err != nil {
		return h.handleServiceError(c, groupID, err)
	}

	err = h.groupService.Save(c.Request().Context(), groupID, req.Participants, expenses)
	if err != nil {
		return h.handleServiceError(c, groupID, err)
	}

	return c.JSON(http.StatusOK, StatusResponse{Status: "success"})
}

// ExportGroup returns the group as a downloadable JSON file
// @Summary Export group
// @Tags groups
// @Produce json
// @Param groupId path string true "Group ID"
// @Success 200 {object} GroupExportResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /api/g/{groupId}/export [get]
func (h *GroupHandler) ExportGroup(c echo.Context) error {
	groupID := c.Param("groupId")

	export, err := h.groupService.Export(c.Request().Context(), groupID)
	if err != nil {
		return h.handleServiceError(c, groupID, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=expense_group_%s.json", export.GroupID))
	return c.JSON(http.StatusOK, GroupExportResponse{
		GroupID:      export.GroupID,
		Participants: export.Participants,
		Expenses:     toExpenseResponses(export.Expenses),
		ExportedAt:   export.ExportedAt.UTC().Format(time.RFC3339),
	})
}

// handleServiceError maps domain errors to appropriate HTTP responses
func (h *GroupHandler) handleServiceError(c echo.Context, groupID string, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidGroupID):
		return NewValidationError(c, "Invalid group id", []ValidationError{{Field: "groupId", Message: err.Error()}})
	case errors.Is(err, domain.ErrGroupNotFound):
		return NewNotFoundError(c, "Group not found")
	case errors.Is(err, domain.ErrMalformedInput):
		return NewValidationError(c, "Invalid group data", inputValidationErrors(err))
	default:
		log.Error().Err(err).Str("group_id", groupID).Msg("Group operation failed")
		return NewInternalError(c, "Failed to process group")
	}
}
