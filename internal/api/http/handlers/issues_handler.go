package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-tracker/internal/api/dto"
	"github.com/spec-kit/issue-tracker/internal/auth"
	"github.com/spec-kit/issue-tracker/internal/service"
	apperrors "github.com/spec-kit/issue-tracker/pkg/errorutil"
)

// Actions served by the EditIssue endpoint.
const (
	ActionGetData     = "getData"
	ActionEdit        = "edit"
	ActionEditComment = "editComment"
)

// IssueService is the subset of service.IssueService the handler calls.
type IssueService interface {
	EditIssue(ctx context.Context, actor auth.Identity, input service.EditIssueInput) (*service.EditResult, error)
	EditComment(ctx context.Context, actor auth.Identity, commentID int64, text string) error
	GetIssueFields(ctx context.Context, actor auth.Identity, issueID *int64) (*service.IssueView, error)
}

// IssuesHandler serves the issue form endpoint.
type IssuesHandler struct {
	service IssueService
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(issueService IssueService) *IssuesHandler {
	return &IssuesHandler{service: issueService}
}

// Get GET /issue_tracker/ajax/EditIssue?action=getData.
func (h *IssuesHandler) Get(c *fiber.Ctx) error {
	if action := c.Query("action"); action != ActionGetData {
		return apperrors.NewValidationError("unsupported action", map[string]any{"action": action})
	}
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	issueID, err := dto.ParseIssueID(c.Query("issueID"))
	if err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	view, err := h.service.GetIssueFields(c.UserContext(), principal, issueID)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewIssueViewResponse(view))
}

// Post POST /issue_tracker/ajax/EditIssue?action=edit|editComment.
func (h *IssuesHandler) Post(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	switch action := c.Query("action"); action {
	case ActionEdit:
		return h.edit(c, principal)
	case ActionEditComment:
		return h.editComment(c, principal)
	default:
		return apperrors.NewValidationError("unsupported action", map[string]any{"action": action})
	}
}

func (h *IssuesHandler) edit(c *fiber.Ctx, principal *auth.Principal) error {
	var req dto.EditIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	input, err := req.ToInput()
	if err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	res, err := h.service.EditIssue(c.UserContext(), principal, input)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewEditResultResponse(res))
}

func (h *IssuesHandler) editComment(c *fiber.Ctx, principal *auth.Principal) error {
	var req dto.EditCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	commentID, err := req.CommentID()
	if err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	if err := h.service.EditComment(c.UserContext(), principal, commentID, req.Text()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}
