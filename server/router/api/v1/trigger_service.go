package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	aierrors "github.com/hrygo/overflew/server/internal/errors"
	"github.com/hrygo/overflew/store"
)

// TriggerResponse reports which background jobs a content event scheduled.
type TriggerResponse struct {
	Enqueued bool `json:"enqueued"`
	// Populate is set when the event also scheduled an auto-populate run.
	Populate bool `json:"populate,omitempty"`
}

// QuestionCreated schedules persona answers and, when enabled, an auto-populate run.
// POST /api/v1/questions/:id/created
func (s *APIV1Service) QuestionCreated(c echo.Context) error {
	questionID, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, "invalid question created event", err)
	}
	ctx := c.Request().Context()
	return c.JSON(http.StatusAccepted, TriggerResponse{
		Enqueued: s.Responder.OnQuestionCreated(ctx, questionID),
		Populate: s.Populate.MaybeEnqueue(ctx, questionID),
	})
}

// CommentCreated schedules persona replies to a new answer or comment.
// POST /api/v1/comments/:id/created
func (s *APIV1Service) CommentCreated(c echo.Context) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, "invalid comment created event", err)
	}
	return c.JSON(http.StatusAccepted, TriggerResponse{
		Enqueued: s.Responder.OnCommentCreated(c.Request().Context(), commentID),
	})
}

// VoteCast schedules a persona reaction to a human vote.
// POST /api/v1/votes/:id/cast
func (s *APIV1Service) VoteCast(c echo.Context) error {
	voteID, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, "invalid vote cast event", err)
	}
	return c.JSON(http.StatusAccepted, TriggerResponse{
		Enqueued: s.Responder.OnVoteCast(c.Request().Context(), voteID),
	})
}

// AcceptComment marks an answer as the accepted one for its question.
// POST /api/v1/comments/:id/accept
func (s *APIV1Service) AcceptComment(c echo.Context) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, "invalid accept request", err)
	}
	ctx := c.Request().Context()
	existing, err := s.Store.GetComment(ctx, &store.FindComment{ID: &commentID})
	if err != nil {
		return errorResponse(c, "failed to get comment", err)
	}
	if existing == nil || existing.IsDeleted {
		return errorResponse(c, "comment not found", aierrors.NotFound("comment", commentID))
	}
	if !existing.IsTopLevel() {
		return errorResponse(c, "invalid accept request", aierrors.InvalidArgument("only answers can be accepted"))
	}
	comment, err := s.Store.AcceptComment(ctx, commentID)
	if err != nil {
		return errorResponse(c, "failed to accept comment", err)
	}
	return c.JSON(http.StatusOK, comment)
}
