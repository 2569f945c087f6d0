package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	aierrors "github.com/hrygo/overflew/server/internal/errors"
	"github.com/hrygo/overflew/server/service/responder"
)

// RespondRequest asks one persona to respond to a question or comment.
type RespondRequest struct {
	Kind      string `json:"kind"`
	ContentID int32  `json:"contentId"`
	PersonaID int32  `json:"personaId"`
	// Force skips the persona's activity gate.
	Force bool `json:"force"`
}

// RespondAs runs a single persona response and waits for it to finish.
// POST /api/v1/ai/respond
func (s *APIV1Service) RespondAs(c echo.Context) error {
	var req RespondRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, "invalid respond request", aierrors.InvalidArgument("malformed request body"))
	}
	kind := responder.Kind(req.Kind)
	if kind != responder.KindQuestion && kind != responder.KindComment {
		return errorResponse(c, "invalid respond request", aierrors.InvalidArgument("kind must be question or comment"))
	}
	if req.ContentID <= 0 || req.PersonaID <= 0 {
		return errorResponse(c, "invalid respond request", aierrors.InvalidArgument("contentId and personaId are required"))
	}

	future := s.Responder.RespondAs(kind, req.ContentID, req.PersonaID, req.Force)
	select {
	case <-future.Done():
	case <-c.Request().Context().Done():
		// The job keeps running in the pool; the client just stops waiting.
		return c.JSON(http.StatusAccepted, map[string]bool{"enqueued": true})
	}
	if err := future.Wait(); err != nil {
		return errorResponse(c, "persona response failed", err)
	}
	return c.JSON(http.StatusCreated, map[string]bool{"responded": true})
}
