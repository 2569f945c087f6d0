package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	aierrors "github.com/hrygo/overflew/server/internal/errors"
	"github.com/hrygo/overflew/server/service/thread"
)

// GetThread returns a question with its comment tree.
// GET /api/v1/questions/:id/thread?depth=2
func (s *APIV1Service) GetThread(c echo.Context) error {
	questionID, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, "invalid thread request", err)
	}
	depth := thread.DefaultTreeDepth
	if raw := c.QueryParam("depth"); raw != "" {
		depth, err = strconv.Atoi(raw)
		if err != nil || depth < 1 || depth > thread.MaxContextDepth {
			return errorResponse(c, "invalid thread request", aierrors.InvalidArgument("invalid depth: "+raw))
		}
	}

	tree, err := s.Threads.Tree(c.Request().Context(), questionID, depth)
	if err != nil {
		return errorResponse(c, "failed to build thread", err)
	}
	if tree == nil {
		return errorResponse(c, "question not found", aierrors.NotFound("question", questionID))
	}
	return c.JSON(http.StatusOK, tree)
}
