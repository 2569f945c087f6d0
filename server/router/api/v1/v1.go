package v1

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/overflew/internal/profile"
	aimetrics "github.com/hrygo/overflew/plugin/ai/metrics"
	aierrors "github.com/hrygo/overflew/server/internal/errors"
	"github.com/hrygo/overflew/server/internal/observability"
	ratelimit "github.com/hrygo/overflew/server/middleware"
	"github.com/hrygo/overflew/server/runner/worker"
	"github.com/hrygo/overflew/server/service/persona"
	"github.com/hrygo/overflew/server/service/populate"
	"github.com/hrygo/overflew/server/service/responder"
	"github.com/hrygo/overflew/server/service/thread"
	"github.com/hrygo/overflew/store"
)

type APIV1Service struct {
	Profile   *profile.Profile
	Store     *store.Store
	Pool      *worker.Pool
	Personas  *persona.Registry
	Responder *responder.Responder
	Populate  *populate.Driver
	Threads   *thread.Builder
	Metrics   *observability.Metrics
	// Completions is optional; the completions endpoint reports empty stats without it.
	Completions *aimetrics.Aggregator

	rateLimiter *ratelimit.RateLimiter
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, pool *worker.Pool, personas *persona.Registry, r *responder.Responder, driver *populate.Driver) *APIV1Service {
	return &APIV1Service{
		Profile:     profile,
		Store:       store,
		Pool:        pool,
		Personas:    personas,
		Responder:   r,
		Populate:    driver,
		Threads:     thread.NewBuilder(store),
		Metrics:     observability.GlobalMetrics(),
		rateLimiter: ratelimit.NewRateLimiter(ratelimit.DefaultRequestsPerSecond, ratelimit.DefaultBurst),
	}
}

// RegisterRoutes registers the trigger, admin and read handlers with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	echoServer.GET("/healthz", s.GetHealth)

	api := echoServer.Group("/api/v1", middleware.CORS(), s.rateLimiter.Middleware())

	// Content events. The forum core calls these after committing the row.
	api.POST("/questions/:id/created", s.QuestionCreated)
	api.POST("/comments/:id/created", s.CommentCreated)
	api.POST("/votes/:id/cast", s.VoteCast)
	api.POST("/comments/:id/accept", s.AcceptComment)

	api.GET("/questions/:id/thread", s.GetThread)
	api.POST("/ai/respond", s.RespondAs)
	api.GET("/system/metrics", s.GetMetrics)
	api.GET("/system/completions", s.GetCompletionStats)

	admin := api.Group("/admin")
	admin.POST("/questions/:id/populate", s.PopulateQuestion)
	admin.POST("/questions/:id/toggle-closed", s.ToggleQuestionClosed)
	admin.POST("/personas/seed", s.SeedPersonas)
	admin.GET("/settings", s.ListSettings)
	admin.PUT("/settings", s.UpdateSettings)
}

// parseID reads a positive int32 path parameter.
func parseID(c echo.Context, name string) (int32, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0, aierrors.InvalidArgument("invalid " + name + ": " + raw)
	}
	return int32(id), nil
}

// errorStatus maps job and store errors onto HTTP status codes.
func errorStatus(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	switch aierrors.GetCodeFromError(err, "") {
	case aierrors.ErrCodeNotFound:
		return http.StatusNotFound
	case aierrors.ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case aierrors.ErrCodeGuardRejected:
		return http.StatusConflict
	case aierrors.ErrCodeCompletionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(c echo.Context, msg string, err error) error {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error(msg, slog.String("path", c.Path()), slog.String("error", err.Error()))
	} else {
		slog.Warn(msg, slog.String("path", c.Path()), slog.String("error", err.Error()))
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
