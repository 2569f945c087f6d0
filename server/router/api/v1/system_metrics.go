package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	aimetrics "github.com/hrygo/overflew/plugin/ai/metrics"
	"github.com/hrygo/overflew/server/internal/observability"
)

// HealthResponse reports liveness plus background job counters.
type HealthResponse struct {
	Status      string                 `json:"status"`
	Version     string                 `json:"version"`
	QueueLength int                    `json:"queueLength"`
	Jobs        observability.Snapshot `json:"jobs"`
}

// GetHealth returns 200 while the database answers.
// GET /healthz
func (s *APIV1Service) GetHealth(c echo.Context) error {
	response := HealthResponse{
		Status:      "ok",
		Version:     s.Profile.Version,
		QueueLength: s.Pool.Len(),
		Jobs:        s.Metrics.Snapshot(),
	}
	if err := s.Store.GetDriver().GetDB().PingContext(c.Request().Context()); err != nil {
		slog.Warn("health check failed to reach database", slog.String("error", err.Error()))
		response.Status = "unavailable"
		return c.JSON(http.StatusServiceUnavailable, response)
	}
	return c.JSON(http.StatusOK, response)
}

// GetMetrics returns the background job counters, optionally for a single job name.
// GET /api/v1/system/metrics?job=respond.answer
func (s *APIV1Service) GetMetrics(c echo.Context) error {
	snapshot := s.Metrics.Snapshot()
	if name := c.QueryParam("job"); name != "" {
		for _, job := range snapshot.Jobs {
			if job.Name == name {
				return c.JSON(http.StatusOK, job)
			}
		}
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown job: " + name})
	}
	return c.JSON(http.StatusOK, snapshot)
}

// GetCompletionStats returns completion latency and success rate per model.
// GET /api/v1/system/completions
func (s *APIV1Service) GetCompletionStats(c echo.Context) error {
	if s.Completions == nil {
		return c.JSON(http.StatusOK, &aimetrics.CompletionStats{Models: map[string]*aimetrics.ModelStat{}})
	}
	return c.JSON(http.StatusOK, s.Completions.Stats())
}
