package v1

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	aierrors "github.com/hrygo/overflew/server/internal/errors"
	"github.com/hrygo/overflew/store"
)

// PopulateQuestion schedules an auto-populate run regardless of the enabled setting.
// POST /api/v1/admin/questions/:id/populate
func (s *APIV1Service) PopulateQuestion(c echo.Context) error {
	questionID, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, "invalid populate request", err)
	}
	question, err := s.Store.GetQuestion(c.Request().Context(), &store.FindQuestion{ID: &questionID})
	if err != nil {
		return errorResponse(c, "failed to get question", err)
	}
	if question == nil {
		return errorResponse(c, "question not found", aierrors.NotFound("question", questionID))
	}
	if question.IsClosed {
		return errorResponse(c, "populate rejected", aierrors.GuardRejected("question is closed"))
	}
	s.Populate.Enqueue(questionID, true)
	return c.JSON(http.StatusAccepted, TriggerResponse{Enqueued: true, Populate: true})
}

// ToggleClosedRequest carries the close reason; it is ignored when reopening.
type ToggleClosedRequest struct {
	Reason string `json:"reason"`
}

// ToggleQuestionClosed closes an open question or reopens a closed one.
// POST /api/v1/admin/questions/:id/toggle-closed
func (s *APIV1Service) ToggleQuestionClosed(c echo.Context) error {
	questionID, err := parseID(c, "id")
	if err != nil {
		return errorResponse(c, "invalid toggle request", err)
	}
	var req ToggleClosedRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return errorResponse(c, "invalid toggle request", aierrors.InvalidArgument("malformed request body"))
		}
	}
	question, err := s.Store.ToggleQuestionClosed(c.Request().Context(), questionID, req.Reason)
	if err != nil {
		return errorResponse(c, "failed to toggle question", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id":          question.ID,
		"isClosed":    question.IsClosed,
		"closeReason": question.CloseReason,
	})
}

// SeedPersonas upserts the bundled personas.
// POST /api/v1/admin/personas/seed
func (s *APIV1Service) SeedPersonas(c echo.Context) error {
	personas, err := s.Personas.SeedDefaults(c.Request().Context())
	if err != nil {
		return errorResponse(c, "failed to seed personas", err)
	}
	names := make([]string, 0, len(personas))
	for _, p := range personas {
		names = append(names, p.Name)
	}
	return c.JSON(http.StatusOK, map[string]any{"seeded": len(personas), "names": names})
}

// Setting is a site setting with its coerced value.
type Setting struct {
	Key         string `json:"key"`
	Value       any    `json:"value"`
	Description string `json:"description,omitempty"`
}

// ListSettings returns every stored site setting.
// GET /api/v1/admin/settings
func (s *APIV1Service) ListSettings(c echo.Context) error {
	settings, err := s.Store.ListSiteSettings(c.Request().Context(), &store.FindSiteSetting{})
	if err != nil {
		return errorResponse(c, "failed to list settings", err)
	}
	result := make([]Setting, 0, len(settings))
	for _, setting := range settings {
		if setting.Key == store.SiteSettingSchemaVersion {
			continue
		}
		result = append(result, Setting{
			Key:         setting.Key,
			Value:       store.ParseSettingValue(setting.Value),
			Description: setting.Description,
		})
	}
	return c.JSON(http.StatusOK, result)
}

// UpdateSettings writes the given settings. Only the auto-populate keys are editable.
// PUT /api/v1/admin/settings
func (s *APIV1Service) UpdateSettings(c echo.Context) error {
	var req map[string]json.RawMessage
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, "invalid settings request", aierrors.InvalidArgument("malformed request body"))
	}
	descriptions := make(map[string]string, len(store.DefaultSiteSettings))
	for _, def := range store.DefaultSiteSettings {
		descriptions[def.Key] = def.Description
	}

	updates := make([]*store.SiteSetting, 0, len(req))
	for key, raw := range req {
		description, ok := descriptions[key]
		if !ok {
			return errorResponse(c, "invalid settings request", aierrors.InvalidArgument("unknown setting: "+key))
		}
		value, err := settingValue(raw)
		if err != nil {
			return errorResponse(c, "invalid settings request", aierrors.InvalidArgument("invalid value for "+key))
		}
		updates = append(updates, &store.SiteSetting{Key: key, Value: value, Description: description})
	}

	ctx := c.Request().Context()
	for _, update := range updates {
		if _, err := s.Store.UpsertSiteSetting(ctx, update); err != nil {
			return errorResponse(c, "failed to update setting", err)
		}
	}
	return s.ListSettings(c)
}

// settingValue accepts JSON booleans, non-negative integers and strings.
func settingValue(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch v := v.(type) {
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		if v < 0 || v != float64(int64(v)) {
			return "", aierrors.InvalidArgument("expected a non-negative integer")
		}
		return strconv.FormatInt(int64(v), 10), nil
	case string:
		return v, nil
	default:
		return "", aierrors.InvalidArgument("unsupported setting type")
	}
}
