package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/overflew/internal/profile"
	"github.com/hrygo/overflew/internal/random"
	"github.com/hrygo/overflew/plugin/ai"
	"github.com/hrygo/overflew/server/internal/observability"
	"github.com/hrygo/overflew/server/runner/worker"
	"github.com/hrygo/overflew/server/service/persona"
	"github.com/hrygo/overflew/server/service/populate"
	"github.com/hrygo/overflew/server/service/responder"
	"github.com/hrygo/overflew/server/service/thread"
	"github.com/hrygo/overflew/store"
	teststore "github.com/hrygo/overflew/store/test"
)

type testServer struct {
	echo       *echo.Echo
	store      *store.Store
	pool       *worker.Pool
	completion *ai.MockCompletionService
	asker      *store.User
	question   *store.Question
}

func newTestServer(ctx context.Context, t *testing.T) *testServer {
	t.Helper()
	ts := teststore.NewTestingStore(ctx, t)
	pool := worker.NewPool(worker.Config{Workers: 1, ParallelLimit: 4, Metrics: observability.NewMetrics()})
	t.Cleanup(pool.Stop)

	src := random.NewFixed(0.05)
	completion := &ai.MockCompletionService{}
	registry := persona.NewRegistry(ts, src)
	r := responder.New(ts, pool, registry, completion, responder.Config{PersistFallback: true}, src)
	driver := populate.NewDriver(ts, pool, registry, r, populate.Config{MaxIterations: 3, MaxIdlePasses: 1}, src)

	service := NewAPIV1Service(&profile.Profile{Mode: "dev", Version: "0.1.0"}, ts, pool, registry, r, driver)
	e := echo.New()
	service.RegisterRoutes(e)

	asker, err := ts.CreateUser(ctx, &store.User{Username: "asker", Email: "asker@example.com"})
	require.NoError(t, err)
	question, err := ts.CreateQuestionWithTags(ctx, &store.Question{
		Title:     "How do I cancel a goroutine?",
		Body:      "It blocks on a channel receive.",
		CreatorID: asker.ID,
	}, []string{"go"})
	require.NoError(t, err)

	return &testServer{echo: e, store: ts, pool: pool, completion: completion, asker: asker, question: question}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) persona(ctx context.Context, t *testing.T, name string) *store.Persona {
	t.Helper()
	p, err := s.store.CreatePersona(ctx, &store.Persona{
		Name:              name,
		Expertise:         "Programming",
		HelpfulnessLevel:  9,
		StrictnessLevel:   2,
		ActivityFrequency: 1,
		IsActive:          true,
	})
	require.NoError(t, err)
	return p
}

func (s *testServer) commentCount(ctx context.Context, t *testing.T) int {
	t.Helper()
	n, err := s.store.CountComments(ctx, &store.FindComment{QuestionID: &s.question.ID})
	require.NoError(t, err)
	return n
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestQuestionCreated(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(ctx, t)
	s.persona(ctx, t, "Gopher")
	s.completion.On("Complete", mock.Anything, mock.Anything).Return("Use a context.")

	rec := s.do(t, http.MethodPost, "/api/v1/questions/"+itoa(s.question.ID)+"/created", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	response := decode[TriggerResponse](t, rec)
	assert.True(t, response.Enqueued)
	assert.False(t, response.Populate)

	s.pool.Stop()
	assert.Equal(t, 1, s.commentCount(ctx, t))
}

func TestCommentCreated_BotAuthorIgnored(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(ctx, t)
	p := s.persona(ctx, t, "Gopher")
	s.completion.On("Complete", mock.Anything, mock.Anything).Return("Use a context.")

	respond := s.do(t, http.MethodPost, "/api/v1/ai/respond",
		`{"kind":"question","contentId":`+itoa(s.question.ID)+`,"personaId":`+itoa(p.ID)+`}`)
	require.Equal(t, http.StatusCreated, respond.Code)
	comments, err := s.store.ListComments(ctx, &store.FindComment{QuestionID: &s.question.ID})
	require.NoError(t, err)
	require.Len(t, comments, 1)

	rec := s.do(t, http.MethodPost, "/api/v1/comments/"+itoa(comments[0].ID)+"/created", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.False(t, decode[TriggerResponse](t, rec).Enqueued)
}

func TestTriggers_InvalidID(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(ctx, t)

	for _, path := range []string{
		"/api/v1/questions/abc/created",
		"/api/v1/comments/0/created",
		"/api/v1/votes/-3/cast",
	} {
		rec := s.do(t, http.MethodPost, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
	s.completion.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestRespondAs(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(ctx, t)
	p := s.persona(ctx, t, "Gopher")
	s.completion.On("Complete", mock.Anything, mock.Anything).Return("Close the done channel.")

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "unknown kind", body: `{"kind":"tag","contentId":1,"personaId":1}`, want: http.StatusBadRequest},
		{name: "missing ids", body: `{"kind":"question"}`, want: http.StatusBadRequest},
		{name: "malformed body", body: `{"kind":`, want: http.StatusBadRequest},
		{name: "unknown persona", body: `{"kind":"question","contentId":` + itoa(s.question.ID) + `,"personaId":999}`, want: http.StatusNotFound},
		{name: "unknown question", body: `{"kind":"question","contentId":999,"personaId":` + itoa(p.ID) + `}`, want: http.StatusNotFound},
		{name: "answers", body: `{"kind":"question","contentId":` + itoa(s.question.ID) + `,"personaId":` + itoa(p.ID) + `}`, want: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/ai/respond", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, 1, s.commentCount(ctx, t))
}

func TestGetThread(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(ctx, t)
	answer, err := s.store.CreateComment(ctx, &store.Comment{QuestionID: s.question.ID, CreatorID: s.asker.ID, Body: "Answering myself."})
	require.NoError(t, err)
	_, err = s.store.CreateComment(ctx, &store.Comment{QuestionID: s.question.ID, CreatorID: s.asker.ID, ParentID: &answer.ID, Body: "A reply."})
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/api/v1/questions/"+itoa(s.question.ID)+"/thread", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tree := decode[thread.Thread](t, rec)
	require.Len(t, tree.Answers, 1)
	assert.Len(t, tree.Answers[0].Replies, 1)

	rec = s.do(t, http.MethodGet, "/api/v1/questions/"+itoa(s.question.ID)+"/thread?depth=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tree = decode[thread.Thread](t, rec)
	require.Len(t, tree.Answers, 1)
	assert.Empty(t, tree.Answers[0].Replies)
	assert.Equal(t, 1, tree.Answers[0].HiddenReplies)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/questions/"+itoa(s.question.ID)+"/thread?depth=0", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/questions/999/thread", "").Code)
}

func TestAcceptComment(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(ctx, t)
	answer, err := s.store.CreateComment(ctx, &store.Comment{QuestionID: s.question.ID, CreatorID: s.asker.ID, Body: "An answer."})
	require.NoError(t, err)
	reply, err := s.store.CreateComment(ctx, &store.Comment{QuestionID: s.question.ID, CreatorID: s.asker.ID, ParentID: &answer.ID, Body: "A reply."})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/comments/"+itoa(answer.ID)+"/accept", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/comments/"+itoa(reply.ID)+"/accept", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/v1/comments/999/accept", "").Code)

	accepted, err := s.store.GetComment(ctx, &store.FindComment{ID: &answer.ID})
	require.NoError(t, err)
	assert.True(t, accepted.IsAccepted)
}

func TestToggleQuestionClosed(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(ctx, t)
	path := "/api/v1/admin/questions/" + itoa(s.question.ID) + "/toggle-closed"

	rec := s.do(t, http.MethodPost, path, `{"reason":"duplicate"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["isClosed"])
	assert.Equal(t, "duplicate", body["closeReason"])

	rec = s.do(t, http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[map[string]any](t, rec)
	assert.Equal(t, false, body["isClosed"])
	assert.Equal(t, "", body["closeReason"])

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/v1/admin/questions/999/toggle-closed", "").Code)
}

func TestPopulateQuestion(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(ctx, t)
	s.persona(ctx, t, "Gopher")
	s.completion.On("Complete", mock.Anything, mock.Anything).Return("Use errgroup.")
	path := "/api/v1/admin/questions/" + itoa(s.question.ID) + "/populate"

	rec := s.do(t, http.MethodPost, path, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	s.pool.Stop()
	assert.Equal(t, 1, s.commentCount(ctx, t))

	_, err := s.store.ToggleQuestionClosed(ctx, s.question.ID, "done")
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, path, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/v1/admin/questions/999/populate", "").Code)
}

func TestSeedPersonas(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(ctx, t)

	rec := s.do(t, http.MethodPost, "/api/v1/admin/personas/seed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.EqualValues(t, 15, body["seeded"])

	// Seeding is an upsert by name.
	rec = s.do(t, http.MethodPost, "/api/v1/admin/personas/seed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	personas, err := s.store.ListPersonas(ctx, &store.FindPersona{})
	require.NoError(t, err)
	assert.Len(t, personas, 15)
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(ctx, t)
	require.NoError(t, s.store.InitSiteSettings(ctx))

	rec := s.do(t, http.MethodGet, "/api/v1/admin/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	settings := decode[[]Setting](t, rec)
	values := map[string]any{}
	for _, setting := range settings {
		values[setting.Key] = setting.Value
	}
	assert.Equal(t, false, values[store.SiteSettingAutoPopulateEnabled])
	assert.EqualValues(t, 150, values[store.SiteSettingAutoPopulateMaxComments])
	assert.NotContains(t, values, store.SiteSettingSchemaVersion)

	rec = s.do(t, http.MethodPut, "/api/v1/admin/settings",
		`{"ai_auto_populate_enabled":true,"ai_auto_populate_max_comments":20}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	enabled, err := s.store.GetSiteSettingBool(ctx, store.SiteSettingAutoPopulateEnabled, false)
	require.NoError(t, err)
	assert.True(t, enabled)
	maxComments, err := s.store.GetSiteSettingInt(ctx, store.SiteSettingAutoPopulateMaxComments, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, maxComments)

	tests := []struct {
		name string
		body string
	}{
		{name: "unknown key", body: `{"theme":"dark"}`},
		{name: "negative number", body: `{"ai_auto_populate_max_comments":-1}`},
		{name: "fractional number", body: `{"ai_auto_populate_personalities":2.5}`},
		{name: "object value", body: `{"ai_auto_populate_enabled":{"on":true}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/api/v1/admin/settings", tt.body).Code)
		})
	}
}

func TestQuestionCreated_TriggersPopulateWhenEnabled(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(ctx, t)
	_, err := s.store.UpsertSiteSetting(ctx, &store.SiteSetting{Key: store.SiteSettingAutoPopulateEnabled, Value: "true"})
	require.NoError(t, err)
	s.completion.On("Complete", mock.Anything, mock.Anything).Return("Generated text.")

	rec := s.do(t, http.MethodPost, "/api/v1/questions/"+itoa(s.question.ID)+"/created", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, decode[TriggerResponse](t, rec).Populate)
	s.pool.Stop()
}

func TestHealth(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(ctx, t)

	rec := s.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.Zero(t, health.QueueLength)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/system/metrics", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/system/metrics?job=missing", "").Code)
}

func itoa(id int32) string {
	return strconv.Itoa(int(id))
}
