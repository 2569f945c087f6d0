package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/overflew/internal/profile"
	"github.com/hrygo/overflew/plugin/ai"
	"github.com/hrygo/overflew/store"
	teststore "github.com/hrygo/overflew/store/test"
)

func TestServer_StartServeShutdown(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	p := &profile.Profile{Mode: "dev", Addr: "127.0.0.1", Port: 0, Version: "0.1.0", WorkerCount: 1, ParallelLimit: 1}

	s := newServer(p, ts, &ai.MockCompletionService{})
	require.NoError(t, s.Start(ctx))
	addr := s.Addr()
	require.NotNil(t, addr)

	resp, err := http.Get("http://" + addr.String() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "0.1.0", body["version"])

	// Start seeds the default site settings.
	enabled, err := ts.GetSiteSettingBool(ctx, store.SiteSettingAutoPopulateEnabled, true)
	require.NoError(t, err)
	assert.False(t, enabled)

	s.Shutdown(ctx)
	_, err = http.Get("http://" + addr.String() + "/healthz")
	assert.Error(t, err)
}

func TestNewServer_WiresServices(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	p := &profile.Profile{Mode: "dev", AIEnabled: true, AIAPIKey: "sk-test"}

	s, err := NewServer(ctx, p, ts)
	require.NoError(t, err)
	assert.NotNil(t, s.Responder)
	assert.NotNil(t, s.Populate)
	s.Pool.Stop()
}
