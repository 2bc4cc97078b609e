package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilesh65/CodeKonnect/internal/app"
	"github.com/nilesh65/CodeKonnect/internal/exec"
	"github.com/nilesh65/CodeKonnect/internal/session"
	"github.com/nilesh65/CodeKonnect/internal/ws"
)

func testRouter(t *testing.T, pistonURL string) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := app.Config{Env: "test", CORSAllow: []string{"*"}}
	piston := exec.NewPiston(pistonURL, time.Second, logger)
	hub := ws.NewHub(logger, session.NewRegistry(), piston, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	return NewRouter(cfg, hub, piston)
}

func TestHealthEndpoints(t *testing.T) {
	router := testRouter(t, "http://127.0.0.1:0")

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestCreateRoomReturnsUUID(t *testing.T) {
	router := testRouter(t, "http://127.0.0.1:0")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rooms", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		RoomID string `json:"roomId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	_, err := uuid.Parse(resp.RoomID)
	assert.NoError(t, err)
}

func TestRuntimesProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"language":"python","version":"3.12.0"}]`))
	}))
	defer upstream.Close()

	router := testRouter(t, upstream.URL)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runtimes", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var rts []exec.Runtime
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rts))
	require.Len(t, rts, 1)
	assert.Equal(t, "python", rts[0].Language)
}

func TestRuntimesProxyUpstreamDown(t *testing.T) {
	router := testRouter(t, "http://127.0.0.1:1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runtimes", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestMetricsExposed(t *testing.T) {
	router := testRouter(t, "http://127.0.0.1:0")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
