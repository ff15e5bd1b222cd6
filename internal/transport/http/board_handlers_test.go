package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wireboard-server/internal/core"
	"github.com/vovakirdan/wireboard-server/internal/proto"
)

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	e.ts.Config.Handler.ServeHTTP(resp, req)
	return resp
}

func TestAccountEndpoints(t *testing.T) {
	env := startTestServer(t, nil)

	resp := env.request(t, http.MethodPost, "/api/register", "", CredentialsRequest{Email: "Carol@Example.com", Password: "password123"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = env.request(t, http.MethodPost, "/api/register", "", CredentialsRequest{Email: "carol@example.com", Password: "password123"})
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = env.request(t, http.MethodPost, "/api/register", "", CredentialsRequest{Email: "not-an-email", Password: "password123"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.request(t, http.MethodPost, "/api/login", "", CredentialsRequest{Email: "carol@example.com", Password: "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.request(t, http.MethodPost, "/api/login", "", CredentialsRequest{Email: "carol@example.com", Password: "password123"})
	require.Equal(t, http.StatusOK, resp.Code)
	var login AuthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &login))

	resp = env.request(t, http.MethodGet, "/api/me", login.Token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var me UserResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &me))
	assert.Equal(t, "carol@example.com", me.Email)
	assert.False(t, me.IsGuest)

	resp = env.request(t, http.MethodPost, "/api/guest", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Get("Set-Cookie"), "guest_session=")
}

func TestBoardEndpointsRequireToken(t *testing.T) {
	env := startTestServer(t, nil)

	resp := env.request(t, http.MethodPost, "/api/boards", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.request(t, http.MethodGet, "/api/boards/abc", "Bearer-less", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCreateListAndGetBoard(t *testing.T) {
	env := startTestServer(t, nil)
	token, err := env.auth.Register(context.Background(), "dave@example.com", "password123")
	require.NoError(t, err)

	resp := env.request(t, http.MethodPost, "/api/boards", token, nil)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var created BoardResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "1", created.OwnerID)

	resp = env.request(t, http.MethodGet, "/api/boards", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var list []BoardResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	resp = env.request(t, http.MethodGet, "/api/boards/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var got BoardResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.JSONEq(t, "[]", string(got.Elements))
	assert.False(t, got.Live)
	assert.Equal(t, "1", got.OwnerID)

	resp = env.request(t, http.MethodGet, "/api/boards/never-seen", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.JSONEq(t, "[]", string(got.Elements))
}

func TestGetLiveBoard(t *testing.T) {
	env := startTestServer(t, nil)
	ctx := testContext(t)
	token, err := env.auth.Register(context.Background(), "erin@example.com", "password123")
	require.NoError(t, err)

	conn := env.dial(t, ctx)
	send(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{Board: "live-board", Token: token})
	readPresence(t, ctx, conn, 1)
	send(t, ctx, conn, proto.InboundTypeState, map[string]any{"board": "live-board", "elements": []any{stroke("l1")}})
	send(t, ctx, conn, proto.InboundTypeResync, proto.ResyncData{Board: "live-board"})
	readEvent(t, ctx, conn, proto.EventState, nil)

	resp := env.request(t, http.MethodGet, "/api/boards/Live-Board", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var got BoardResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.True(t, got.Live)
	assert.Equal(t, 1, got.Members)
	assert.Equal(t, uint64(1), got.Version)
	assert.Contains(t, string(got.Elements), `"l1"`)

	resp = env.request(t, http.MethodGet, "/api/stats", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var stats core.Stats
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Rooms)
	assert.Equal(t, 1, stats.Connections)
}
