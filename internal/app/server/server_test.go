package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"crystelf-core/internal/config"
	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/hub"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Root {
	t.Helper()
	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Hub.Secret = "hub-secret"
	cfg.API.Token = "api-token"
	cfg.API.RateLimit.Enabled = false
	cfg.Storage.Cache.Type = config.CacheMemory
	cfg.Storage.Durable.JSON.DataDir = t.TempDir()
	require.NoError(t, cfg.Validate())
	return cfg
}

func tryAPI(addr, path string, body map[string]interface{}) (int, map[string]interface{}, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	resp, err := http.Post("http://"+addr+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, out, nil
}

func apiCall(t *testing.T, addr, path string, body map[string]interface{}) (int, map[string]interface{}) {
	t.Helper()
	status, out, err := tryAPI(addr, path, body)
	require.NoError(t, err)
	return status, out
}

func TestServer_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	srv, err := New(context.Background(), cfg, corelog.NewTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, srv.Start())

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+cfg.Hub.Path, nil)
	require.NoError(t, err)
	defer ws.Close()

	read := func() *hub.Message {
		_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
		var m hub.Message
		require.NoError(t, ws.ReadJSON(&m))
		return &m
	}

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "auth", "secret": "hub-secret", "clientId": "alice"}))
	require.True(t, *read().Success)

	require.NoError(t, ws.WriteJSON(map[string]interface{}{
		"type": "reportBots",
		"data": []interface{}{
			map[string]string{"client": "alice"},
			map[string]interface{}{"uin": 100, "nickname": "A", "groups": []interface{}{map[string]interface{}{"groupId": 555, "groupName": "G"}}},
		},
	}))

	require.Eventually(t, func() bool {
		status, body, err := tryAPI(srv.Addr(), "/api/bot/getBotId", map[string]interface{}{"token": "api-token"})
		return err == nil && status == http.StatusOK && assert.ObjectsAreEqual([]interface{}{100.0}, body["data"])
	}, 3*time.Second, 20*time.Millisecond)

	type result struct {
		status int
		body   map[string]interface{}
		err    error
	}
	done := make(chan result, 1)
	go func() {
		status, body, err := tryAPI(srv.Addr(), "/api/bot/getGroupInfo", map[string]interface{}{"token": "api-token", "groupId": 555})
		done <- result{status, body, err}
	}()

	req := read()
	require.Equal(t, hub.TypeGetGroupInfo, req.Type)
	require.NoError(t, ws.WriteJSON(map[string]interface{}{
		"type":      hub.TypeGetGroupInfo,
		"requestId": req.RequestID,
		"data":      map[string]string{"group_name": "Test"},
	}))

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, http.StatusOK, r.status)
		assert.Equal(t, map[string]interface{}{"group_name": "Test"}, r.body["data"])
	case <-time.After(5 * time.Second):
		t.Fatal("getGroupInfo over HTTP did not complete")
	}

	status, _ := apiCall(t, srv.Addr(), "/api/bot/getBotId", map[string]interface{}{"token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = ws.ReadMessage()
	assert.Error(t, err, "client connection is closed on shutdown")
}

func TestServer_HealthAndStats(t *testing.T) {
	cfg := testConfig(t)
	srv, err := New(context.Background(), cfg, corelog.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + srv.Addr() + "/api/system/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Data, "sessions")
	assert.Contains(t, body.Data, "scheduled_broadcast")
}

func TestServer_BadStorageConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Durable.Type = "s3"
	_, err := New(context.Background(), cfg, corelog.NewNopLogger())
	assert.Error(t, err)
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	srv, err := New(context.Background(), cfg, corelog.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool { return srv.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
