package httpservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/core/metrics"
	"crystelf-core/internal/health"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoModule struct {
	started, stopped bool
}

func (m *echoModule) Name() string                        { return "echo" }
func (m *echoModule) SetDependencies(*ModuleDependencies) {}
func (m *echoModule) Start() error                        { m.started = true; return nil }
func (m *echoModule) Stop() error                         { m.stopped = true; return nil }
func (m *echoModule) RegisterRoutes(router *mux.Router) {
	router.Handle("/echo", TokenAuth("t0k", corelog.NewNopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		RespondSuccess(w, body)
	}))).Methods(http.MethodPost)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) ResponseData {
	t.Helper()
	var out ResponseData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHTTPService_Healthz(t *testing.T) {
	checker := health.NewChecker(time.Second)
	failing := false
	checker.Register("cache", health.PingFunc(func(context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	}))
	s := NewHTTPService(context.Background(), &Config{Health: checker, Logger: corelog.NewNopLogger()})
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResponse(t, rec).Success)

	failing = true
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHTTPService_Stats(t *testing.T) {
	m := metrics.NewMemory()
	m.Inc(metrics.AuthTotal, map[string]string{"result": "ok"})
	s := NewHTTPService(context.Background(), &Config{
		Metrics: m,
		Stats:   func() map[string]interface{} { return map[string]interface{}{"clients": 3} },
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/system/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec).Data.(map[string]interface{})
	assert.EqualValues(t, 3, data["clients"])
	assert.Contains(t, data["metrics"], metrics.Key(metrics.AuthTotal, map[string]string{"result": "ok"}))
}

func TestTokenAuth_BodyPreserved(t *testing.T) {
	s := NewHTTPService(context.Background(), &Config{})
	s.RegisterModule(&echoModule{})
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"token":"t0k","a":1}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"token": "t0k", "a": 1.0}, decodeResponse(t, rec).Data)

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":2}`))
	req.Header.Set(TokenHeader, "t0k")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"token":"nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid token", decodeResponse(t, rec).Error)
}

func TestRateLimit(t *testing.T) {
	s := NewHTTPService(context.Background(), &Config{
		RateLimit: RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 2},
	})
	h := s.Handler()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/system/stats", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/api/system/stats", nil)
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "upgrade requests bypass the limiter")
}

func TestHTTPService_StartAndClose(t *testing.T) {
	mod := &echoModule{}
	s := NewHTTPService(context.Background(), &Config{ListenAddr: "127.0.0.1:0", MaxConnections: 4})
	s.RegisterModule(mod)
	require.NoError(t, s.Start())
	assert.True(t, mod.started)
	require.NotEmpty(t, s.Addr())

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Close())
	assert.True(t, mod.stopped)
}

type upgradeModule struct{ echoModule }

func (m *upgradeModule) RegisterRoutes(router *mux.Router) {
	upgrader := websocket.Upgrader{}
	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.WriteMessage(mt, data)
	})
}

func TestHTTPService_WebSocketUpgradeThroughMiddleware(t *testing.T) {
	s := NewHTTPService(context.Background(), &Config{
		Logger:    corelog.NewNopLogger(),
		RateLimit: RateLimitConfig{Enabled: true, RPS: 1, Burst: 1},
	})
	s.RegisterModule(&upgradeModule{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ws, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer ws.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hello")))
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}
