package httpservice

import (
	"bufio"
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	corelog "crystelf-core/internal/core/log"

	"golang.org/x/time/rate"
)

// TokenHeader 请求头中的访问令牌
const TokenHeader = "X-Token"

// maxTokenBody 读取 body 查找 token 时的上限
const maxTokenBody = 1 << 20

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack websocket 升级需要接管底层连接
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, rw, err := http.NewResponseController(r.ResponseWriter).Hijack()
	if err == nil {
		r.status = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// loggingMiddleware 访问日志
func loggingMiddleware(logger corelog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"remote":   r.RemoteAddr,
				"duration": time.Since(start).String(),
			}).Debug("http: request served")
		})
	}
}

// rateLimitMiddleware 全局令牌桶限流，websocket 升级请求不受限
func rateLimitMiddleware(limiter *rate.Limiter, exempt func(*http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt != nil && exempt(r) {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				RespondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenAuth 校验访问令牌，取 body 的 token 字段或 X-Token 请求头
//
// body 会被读出并重置，后续 handler 仍可完整读取。
func TokenAuth(token string, logger corelog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = corelog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, err := requestToken(r)
			if err != nil {
				RespondError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if got == "" {
				logger.Warnf("http: %s %s without token from %s", r.Method, r.URL.Path, r.RemoteAddr)
				RespondError(w, http.StatusUnauthorized, "missing token")
				return
			}
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				logger.Warnf("http: %s %s with invalid token from %s", r.Method, r.URL.Path, r.RemoteAddr)
				RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestToken(r *http.Request) (string, error) {
	if r.Body != nil && r.Body != http.NoBody {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxTokenBody))
		_ = r.Body.Close()
		if err != nil {
			return "", err
		}
		r.Body = io.NopCloser(bytes.NewReader(data))

		if len(bytes.TrimSpace(data)) > 0 {
			var body struct {
				Token string `json:"token"`
			}
			if err := json.Unmarshal(data, &body); err == nil && body.Token != "" {
				return body.Token, nil
			}
		}
	}
	return r.Header.Get(TokenHeader), nil
}
