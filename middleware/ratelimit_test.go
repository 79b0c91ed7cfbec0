package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"rag-knowledge-platform/internal/config"
)

type ctxKey string

// The limiter's Redis calls must run under the request context, and a failed
// INCR must fail open rather than block the request.
func TestRateLimitUsesRequestContextAndFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)

	sawRequestContext := false
	rdb := redis.NewClient(&redis.Options{
		Addr:       "localhost:0",
		MaxRetries: -1,
		Dialer: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if ctx.Value(ctxKey("origin")) == "request" {
				sawRequestContext = true
			}
			return nil, errors.New("dialing disabled in tests")
		},
	})
	defer rdb.Close()

	cfg := &config.Config{RateLimitReqs: 5, RateLimitWindow: 60}
	router := gin.New()
	router.Use(RateLimitMiddleware(rdb, cfg))
	router.POST("/query", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/query", nil)
	req = req.WithContext(context.WithValue(req.Context(), ctxKey("origin"), "request"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected fail-open 200 when redis is unreachable, got %d", w.Code)
	}
	if !sawRequestContext {
		t.Fatal("redis INCR did not run under the request context")
	}
}

func TestRateLimitSkipsHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dialed := false
	rdb := redis.NewClient(&redis.Options{
		Addr:       "localhost:0",
		MaxRetries: -1,
		Dialer: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialed = true
			return nil, errors.New("dialing disabled in tests")
		},
	})
	defer rdb.Close()

	cfg := &config.Config{RateLimitReqs: 5, RateLimitWindow: 60}
	router := gin.New()
	router.Use(RateLimitMiddleware(rdb, cfg))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if dialed {
		t.Fatal("health endpoint should bypass the limiter")
	}
}
