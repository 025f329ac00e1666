package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langleague/langleague/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.Logger = zap.NewNop()
	utils.Sugar = utils.Logger.Sugar()
}

func limiterAt(start time.Time) (*AdmissionLimiter, *time.Time) {
	clock := start
	l := NewAdmissionLimiter()
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestRuleForCategories(t *testing.T) {
	cases := []struct {
		path     string
		category string
		capacity int
	}{
		{"/api/v1/auth/login", "auth", 5},
		{"/api/authenticate", "auth", 5},
		{"/api/v1/auth/register", "register", 3},
		{"/api/v1/admin/users", "admin", 50},
		{"/api/v1/files/upload", "upload", 10},
		{"/api/v1/exercises/submit", "api", 100},
	}
	for _, tc := range cases {
		rule := ruleFor(tc.path)
		assert.Equal(t, tc.category, rule.category, tc.path)
		assert.Equal(t, tc.capacity, rule.capacity, tc.path)
	}
}

func TestTryAdmitExhaustsBucket(t *testing.T) {
	l, _ := limiterAt(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))

	for i := 0; i < 5; i++ {
		res := l.TryAdmit("10.0.0.1", "/api/v1/auth/login")
		assert.True(t, res.Admitted, "request %d within capacity", i+1)
		assert.Equal(t, 4-i, res.RemainingTokens)
	}

	res := l.TryAdmit("10.0.0.1", "/api/v1/auth/login")
	assert.False(t, res.Admitted)
	assert.LessOrEqual(t, res.RetryAfterSeconds, 60)
	assert.Greater(t, res.RetryAfterSeconds, 0)
}

func TestTryAdmitRefillsAfterWindow(t *testing.T) {
	l, clock := limiterAt(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))

	for i := 0; i < 5; i++ {
		l.TryAdmit("10.0.0.1", "/api/v1/auth/login")
	}
	assert.False(t, l.TryAdmit("10.0.0.1", "/api/v1/auth/login").Admitted)

	// Partial elapse does not trickle tokens back.
	*clock = clock.Add(30 * time.Second)
	assert.False(t, l.TryAdmit("10.0.0.1", "/api/v1/auth/login").Admitted)

	// Full window elapsed: bucket resets to capacity.
	*clock = clock.Add(31 * time.Second)
	res := l.TryAdmit("10.0.0.1", "/api/v1/auth/login")
	assert.True(t, res.Admitted)
	assert.Equal(t, 4, res.RemainingTokens)
}

func TestTryAdmitIsolatesClientsAndCategories(t *testing.T) {
	l, _ := limiterAt(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))

	for i := 0; i < 5; i++ {
		l.TryAdmit("10.0.0.1", "/api/v1/auth/login")
	}
	assert.False(t, l.TryAdmit("10.0.0.1", "/api/v1/auth/login").Admitted)

	// Other clients keep their own bucket.
	assert.True(t, l.TryAdmit("10.0.0.2", "/api/v1/auth/login").Admitted)
	// Same client, different category.
	assert.True(t, l.TryAdmit("10.0.0.1", "/api/v1/exercises/submit").Admitted)
}

func TestRateLimitMiddlewareResponses(t *testing.T) {
	l, _ := limiterAt(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))

	r := gin.New()
	r.Use(RateLimitMiddleware(l))
	r.POST("/api/v1/auth/login", func(ctx *gin.Context) {
		ctx.Status(http.StatusOK)
	})

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.Header.Set("X-Forwarded-For", "10.0.0.9")
		r.ServeHTTP(w, req)
		return w
	}

	w := do()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "4", w.Header().Get("X-Rate-Limit-Remaining"))

	for i := 0; i < 4; i++ {
		do()
	}

	w = do()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Rate-Limit-Retry-After-Seconds"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Too many requests", body["error"])
	assert.Contains(t, body["message"], "Rate limit exceeded. Please try again in")
}
