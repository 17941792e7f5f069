package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"insightstox/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, email string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, Claims{
		Email:            email,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
	})
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func authRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Auth(secret), func(c *gin.Context) {
		c.String(http.StatusOK, Email(c))
	})
	return r
}

func TestAuth_BearerAndCookie(t *testing.T) {
	r := authRouter()
	tok := sign(t, jwt.SigningMethodHS256, []byte(secret), "User@Example.com", time.Now().Add(time.Hour))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user@example.com", w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: tok})
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_Rejects(t *testing.T) {
	r := authRouter()
	cases := map[string]string{
		"missing":     "",
		"expired":     sign(t, jwt.SigningMethodHS256, []byte(secret), "a@b.c", time.Now().Add(-time.Hour)),
		"wrong key":   sign(t, jwt.SigningMethodHS256, []byte("other"), "a@b.c", time.Now().Add(time.Hour)),
		"no email":    sign(t, jwt.SigningMethodHS256, []byte(secret), "", time.Now().Add(time.Hour)),
		"unsigned":    sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, "a@b.c", time.Now().Add(time.Hour)),
		"not a token": "garbage",
	}
	for name, tok := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

func TestRequestLoggerAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	m := metrics.New()

	r := gin.New()
	r.Use(RequestLogger(log), Metrics(m))
	r.GET("/ping/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping/7", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), `"path":"/ping/7"`)
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping/8", nil)
	req.Header.Set(RequestIDHeader, "fixed-id")
	r.ServeHTTP(w, req)
	assert.Equal(t, "fixed-id", w.Header().Get(RequestIDHeader))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration), "same route label set")
}
