package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dhirajc963/timebrew.news/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func TestAuthRequired(t *testing.T) {
	r := gin.New()
	r.Use(AuthRequired("s3cret"))
	r.GET("/who", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": c.GetUint64(UserIDKey), "email": c.GetString(EmailKey)})
	})

	good, err := auth.SignJWT(42, "reader@example.com", "s3cret", time.Hour)
	require.NoError(t, err)
	other, err := auth.SignJWT(42, "reader@example.com", "other", time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
		code   int
	}{
		{"missing", "", http.StatusUnauthorized, 40101},
		{"not bearer", "Basic abc", http.StatusUnauthorized, 40101},
		{"wrong secret", "Bearer " + other, http.StatusUnauthorized, 40102},
		{"ok", "bearer " + good, http.StatusOK, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.JSONEq(t, `{"uid":42,"email":"reader@example.com"}`, w.Body.String())
				return
			}
			var env envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
			assert.Equal(t, tc.code, env.Code)
		})
	}
}

func TestRequestIDAndRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(log.NewStdLogger(io.Discard)))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Len(t, w.Header().Get(RequestIDHeader), 26)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, 50000, env.Code)

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}
