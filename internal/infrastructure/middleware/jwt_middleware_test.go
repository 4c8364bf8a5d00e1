package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"station_chat_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", JWTAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxUserID)+"/"+c.GetString(CtxUserRole))
	})
	return r
}

func TestJWTAuth(t *testing.T) {
	jwt.Init("middleware-test-secret-0123456789", "station_test", 10, 60)
	access, err := jwt.GenerateAccessToken("U1", "Kari", "student")
	require.NoError(t, err)
	channel, _, err := jwt.GenerateChannelToken("U1", "Kari", "student", "S1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "not bearer", header: "Token " + access, want: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer abc", want: http.StatusUnauthorized},
		{name: "channel token", header: "Bearer " + channel, want: http.StatusUnauthorized},
		{name: "ok", header: "Bearer " + access, want: http.StatusOK},
	}
	r := newEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "U1/student", w.Body.String())
			}
		})
	}
}
