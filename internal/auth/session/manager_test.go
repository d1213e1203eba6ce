package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/podbudget/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestReadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewManager(config.Config{})

	cases := []struct {
		name   string
		header string
		cookie string
		want   string
		ok     bool
	}{
		{name: "bearer", header: "Bearer abc", want: "abc", ok: true},
		{name: "bearer wins", header: "bearer abc", cookie: "xyz", want: "abc", ok: true},
		{name: "cookie", cookie: "xyz", want: "xyz", ok: true},
		{name: "empty bearer falls back", header: "Bearer ", cookie: "xyz", want: "xyz", ok: true},
		{name: "nothing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: tc.cookie})
			}
			c.Request = req

			token, ok := m.ReadToken(c)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, token)
		})
	}
}
