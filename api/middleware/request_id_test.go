package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/foodbowl/foodbowl-backend/pkg/logger"
)

func TestRequestIDSources(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{name: "caller id", headers: map[string]string{"X-Request-Id": "checkout-42"}, want: "checkout-42"},
		{name: "cloud trace", headers: map[string]string{"X-Cloud-Trace-Context": "105445aa7843bc8bf206b12000100000/1;o=1"}, want: "105445aa7843bc8bf206b12000100000"},
		{name: "caller id beats trace", headers: map[string]string{"X-Request-Id": "abc", "X-Cloud-Trace-Context": "def/1"}, want: "abc"},
		{name: "header injection", headers: map[string]string{"X-Request-Id": "a b\nc"}},
		{name: "too long", headers: map[string]string{"X-Request-Id": strings.Repeat("a", maxRequestIDLength+1)}},
		{name: "missing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := RequestID(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			seen := rec.Header().Get("X-Request-Id")
			if tc.want != "" {
				assert.Equal(t, tc.want, seen)
				return
			}
			_, err := uuid.Parse(seen)
			assert.NoError(t, err, "expected a minted uuid, got %q", seen)
		})
	}
}
