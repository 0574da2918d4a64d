package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSOrigins(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"listed", []string{"https://sportbar.com"}, "https://sportbar.com", true},
		{"listed with trailing slash", []string{"https://sportbar.com/"}, "https://sportbar.com", true},
		{"unknown", []string{"https://sportbar.com"}, "https://evil.example", false},
		{"any", []string{"*"}, "https://random.example", true},
		{"wildcard subdomain", []string{"https://*.sportbar.com"}, "https://reservas.sportbar.com", true},
		{"wildcard needs a subdomain", []string{"https://*.sportbar.com"}, "https://.sportbar.com", false},
		{"wildcard keeps scheme", []string{"https://*.sportbar.com"}, "http://reservas.sportbar.com", false},
		{"wildcard is a suffix match", []string{"https://*.sportbar.com"}, "https://sportbar.com.evil.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			req := httptest.NewRequest(http.MethodGet, "/chat/venue", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			CORS(tt.allowed)(okHandler(&called)).ServeHTTP(rec, req)

			assert.True(t, called)
			assert.Equal(t, http.StatusOK, rec.Code)
			if tt.want {
				assert.Equal(t, tt.origin, rec.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, corsAllowedMethods, rec.Header().Get("Access-Control-Allow-Methods"))
				assert.Equal(t, corsAllowedHeaders, rec.Header().Get("Access-Control-Allow-Headers"))
			} else {
				assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestCORSHandlesPreflight(t *testing.T) {
	called := false
	req := httptest.NewRequest(http.MethodOptions, "/chat/message", nil)
	req.Header.Set("Origin", "https://sportbar.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()

	CORS([]string{"https://sportbar.com"})(okHandler(&called)).ServeHTTP(rec, req)

	assert.False(t, called, "preflight must not reach the handler")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
