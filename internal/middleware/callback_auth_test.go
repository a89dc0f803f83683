package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupCallbackRouter(secret string) *gin.Engine {
	r := gin.New()
	r.Use(CallbackAuth(secret))
	r.POST("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": c.GetString("callbackService")})
	})
	return r
}

func doCallbackRequest(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/test", http.NoBody)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
	return result
}

func TestCallbackAuth(t *testing.T) {
	const secret = "callback-test-secret"

	t.Run("valid_token", func(t *testing.T) {
		token, err := GenerateCallbackToken(secret, "oversight-console")
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}

		rec := doCallbackRequest(setupCallbackRouter(secret), "Bearer "+token)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
		}
		body := parseBody(t, rec)
		if body["service"] != "oversight-console" {
			t.Errorf("expected service claim in context, got %v", body["service"])
		}
	})

	t.Run("missing_header", func(t *testing.T) {
		rec := doCallbackRequest(setupCallbackRouter(secret), "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("malformed_header", func(t *testing.T) {
		rec := doCallbackRequest(setupCallbackRouter(secret), "Token abc123")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("wrong_secret", func(t *testing.T) {
		token, err := GenerateCallbackToken("some-other-secret", "oversight-console")
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}

		rec := doCallbackRequest(setupCallbackRouter(secret), "Bearer "+token)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("garbage_token", func(t *testing.T) {
		rec := doCallbackRequest(setupCallbackRouter(secret), "Bearer not.a.jwt")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})
}
