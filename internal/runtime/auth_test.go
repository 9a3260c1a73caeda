package runtime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func protectedServer(secret []byte) *echo.Echo {
	e := echo.New()
	e.GET("/protected", func(c echo.Context) error {
		sub, ok := SubjectFromContext(c.Request().Context())
		if !ok {
			return echo.NewHTTPError(http.StatusInternalServerError, "subject missing")
		}
		return c.String(http.StatusOK, sub)
	}, EchoAuthMiddleware(secret))
	return e
}

func TestAuthMiddlewareAcceptsBearerToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := SignJWT("user-42", secret, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	e := protectedServer(secret)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "user-42" {
		t.Fatalf("subject must flow into the request context, got %q", rec.Body.String())
	}
}

func TestAuthMiddlewareAcceptsCookie(t *testing.T) {
	secret := []byte("test-secret")
	token, err := SignJWT("user-7", secret, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	e := protectedServer(secret)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "auth", Value: token})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddlewareRejectsBadTokens(t *testing.T) {
	secret := []byte("test-secret")
	e := protectedServer(secret)

	// no token at all
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", rec.Code)
	}

	// signed with the wrong secret
	wrong, err := SignJWT("user-1", []byte("other-secret"), time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+wrong)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: expected 401, got %d", rec.Code)
	}

	// expired
	expired, err := SignJWT("user-1", secret, -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired token: expected 401, got %d", rec.Code)
	}
}
