package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-auth/internal/apperr"
	"github.com/iliyamo/restaurant-auth/internal/model"
	"github.com/iliyamo/restaurant-auth/internal/token"
)

const testSecret = "middleware-test-secret-0123456789abcdef"

func newCodec(t *testing.T) *token.Codec {
	t.Helper()
	codec, err := token.NewCodec(testSecret, time.Minute, "")
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	return codec
}

func newContext(authHeader string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

func TestAuthenticate_AttachesClaims(t *testing.T) {
	codec := newCodec(t)
	tok, err := codec.Issue(7, "chef@example.com", model.RoleKitchen)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	c, _ := newContext("Bearer " + tok.Token)

	var got token.Claims
	h := Authenticate(codec)(func(c echo.Context) error {
		var ok bool
		got, ok = ClaimsFrom(c.Request().Context())
		if !ok {
			t.Fatal("claims missing from request context")
		}
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if got.UserID != 7 || got.Email != "chef@example.com" || got.Role != model.RoleKitchen {
		t.Errorf("claims = %+v", got)
	}
	if cl, ok := CurrentClaims(c); !ok || cl.UserID != 7 {
		t.Errorf("CurrentClaims() = %+v, %v", cl, ok)
	}
}

func TestAuthenticate_Failures(t *testing.T) {
	codec := newCodec(t)
	other, _ := token.NewCodec("another-secret-0123456789abcdef-xyz", time.Minute, "")
	forged, _ := other.Issue(1, "a@example.com", model.RoleOwner)

	expiring := newCodec(t)
	expiring.Now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, _ := expiring.Issue(1, "a@example.com", model.RoleOwner)

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{"no header", "", apperr.ErrMissingToken},
		{"wrong scheme", "Basic dXNlcjpwYXNz", apperr.ErrMissingToken},
		{"empty bearer", "Bearer   ", apperr.ErrMissingToken},
		{"garbage", "Bearer not.a.jwt", apperr.ErrMalformedToken},
		{"other secret", "Bearer " + forged.Token, apperr.ErrInvalidSignature},
		{"expired", "Bearer " + stale.Token, apperr.ErrExpiredToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newContext(tt.header)
			called := false
			err := Authenticate(codec)(func(echo.Context) error { called = true; return nil })(c)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if called {
				t.Error("next handler must not run")
			}
		})
	}
}

func TestBearerToken_CaseInsensitiveScheme(t *testing.T) {
	raw, ok := bearerToken("bearer abc.def.ghi")
	if !ok || raw != "abc.def.ghi" {
		t.Fatalf("bearerToken() = %q, %v", raw, ok)
	}
}

func TestRequireRole(t *testing.T) {
	gate := RequireRole(model.RoleAdmin, model.RoleOwner)

	tests := []struct {
		name   string
		claims *token.Claims
		want   error
	}{
		{"no claims", nil, apperr.ErrUnauthorized},
		{"waiter rejected", &token.Claims{UserID: 1, Role: model.RoleWaiter}, apperr.ErrForbidden},
		{"admin accepted", &token.Claims{UserID: 2, Role: model.RoleAdmin}, nil},
		{"owner accepted", &token.Claims{UserID: 3, Role: model.RoleOwner}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext("")
			if tt.claims != nil {
				c.SetRequest(c.Request().WithContext(WithClaims(c.Request().Context(), *tt.claims)))
			}
			err := gate(okHandler)(c)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("error = %v", err)
				}
				if rec.Code != http.StatusNoContent {
					t.Errorf("status = %d", rec.Code)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
	if apperr.ErrUnauthorized.Code == apperr.ErrForbidden.Code {
		t.Fatal("Unauthorized and Forbidden must be distinguishable")
	}
}
