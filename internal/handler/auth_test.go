package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/restaurant-auth/internal/database"
	"github.com/iliyamo/restaurant-auth/internal/middleware"
	"github.com/iliyamo/restaurant-auth/internal/model"
	"github.com/iliyamo/restaurant-auth/internal/repository"
	"github.com/iliyamo/restaurant-auth/internal/service"
	"github.com/iliyamo/restaurant-auth/internal/token"
	"github.com/iliyamo/restaurant-auth/internal/utils"
)

type authFixture struct {
	e     *echo.Echo
	auth  *service.AuthService
	users *repository.UserRepo
	codec *token.Codec
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(context.Background(), db, "sqlite3"); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	codec, err := token.NewCodec("handler-test-secret-0123456789abcdef", time.Minute, "")
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	users := repository.NewUserRepo(db)
	refresh := service.NewRefreshService(repository.NewTokenRepo(db), 0)
	auth := service.NewAuthService(users, refresh, codec, utils.NewPasswordHasher(bcrypt.MinCost))

	e := echo.New()
	e.Validator = NewValidator()
	e.HTTPErrorHandler = HTTPErrorHandler

	h := NewAuthHandler(auth)
	authn := middleware.Authenticate(codec)
	e.POST("/login", h.Login)
	e.POST("/register", h.Register, authn)
	e.POST("/refresh", h.Refresh)
	e.POST("/logout", h.Logout, authn)
	e.GET("/me", h.Me, authn)

	return &authFixture{e: e, auth: auth, users: users, codec: codec}
}

func (f *authFixture) do(t *testing.T, method, path, bearer string, body any) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec, decodeEnvelope(t, rec)
}

func (f *authFixture) seed(t *testing.T, email, password string, role model.Role) service.AuthResult {
	t.Helper()
	res, err := f.auth.Register(context.Background(), service.RegisterInput{
		Username: email, Email: email, Password: password, Role: string(role),
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return res
}

func TestLogin_Responses(t *testing.T) {
	f := newAuthFixture(t)
	f.seed(t, "waiter@example.com", "correct-horse", model.RoleWaiter)

	rec, env := f.do(t, http.MethodPost, "/login", "", map[string]string{"email": "Waiter@Example.com", "password": "correct-horse"})
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}
	var data struct {
		User   map[string]any `json:"user"`
		Tokens map[string]any `json:"tokens"`
	}
	raw, _ := json.Marshal(env.Data)
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	for _, k := range []string{"accessToken", "refreshToken", "expiresIn"} {
		if _, ok := data.Tokens[k]; !ok {
			t.Errorf("tokens.%s missing", k)
		}
	}
	if _, leaked := data.User["passwordHash"]; leaked {
		t.Error("password hash must never be returned")
	}

	wrongPw, envWrong := f.do(t, http.MethodPost, "/login", "", map[string]string{"email": "waiter@example.com", "password": "nope"})
	unknown, envUnknown := f.do(t, http.MethodPost, "/login", "", map[string]string{"email": "ghost@example.com", "password": "nope"})
	if wrongPw.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("status wrong=%d unknown=%d, want 401", wrongPw.Code, unknown.Code)
	}
	if envWrong.Error.Code != envUnknown.Error.Code || envWrong.Error.Message != envUnknown.Error.Message {
		t.Errorf("unknown email and wrong password must look identical: %+v vs %+v", envWrong.Error, envUnknown.Error)
	}

	bad, envBad := f.do(t, http.MethodPost, "/login", "", map[string]string{"email": "not-an-email"})
	if bad.Code != http.StatusBadRequest || envBad.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("invalid body: status %d code %+v", bad.Code, envBad.Error)
	}
}

func TestLogin_InactiveAccount(t *testing.T) {
	f := newAuthFixture(t)
	res := f.seed(t, "old@example.com", "correct-horse", model.RoleCashier)

	u, err := f.users.GetByID(context.Background(), res.User.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	u.IsActive = false
	if err := f.users.Update(context.Background(), &u); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	rec, env := f.do(t, http.MethodPost, "/login", "", map[string]string{"email": "old@example.com", "password": "correct-horse"})
	if rec.Code != http.StatusForbidden || env.Error.Code != "INACTIVE_ACCOUNT" {
		t.Fatalf("status %d error %+v, want 403 INACTIVE_ACCOUNT", rec.Code, env.Error)
	}

	rec, env = f.do(t, http.MethodGet, "/me", res.Tokens.AccessToken, nil)
	if rec.Code != http.StatusForbidden || env.Error.Code != "INACTIVE_ACCOUNT" {
		t.Errorf("me after disable: status %d error %+v", rec.Code, env.Error)
	}
}

func TestRegister_DuplicateAndValidation(t *testing.T) {
	f := newAuthFixture(t)
	admin := f.seed(t, "admin@example.com", "admin-password", model.RoleAdmin)
	bearer := admin.Tokens.AccessToken

	body := map[string]string{"username": "newbie", "email": "new@example.com", "password": "new-password", "role": "kitchen"}
	rec, env := f.do(t, http.MethodPost, "/register", bearer, body)
	if rec.Code != http.StatusCreated || !env.Success {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}

	body["username"] = "newbie2"
	rec, env = f.do(t, http.MethodPost, "/register", bearer, body)
	if rec.Code != http.StatusConflict || env.Error.Code != "EMAIL_EXISTS" {
		t.Errorf("duplicate: status %d error %+v", rec.Code, env.Error)
	}

	rec, env = f.do(t, http.MethodPost, "/register", bearer, map[string]string{"username": "x"})
	if rec.Code != http.StatusBadRequest || env.Error.Details == nil {
		t.Errorf("invalid: status %d error %+v", rec.Code, env.Error)
	}

	rec, env = f.do(t, http.MethodPost, "/register", "", body)
	if rec.Code != http.StatusUnauthorized || env.Error.Code != "MISSING_TOKEN" {
		t.Errorf("no bearer: status %d error %+v", rec.Code, env.Error)
	}
}

func TestRefreshAndLogout(t *testing.T) {
	f := newAuthFixture(t)
	res := f.seed(t, "host@example.com", "host-password", model.RoleManager)

	rec, env := f.do(t, http.MethodPost, "/refresh", "", map[string]string{"refreshToken": ""})
	if rec.Code != http.StatusUnauthorized || env.Error.Code != "REFRESH_TOKEN_INVALID" {
		t.Errorf("empty refresh: status %d error %+v", rec.Code, env.Error)
	}

	rec, _ = f.do(t, http.MethodPost, "/refresh", "", map[string]string{"refreshToken": res.Tokens.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: status %d body %s", rec.Code, rec.Body.String())
	}

	rec, env = f.do(t, http.MethodPost, "/logout", res.Tokens.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: status %d body %s", rec.Code, rec.Body.String())
	}
	if data, _ := env.Data.(map[string]any); data["loggedOut"] != true {
		t.Errorf("logout data = %v", env.Data)
	}

	rec, env = f.do(t, http.MethodPost, "/logout", "", nil)
	if rec.Code != http.StatusUnauthorized || env.Error.Code != "MISSING_TOKEN" {
		t.Errorf("logout without bearer: status %d error %+v", rec.Code, env.Error)
	}
}
