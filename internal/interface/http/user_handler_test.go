package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonlab/usergate/config"
	"github.com/halcyonlab/usergate/internal/hooks"
	handlers "github.com/halcyonlab/usergate/internal/interface/http"
	"github.com/halcyonlab/usergate/internal/router"
	"github.com/halcyonlab/usergate/internal/router/modules"
	"github.com/halcyonlab/usergate/internal/session"
	"github.com/halcyonlab/usergate/internal/store"
	"github.com/halcyonlab/usergate/internal/store/document"
	"github.com/halcyonlab/usergate/pkg/helpers"
	"github.com/halcyonlab/usergate/pkg/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	validation.Init()
}

func defaultRoutes() config.RouteTable {
	return config.RouteTable{
		List:       "/users",
		Search:     "/users/search",
		GetUser:    "/user",
		Signup:     "/signup",
		Login:      "/login",
		Logout:     "/logout",
		UpdateUser: "/user",
		DeleteUser: "/user",
	}
}

type testServer struct {
	engine   *gin.Engine
	stores   *store.Registry
	hooks    *hooks.Registry
	binder   *hooks.Binder
	sessions session.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	stores := store.NewRegistry(logger)
	stores.Register("document", document.New)
	_, err := stores.Open(context.Background(), "document", store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close(context.Background()) })

	sessions := session.NewMemoryStore()
	jwtManager := helpers.NewJWTManager("test-secret", time.Hour)
	hookReg := hooks.NewRegistry()
	routes := defaultRoutes()

	handler := handlers.NewUserHandler(stores, hookReg, sessions, jwtManager, logger, "localhost", false, time.Hour)

	engine := gin.New()
	reg := router.NewRegistry(engine)
	reg.Add(modules.New(handler, hookReg, sessions, jwtManager, routes, nil))
	reg.RegisterAll()

	return &testServer{
		engine:   engine,
		stores:   stores,
		hooks:    hookReg,
		binder:   hooks.NewBinder(hookReg, routes.Names),
		sessions: sessions,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func data(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	body := decode(t, w)
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "expected a data envelope, got %s", w.Body.String())
	return d
}

func jamieSignup() map[string]any {
	return map[string]any{
		"firstname": "Jamie",
		"lastname":  "Lanister",
		"username":  "jamie",
		"email":     "jamie@casterlyrock.example",
		"password":  "GoldenHand1",
	}
}

func (s *testServer) signup(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/signup", body, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return data(t, w)
}

func (s *testServer) login(t *testing.T, login, password string) (string, map[string]any) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/login", map[string]any{"login": login, "password": password}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	d := data(t, w)
	token, ok := d["token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)
	return token, d
}

func TestSignupLoginUpdateSearchFlow(t *testing.T) {
	s := newTestServer(t)

	d := s.signup(t, jamieSignup())
	user := d["user"].(map[string]any)
	assert.Equal(t, "Jamie Lanister", user["fullname"])
	assert.Equal(t, "jamie", user["username"])
	uid := user["id"].(string)
	require.NotEmpty(t, uid)

	// Same email or username again is a conflict.
	w := s.do(t, http.MethodPost, "/api/signup", jamieSignup(), "")
	assert.Equal(t, http.StatusConflict, w.Code)

	// Login by username, then fetch the profile without auth.
	token, loginData := s.login(t, "jamie", "GoldenHand1")
	assert.NotEmpty(t, loginData["expiresAt"])

	w = s.do(t, http.MethodGet, "/api/user/jamie", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Jamie Lanister", data(t, w)["user"].(map[string]any)["fullname"])

	// Update own firstname; the change shows up in search.
	w = s.do(t, http.MethodPut, "/api/user", map[string]any{"id": uid, "firstname": "James"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "James Lanister", data(t, w)["user"].(map[string]any)["fullname"])

	w = s.do(t, http.MethodGet, "/api/users/search?query=Lanister&by=lastname", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	sd := data(t, w)
	assert.EqualValues(t, 1, sd["total"])
	users := sd["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, "James Lanister", users[0].(map[string]any)["fullname"])

	// Login by email works too.
	_, emailLogin := s.login(t, "jamie@casterlyrock.example", "GoldenHand1")
	assert.Equal(t, "jamie", emailLogin["user"].(map[string]any)["username"])
}

func TestLoginFailuresDoNotLeakWhichCheckFailed(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, jamieSignup())

	wrongPass := s.do(t, http.MethodPost, "/api/login", map[string]any{"login": "jamie", "password": "WrongPass1"}, "")
	noUser := s.do(t, http.MethodPost, "/api/login", map[string]any{"login": "tyrion", "password": "GoldenHand1"}, "")

	assert.Equal(t, http.StatusNotFound, wrongPass.Code)
	assert.Equal(t, http.StatusNotFound, noUser.Code)
	assert.JSONEq(t, wrongPass.Body.String(), noUser.Body.String())
}

func TestSignupValidation(t *testing.T) {
	s := newTestServer(t)

	bad := jamieSignup()
	bad["email"] = "not-an-email"
	w := s.do(t, http.MethodPost, "/api/signup", bad, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	items := body["errors"].([]any)
	require.NotEmpty(t, items)
	assert.Equal(t, "email", items[0].(map[string]any)["param"])

	short := jamieSignup()
	short["password"] = "abc"
	w = s.do(t, http.MethodPost, "/api/signup", short, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/signup", map[string]any{"firstname": "Jamie"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// No success body on any route may carry a password in any spelling.
func TestPasswordNeverLeaves(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, jamieSignup())
	token, _ := s.login(t, "jamie", "GoldenHand1")

	paths := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/users", nil},
		{http.MethodGet, "/api/users/search?query=jamie", nil},
		{http.MethodGet, "/api/user/jamie", nil},
	}
	for _, p := range paths {
		w := s.do(t, p.method, p.path, p.body, token)
		require.Equal(t, http.StatusOK, w.Code, p.path)
		lower := strings.ToLower(w.Body.String())
		assert.NotContains(t, lower, "password", p.path)
		assert.NotContains(t, lower, "hash", p.path)
	}
}

func TestListFiltersAndPagination(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, jamieSignup())
	s.signup(t, map[string]any{
		"firstname": "Tyrion", "lastname": "Lanister", "username": "tyrion",
		"email": "tyrion@casterlyrock.example", "password": "HalfMan123",
	})
	s.signup(t, map[string]any{
		"firstname": "Arya", "lastname": "Stark", "username": "arya",
		"email": "arya@winterfell.example", "password": "NoOne1234",
	})

	w := s.do(t, http.MethodGet, "/api/users", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, data(t, w)["total"])

	w = s.do(t, http.MethodGet, "/api/users?lastname=lanister", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, data(t, w)["total"])

	w = s.do(t, http.MethodGet, "/api/users?limit=2&page=2", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	d := data(t, w)
	assert.EqualValues(t, 3, d["total"])
	assert.EqualValues(t, 1, d["length"])
}

func TestSearchRequiresTerm(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/users/search", nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	items := decode(t, w)["errors"].([]any)
	require.NotEmpty(t, items)
	assert.Equal(t, "query", items[0].(map[string]any)["param"])
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/user/nobody", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProtectedRoutesNeedAuth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPut, "/api/user", map[string]any{"id": "x"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/logout", nil, "garbage-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateAnotherUserForbidden(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, jamieSignup())
	other := s.signup(t, map[string]any{
		"firstname": "Tyrion", "lastname": "Lanister", "username": "tyrion",
		"email": "tyrion@casterlyrock.example", "password": "HalfMan123",
	})
	otherID := other["user"].(map[string]any)["id"].(string)

	token, _ := s.login(t, "jamie", "GoldenHand1")
	w := s.do(t, http.MethodPut, "/api/user", map[string]any{"id": otherID, "firstname": "Hacked"}, token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The record is untouched.
	w = s.do(t, http.MethodGet, "/api/user/tyrion", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Tyrion", data(t, w)["user"].(map[string]any)["firstname"])
}

func TestUpdateUsernameConflict(t *testing.T) {
	s := newTestServer(t)
	d := s.signup(t, jamieSignup())
	uid := d["user"].(map[string]any)["id"].(string)
	s.signup(t, map[string]any{
		"firstname": "Tyrion", "lastname": "Lanister", "username": "tyrion",
		"email": "tyrion@casterlyrock.example", "password": "HalfMan123",
	})

	token, _ := s.login(t, "jamie", "GoldenHand1")
	w := s.do(t, http.MethodPut, "/api/user", map[string]any{"id": uid, "username": "tyrion"}, token)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogoutInvalidatesToken(t *testing.T) {
	s := newTestServer(t)
	d := s.signup(t, jamieSignup())
	uid := d["user"].(map[string]any)["id"].(string)
	token, _ := s.login(t, "jamie", "GoldenHand1")

	w := s.do(t, http.MethodGet, "/api/logout", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, data(t, w)["loggedOut"])

	// The token itself is still well-formed, but the session is gone.
	w = s.do(t, http.MethodPut, "/api/user", map[string]any{"id": uid, "firstname": "James"}, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeleteUser(t *testing.T) {
	s := newTestServer(t)
	d := s.signup(t, jamieSignup())
	uid := d["user"].(map[string]any)["id"].(string)
	token, _ := s.login(t, "jamie", "GoldenHand1")

	// Body id and path id must agree.
	w := s.do(t, http.MethodDelete, "/api/user/"+uid, map[string]any{"userId": "someone-else"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, "/api/user/"+uid, map[string]any{"userId": uid}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	dd := data(t, w)
	assert.Equal(t, true, dd["deleted"])
	assert.Equal(t, uid, dd["id"])

	w = s.do(t, http.MethodGet, "/api/user/jamie", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// The deleted user's session died with the record.
	w = s.do(t, http.MethodGet, "/api/logout", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestResponseHookMutatesBody(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, jamieSignup())

	require.NoError(t, s.binder.On(hooks.Response, "getUser", func(req *hooks.RequestInfo, res *hooks.ResponseInfo, advance hooks.Advance) {
		res.Body["served_by"] = "hook"
		advance(nil)
	}))

	w := s.do(t, http.MethodGet, "/api/user/jamie", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hook", decode(t, w)["served_by"])
}

func TestRequestHookShortCircuits(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, jamieSignup())

	require.NoError(t, s.binder.On(hooks.Request, "list", func(req *hooks.RequestInfo, res *hooks.ResponseInfo, advance hooks.Advance) {
		advance(hooks.Halt(http.StatusUnavailableForLegalReasons, "blocked"))
	}))

	w := s.do(t, http.MethodGet, "/api/users", nil, "")
	require.Equal(t, http.StatusUnavailableForLegalReasons, w.Code)
	items := decode(t, w)["errors"].([]any)
	require.NotEmpty(t, items)
	assert.Equal(t, "blocked", items[0].(map[string]any)["msg"])

	// Other routes stay untouched.
	w = s.do(t, http.MethodGet, "/api/user/jamie", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

// A request hook may stage a status or inspect the response scaffold before
// any body exists; it must never be handed a nil ResponseInfo.
func TestRequestHookCanTouchResponse(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, jamieSignup())

	var sawBody bool
	require.NoError(t, s.binder.On(hooks.Request, "list", func(req *hooks.RequestInfo, res *hooks.ResponseInfo, advance hooks.Advance) {
		res.Status = http.StatusAccepted // staged, handlers decide the real one
		sawBody = res.Body != nil
		advance(nil)
	}))

	w := s.do(t, http.MethodGet, "/api/users", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, sawBody, "no body exists before the handler runs")
}

func TestSearchIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, jamieSignup())
	s.signup(t, map[string]any{
		"firstname": "Tyrion", "lastname": "Lanister", "username": "tyrion",
		"email": "tyrion@casterlyrock.example", "password": "HalfMan123",
	})

	first := s.do(t, http.MethodGet, "/api/users/search?query=lanister&sort=username:asc", nil, "")
	second := s.do(t, http.MethodGet, "/api/users/search?query=lanister&sort=username:asc", nil, "")

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestWildcardRequestHookSeesEveryRoute(t *testing.T) {
	s := newTestServer(t)

	var seen []string
	require.NoError(t, s.binder.On(hooks.Request, hooks.Wildcard, func(req *hooks.RequestInfo, res *hooks.ResponseInfo, advance hooks.Advance) {
		seen = append(seen, req.Route)
		advance(nil)
	}))

	s.signup(t, jamieSignup())
	s.login(t, "jamie", "GoldenHand1")
	s.do(t, http.MethodGet, "/api/users", nil, "")
	s.do(t, http.MethodGet, "/api/user/jamie", nil, "")

	assert.Equal(t, []string{"signup", "login", "list", "getUser"}, seen)
}
