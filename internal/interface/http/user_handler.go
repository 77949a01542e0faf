package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/halcyonlab/usergate/internal/domain/entity"
	"github.com/halcyonlab/usergate/internal/hooks"
	"github.com/halcyonlab/usergate/internal/session"
	"github.com/halcyonlab/usergate/internal/store"
	"github.com/halcyonlab/usergate/pkg/helpers"
	"github.com/halcyonlab/usergate/pkg/response"
	"github.com/halcyonlab/usergate/pkg/validation"
)

// UserHandler orchestrates every user route: validate, call the active
// adapter, shape the public body, run the response hooks, serialize. It holds
// no backend-specific state; the adapter comes from the store registry on
// every request.
type UserHandler struct {
	Stores     *store.Registry
	Hooks      *hooks.Registry
	Sessions   session.Store
	JWT        *helpers.JWTManager
	Logger     *logrus.Logger
	Cookies    *helpers.Manager
	SessionTTL time.Duration
}

func NewUserHandler(stores *store.Registry, hookReg *hooks.Registry, sessions session.Store, jwt *helpers.JWTManager, logger *logrus.Logger, cookieDomain string, cookieSecure bool, sessionTTL time.Duration) *UserHandler {
	return &UserHandler{
		Stores:     stores,
		Hooks:      hookReg,
		Sessions:   sessions,
		JWT:        jwt,
		Logger:     logger,
		Cookies:    helpers.NewCookie(cookieDomain, cookieSecure),
		SessionTTL: sessionTTL,
	}
}

type signupRequest struct {
	Firstname string `json:"firstname" binding:"required"`
	Lastname  string `json:"lastname" binding:"required"`
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,pwd"`
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type updateUserRequest struct {
	ID        string  `json:"id" binding:"required"`
	Firstname *string `json:"firstname"`
	Lastname  *string `json:"lastname"`
	Username  *string `json:"username"`
	Email     *string `json:"email"`
}

type deleteUserRequest struct {
	UserID string `json:"userId" binding:"required"`
}

func (h *UserHandler) adapter(c *gin.Context) (store.Adapter, bool) {
	binding, err := h.Stores.Active()
	if err != nil {
		h.Logger.WithError(err).Error("no active store")
		response.Errors(c, http.StatusInternalServerError, response.Msg("internal error"))
		return nil, false
	}
	return binding.Adapter, true
}

func requestInfo(c *gin.Context, route string) *hooks.RequestInfo {
	params := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		params[p.Key] = p.Value
	}
	return &hooks.RequestInfo{
		Method: c.Request.Method,
		Route:  route,
		Path:   c.Request.URL.Path,
		Params: params,
		Header: c.Request.Header,
		UserID: c.GetString("userID"),
	}
}

// respond runs the response hook chain for the route, letting hooks mutate
// the body and status, then serializes whatever survived.
func (h *UserHandler) respond(c *gin.Context, route string, status int, body map[string]any) {
	res := &hooks.ResponseInfo{Status: status, Body: body}
	h.Hooks.Execute(hooks.Response, route, requestInfo(c, route), res, func() {
		response.JSON(c, res.Status, res.Body)
	}, func(err error) {
		var halt *hooks.HaltError
		if errors.As(err, &halt) {
			response.Errors(c, halt.Status, response.Msg(halt.Message))
			return
		}
		h.Logger.WithError(err).WithField("route", route).Error("response hook failed")
		response.Errors(c, http.StatusInternalServerError, response.Msg("internal error"))
	})
}

// storeError maps adapter errors onto the public taxonomy. Adapter-native
// shapes never cross this boundary.
func (h *UserHandler) storeError(c *gin.Context, err error) {
	var verr *store.ValidationError
	if errors.As(err, &verr) {
		items := make([]response.ErrorItem, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			items = append(items, response.Field(f.Message, f.Field, "body"))
		}
		response.Errors(c, http.StatusBadRequest, items...)
		return
	}
	var exists *store.UserExistsError
	if errors.As(err, &exists) {
		response.Errors(c, http.StatusConflict, response.Field(exists.Error(), exists.Field, "body"))
		return
	}
	switch {
	case errors.Is(err, store.ErrMissingSearchTerm):
		response.Errors(c, http.StatusBadRequest, response.Field("missing search term", "query", "query"))
	case errors.Is(err, store.ErrNotFound):
		response.Errors(c, http.StatusNotFound, response.Msg("user not found"))
	default:
		h.Logger.WithError(err).Error("store operation failed")
		response.Errors(c, http.StatusInternalServerError, response.Msg("internal error"))
	}
}

func publicUsers(users []*entity.User) []entity.PublicUser {
	out := make([]entity.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out
}

func intQuery(c *gin.Context, name string, def int) int {
	raw, ok := c.GetQuery(name)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// List handles GET list: optional firstname/lastname narrowing, paginated.
func (h *UserHandler) List(c *gin.Context) {
	adapter, ok := h.adapter(c)
	if !ok {
		return
	}
	filter := store.ListFilter{
		Firstname: c.Query("firstname"),
		Lastname:  c.Query("lastname"),
		Page:      intQuery(c, "page", 1),
		Limit:     intQuery(c, "limit", store.DefaultLimit),
	}
	if sort := c.Query("sort"); sort != "" {
		filter.Sort = store.ParseSort(sort)
	}
	result, err := adapter.GetUsers(c.Request.Context(), filter)
	if err != nil {
		h.storeError(c, err)
		return
	}
	h.respond(c, "list", http.StatusOK, response.Envelope(map[string]any{
		"total":  result.Total,
		"length": result.Length,
		"users":  publicUsers(result.Users),
	}))
}

// Search handles GET search?query&by&page&limit&sort. An empty term is the
// adapter's call to reject; storeError maps it to the 400.
func (h *UserHandler) Search(c *gin.Context) {
	adapter, ok := h.adapter(c)
	if !ok {
		return
	}
	q := store.SearchQuery{
		Term:  c.Query("query"),
		Page:  intQuery(c, "page", 1),
		Limit: intQuery(c, "limit", store.DefaultLimit),
	}
	if by := c.Query("by"); by != "" {
		q.Fields = store.ParseBy(by)
	}
	if sort := c.Query("sort"); sort != "" {
		q.Sort = store.ParseSort(sort)
	}
	result, err := adapter.SearchUsers(c.Request.Context(), q)
	if err != nil {
		h.storeError(c, err)
		return
	}
	h.respond(c, "search", http.StatusOK, response.Envelope(map[string]any{
		"total":  result.Total,
		"length": result.Length,
		"users":  publicUsers(result.Users),
	}))
}

// GetUser handles GET getUser/:username.
func (h *UserHandler) GetUser(c *gin.Context) {
	adapter, ok := h.adapter(c)
	if !ok {
		return
	}
	u, err := adapter.FindByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.storeError(c, err)
		return
	}
	if u == nil {
		response.Errors(c, http.StatusNotFound, response.Msg("user not found"))
		return
	}
	h.respond(c, "getUser", http.StatusOK, response.Envelope(map[string]any{"user": u.Public()}))
}

// Signup handles POST signup. The lookups are a best-effort pre-check; the
// adapter's atomic constraint still decides races, and its conflict maps to
// the same response.
func (h *UserHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Errors(c, http.StatusBadRequest, validation.ToErrors(err)...)
		return
	}
	adapter, ok := h.adapter(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if u, err := adapter.FindByEmail(ctx, req.Email); err != nil {
		h.storeError(c, err)
		return
	} else if u != nil {
		response.Errors(c, http.StatusConflict, response.Field("user with this email already exists", "email", "body"))
		return
	}
	if u, err := adapter.FindByUsername(ctx, req.Username); err != nil {
		h.storeError(c, err)
		return
	} else if u != nil {
		response.Errors(c, http.StatusConflict, response.Field("user with this username already exists", "username", "body"))
		return
	}

	hash, err := helpers.HashPassword(req.Password)
	if err != nil {
		h.Logger.WithError(err).Error("password hash failed")
		response.Errors(c, http.StatusInternalServerError, response.Msg("internal error"))
		return
	}
	u, err := adapter.CreateUser(ctx, store.CreateFields{
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Username:  req.Username,
		Email:     req.Email,
		Password:  hash,
	})
	if err != nil {
		h.storeError(c, err)
		return
	}
	h.respond(c, "signup", http.StatusOK, response.Envelope(map[string]any{"user": u.Public()}))
}

// looksLikeEmail decides which lookup the login string gets.
func looksLikeEmail(s string) bool {
	at := strings.Index(s, "@")
	return at > 0 && at < len(s)-1
}

// Login handles POST login. A missing user and a wrong password produce the
// same not-found failure so the response does not leak which check failed.
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Errors(c, http.StatusBadRequest, validation.ToErrors(err)...)
		return
	}
	adapter, ok := h.adapter(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var u *entity.User
	var err error
	if looksLikeEmail(req.Login) {
		u, err = adapter.FindByEmail(ctx, req.Login)
	} else {
		u, err = adapter.FindByUsername(ctx, req.Login)
	}
	if err != nil {
		h.storeError(c, err)
		return
	}
	if u == nil || !helpers.CompareHashAndPassword(u.PasswordHash, req.Password) {
		response.Errors(c, http.StatusNotFound, response.Msg("user not found"))
		return
	}

	sid := uuid.NewString()
	token, exp, err := h.JWT.Generate(u.ID, u.Email, sid)
	if err != nil {
		h.Logger.WithError(err).WithField("user_id", u.ID).Error("token generation failed")
		response.Errors(c, http.StatusInternalServerError, response.Msg("internal error"))
		return
	}
	sess := session.Session{
		UserID:   u.ID,
		Email:    u.Email,
		Username: u.Username,
		Fullname: u.FullName(),
		SID:      sid,
	}
	if err := h.Sessions.Save(ctx, sess, h.SessionTTL); err != nil {
		h.Logger.WithError(err).WithField("user_id", u.ID).Error("session save failed")
		response.Errors(c, http.StatusInternalServerError, response.Msg("internal error"))
		return
	}
	h.Cookies.SetToken(c, token, exp)
	h.respond(c, "login", http.StatusOK, response.Envelope(map[string]any{
		"user":      u.Public(),
		"token":     token,
		"expiresAt": exp,
	}))
}

// Logout handles GET logout (authenticated).
func (h *UserHandler) Logout(c *gin.Context) {
	uid := c.GetString("userID")
	if err := h.Sessions.Delete(c.Request.Context(), uid); err != nil {
		h.Logger.WithError(err).WithField("user_id", uid).Warn("session delete failed")
	}
	h.Cookies.Clear(c)
	h.respond(c, "logout", http.StatusOK, response.Envelope(map[string]any{"loggedOut": true}))
}

// UpdateUser handles PUT updateUser. Only firstname/lastname/username/email
// are mutable, and only on the caller's own record; the identity check runs
// before any adapter call.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Errors(c, http.StatusBadRequest, validation.ToErrors(err)...)
		return
	}
	uid := c.GetString("userID")
	if uid != req.ID {
		response.Errors(c, http.StatusForbidden, response.Msg("cannot update another user"))
		return
	}
	adapter, ok := h.adapter(c)
	if !ok {
		return
	}
	u, err := adapter.UpdateUser(c.Request.Context(), req.ID, store.UpdatePatch{
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Username:  req.Username,
		Email:     req.Email,
	})
	if err != nil {
		h.storeError(c, err)
		return
	}
	// Keep the session projection in sync with the record.
	sess := session.Session{
		UserID:   u.ID,
		Email:    u.Email,
		Username: u.Username,
		Fullname: u.FullName(),
		SID:      sessionSID(c, h, u.ID),
	}
	if err := h.Sessions.Save(c.Request.Context(), sess, h.SessionTTL); err != nil {
		h.Logger.WithError(err).WithField("user_id", u.ID).Warn("session refresh failed")
	}
	h.respond(c, "updateUser", http.StatusOK, response.Envelope(map[string]any{"user": u.Public()}))
}

func sessionSID(c *gin.Context, h *UserHandler, userID string) string {
	if s, err := h.Sessions.Get(c.Request.Context(), userID); err == nil && s != nil {
		return s.SID
	}
	return ""
}

// DeleteUser handles DELETE deleteUser/:userId. The path id and the body id
// must match exactly; a mismatch is a client error distinct from not-found.
// Deleting a user also invalidates any session referencing it.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	var req deleteUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Errors(c, http.StatusBadRequest, validation.ToErrors(err)...)
		return
	}
	pathID := c.Param("userId")
	if req.UserID != pathID {
		response.Errors(c, http.StatusBadRequest, response.Field("user id in body does not match path", "userId", "body"))
		return
	}
	adapter, ok := h.adapter(c)
	if !ok {
		return
	}
	if err := adapter.DeleteUser(c.Request.Context(), pathID); err != nil {
		h.storeError(c, err)
		return
	}
	if err := h.Sessions.Delete(c.Request.Context(), pathID); err != nil {
		h.Logger.WithError(err).WithField("user_id", pathID).Warn("session invalidate failed")
	}
	if c.GetString("userID") == pathID {
		h.Cookies.Clear(c)
	}
	h.respond(c, "deleteUser", http.StatusOK, response.Envelope(map[string]any{"deleted": true, "id": pathID}))
}
