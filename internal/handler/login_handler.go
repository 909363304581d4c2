package handler

import (
	"net/http"

	"shoppingcart/internal/session"
	"shoppingcart/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// /api/login のHTTP
type LoginHandler struct {
	flow     *usecase.LoginFlow
	sessions *session.Manager
	log      *zap.Logger
}

// DIコンストラクタ
func NewLoginHandler(flow *usecase.LoginFlow, sessions *session.Manager, log *zap.Logger) *LoginHandler {
	return &LoginHandler{flow: flow, sessions: sessions, log: log}
}

// logoutだけセッション必須
func (h *LoginHandler) RegisterRoutes(g *echo.Group, requireSession ...echo.MiddlewareFunc) {
	g.GET("/login", h.login)
	g.GET("/signin-google", h.signInGoogle)
	g.GET("/logout", h.logout, requireSession...)
}

// Googleの同意画面へredirect
func (h *LoginHandler) login(c echo.Context) error {
	ch := h.flow.Begin()
	h.sessions.SetStateCookie(c.Response(), ch.State)
	return c.Redirect(http.StatusFound, ch.RedirectURL)
}

// Googleからのcallback。成功したときだけセッションcookieを発行
func (h *LoginHandler) signInGoogle(c echo.Context) error {
	expected := ""
	if ck, err := c.Cookie(session.StateCookieName); err == nil {
		expected = ck.Value
	}
	//stateは1回限り
	h.sessions.ClearStateCookie(c.Response())

	res, err := h.flow.Callback(c.Request().Context(), usecase.CallbackInput{
		State:         c.QueryParam("state"),
		ExpectedState: expected,
		Code:          c.QueryParam("code"),
		ProviderError: c.QueryParam("error"),
	})
	if err != nil {
		return writeUnexpected(c, h.log, "SignInGoogle", err)
	}
	if !res.Success {
		h.log.Warn("external login failed", zap.String("kind", string(res.Kind)), zap.String("message", res.Message))
		return writeFailure(c, res, http.StatusBadRequest)
	}

	user := res.Data.User
	token, expiresAt, err := h.sessions.Issue(user.ID, user.SessionVersion)
	if err != nil {
		return writeUnexpected(c, h.log, "SignInGoogle", err)
	}
	h.sessions.SetSessionCookie(c.Response(), token, expiresAt)

	h.log.Info("user logged in", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return c.String(http.StatusOK, res.Message)
}

func (h *LoginHandler) logout(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	res, err := h.flow.Logout(c.Request().Context(), userID)
	if err != nil {
		return writeUnexpected(c, h.log, "Logout", err)
	}

	h.sessions.ClearSessionCookie(c.Response())
	h.log.Info("user logged out", zap.Int64("user_id", userID))
	return c.String(http.StatusOK, res.Message)
}
