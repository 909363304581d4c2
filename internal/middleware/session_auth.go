package middleware

import (
	"net/http"

	"shoppingcart/internal/session"

	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey         = "user_id"         // int64
	CtxSessionVersionKey = "session_version" // int
)

// セッションcookieを検証するミドルウェア。
// 無い・壊れている・期限切れは401
func SessionAuth(sessions *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(session.CookieName)
			if err != nil || cookie.Value == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			userID, sv, err := sessions.Parse(cookie.Value)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//contextへ保存
			c.Set(CtxUserIDKey, userID)
			c.Set(CtxSessionVersionKey, sv)

			return next(c)
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}
