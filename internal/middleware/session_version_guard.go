package middleware

import (
	"net/http"

	"shoppingcart/internal/repository"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// cookieのsvとDBのsession_versionが一致するか確認。
// ログアウト済みのcookieはここで弾く
func SessionVersionGuard(userRepo repository.UserRepository, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//SessionAuthが入れたuser_id を取得する
			userID, ok := c.Get(CtxUserIDKey).(int64)
			if !ok || userID <= 0 {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			sv, ok := c.Get(CtxSessionVersionKey).(int)
			if !ok || sv < 0 {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//DBから最新のuserを取得する
			user, err := userRepo.FindByID(c.Request().Context(), userID)
			if err != nil {
				log.Error("session guard: load user", zap.Int64("user_id", userID), zap.Error(err))
				return c.JSON(http.StatusInternalServerError, errorJSON("internal server error"))
			}
			if user == nil || user.SessionVersion != sv {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			return next(c)
		}
	}
}
