package handler

import (
	"shoppingcart/internal/middleware"

	"github.com/labstack/echo/v4"
)

//middleware.SessionAuth が c.Set("user_id", int64) した値を取り出す

func getUserIDFromContext(c echo.Context) (int64, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}
