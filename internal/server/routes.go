package server

import (
	"net/http"

	"shoppingcart/internal/handler"
	appmw "shoppingcart/internal/middleware"
	"shoppingcart/internal/repository"
	"shoppingcart/internal/session"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ルート登録に必要な部品
type Routes struct {
	Cart     *handler.CartHandler
	Login    *handler.LoginHandler
	Sessions *session.Manager
	Users    repository.UserRepository
	Log      *zap.Logger
}

func RegisterRoutes(e *echo.Echo, r Routes) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	//セッション必須
	requireSession := []echo.MiddlewareFunc{
		appmw.SessionAuth(r.Sessions),
		appmw.SessionVersionGuard(r.Users, r.Log),
	}

	api := e.Group("/api")
	r.Cart.RegisterRoutes(api.Group("/cart", requireSession...))
	r.Login.RegisterRoutes(api.Group("/login"), requireSession...)
}
