package handler

import (
	"net/http"

	"shoppingcart/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error  string   `json:"error"`
	Kind   string   `json:"kind,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

// ドメイン失敗をHTTPに変換。
// NotFoundOrNotOwnedだけは呼び出し側でステータスを決める
func writeFailure[T any](c echo.Context, res usecase.Result[T], notOwnedStatus int) error {
	status := http.StatusBadRequest
	if res.Kind == usecase.KindNotFoundOrNotOwned {
		status = notOwnedStatus
	}
	return c.JSON(status, ErrorResponse{
		Error:  res.Message,
		Kind:   string(res.Kind),
		Fields: res.Fields,
	})
}

// 想定外のエラー。詳細はログだけに出す
func writeUnexpected(c echo.Context, log *zap.Logger, op string, err error) error {
	log.Error("unexpected error",
		zap.String("op", op),
		zap.String("uri", c.Request().RequestURI),
		zap.Error(err),
	)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Kind: string(usecase.KindValidation)})
}
