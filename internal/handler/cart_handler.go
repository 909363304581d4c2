package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"shoppingcart/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultPage     = 1
	defaultPageSize = 10

	headerIdempotencyKey = "Idempotency-Key"
	imageFormField       = "image"
)

// /api/cart のHTTP
type CartHandler struct {
	uc            *usecase.CartUsecase
	maxImageBytes int64
	log           *zap.Logger
}

// DI
func NewCartHandler(uc *usecase.CartUsecase, maxImageBytes int64, log *zap.Logger) *CartHandler {
	return &CartHandler{uc: uc, maxImageBytes: maxImageBytes, log: log}
}

// 作成・更新のリクエストボディ（JSON）
// image_dataはbase64
type CartItemRequest struct {
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	ImageData []byte          `json:"image_data"`
}

// /items, /items/:itemId を登録（groupにはセッション必須のmiddlewareが付いている）
func (h *CartHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/items", h.listItems)
	g.GET("/items/:itemId", h.getItem)
	g.POST("/items", h.createItem)
	g.PUT("/items/:itemId", h.updateItem)
	g.DELETE("/items/:itemId", h.deleteItem)
}

func (h *CartHandler) listItems(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	page, err := queryInt(c, "page", defaultPage)
	if err != nil {
		return badRequest(c, "invalid page")
	}
	pageSize, err := queryInt(c, "pageSize", defaultPageSize)
	if err != nil {
		return badRequest(c, "invalid pageSize")
	}

	res, err := h.uc.List(c.Request().Context(), userID, page, pageSize)
	if err != nil {
		return writeUnexpected(c, h.log, "ListCartItems", err)
	}
	if !res.Success {
		return writeFailure(c, res, http.StatusBadRequest)
	}

	h.log.Info("cart items listed", zap.Int64("user_id", userID), zap.Int("page", page), zap.Int("count", len(res.Data)))
	return c.JSON(http.StatusOK, res.Data)
}

func (h *CartHandler) getItem(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	itemID, err := strconv.ParseInt(c.Param("itemId"), 10, 64)
	if err != nil {
		return badRequest(c, "invalid id")
	}

	item, err := h.uc.Get(c.Request().Context(), userID, itemID)
	if err != nil {
		return writeUnexpected(c, h.log, "GetCartItem", err)
	}
	if item == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "Cart item not found.", Kind: string(usecase.KindNotFoundOrNotOwned)})
	}

	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) createItem(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	in, msg := h.readItemInput(c, true)
	if msg != "" {
		h.log.Warn("create cart item: bad request", zap.Int64("user_id", userID), zap.String("reason", msg))
		return badRequest(c, msg)
	}
	in.IdempotencyKey = c.Request().Header.Get(headerIdempotencyKey)

	res, err := h.uc.Create(c.Request().Context(), userID, in)
	if err != nil {
		return writeUnexpected(c, h.log, "CreateCartItem", err)
	}
	if !res.Success {
		h.log.Warn("create cart item failed", zap.Int64("user_id", userID), zap.String("message", res.Message))
		return writeFailure(c, res, http.StatusBadRequest)
	}

	h.log.Info("cart item created", zap.Int64("user_id", userID), zap.Int64("item_id", res.Data.ID))
	c.Response().Header().Set(echo.HeaderLocation, fmt.Sprintf("/api/cart/items/%d", res.Data.ID))
	return c.JSON(http.StatusCreated, res.Data)
}

func (h *CartHandler) updateItem(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	itemID, err := strconv.ParseInt(c.Param("itemId"), 10, 64)
	if err != nil {
		return badRequest(c, "invalid id")
	}

	in, msg := h.readItemInput(c, false)
	if msg != "" {
		h.log.Warn("update cart item: bad request", zap.Int64("user_id", userID), zap.String("reason", msg))
		return badRequest(c, msg)
	}

	res, err := h.uc.Update(c.Request().Context(), userID, itemID, in)
	if err != nil {
		return writeUnexpected(c, h.log, "UpdateCartItem", err)
	}
	if !res.Success {
		h.log.Warn("update cart item failed", zap.Int64("user_id", userID), zap.Int64("item_id", itemID), zap.String("message", res.Message))
		return writeFailure(c, res, http.StatusBadRequest)
	}

	h.log.Info("cart item updated", zap.Int64("user_id", userID), zap.Int64("item_id", itemID))
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHandler) deleteItem(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	itemID, err := strconv.ParseInt(c.Param("itemId"), 10, 64)
	if err != nil {
		return badRequest(c, "invalid id")
	}

	res, err := h.uc.Delete(c.Request().Context(), userID, itemID)
	if err != nil {
		return writeUnexpected(c, h.log, "DeleteCartItem", err)
	}
	if !res.Success {
		h.log.Warn("delete cart item failed", zap.Int64("user_id", userID), zap.Int64("item_id", itemID), zap.String("message", res.Message))
		return writeFailure(c, res, http.StatusBadRequest)
	}

	h.log.Info("cart item deleted", zap.Int64("user_id", userID), zap.Int64("item_id", itemID))
	return c.NoContent(http.StatusNoContent)
}

// JSON or multipart を読む。失敗したら理由を返す
func (h *CartHandler) readItemInput(c echo.Context, allowImage bool) (usecase.CartItemInput, string) {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	if allowImage && strings.HasPrefix(ct, echo.MIMEMultipartForm) {
		return h.readMultipart(c)
	}

	var req CartItemRequest
	if err := c.Bind(&req); err != nil {
		return usecase.CartItemInput{}, "invalid body"
	}
	if int64(len(req.ImageData)) > h.maxImageBytes {
		return usecase.CartItemInput{}, "image too large"
	}

	in := usecase.CartItemInput{
		Name:     req.Name,
		Price:    req.Price,
		Quantity: req.Quantity,
	}
	if allowImage && len(req.ImageData) > 0 {
		in.Image = req.ImageData
	}
	return in, ""
}

// name/price/quantity のフォーム値と image ファイル
func (h *CartHandler) readMultipart(c echo.Context) (usecase.CartItemInput, string) {
	in := usecase.CartItemInput{Name: c.FormValue("name")}

	//空は0扱いにしてvalidatorに任せる
	if v := strings.TrimSpace(c.FormValue("price")); v != "" {
		price, err := decimal.NewFromString(v)
		if err != nil {
			return usecase.CartItemInput{}, "invalid price"
		}
		in.Price = price
	}
	if v := strings.TrimSpace(c.FormValue("quantity")); v != "" {
		qty, err := strconv.Atoi(v)
		if err != nil {
			return usecase.CartItemInput{}, "invalid quantity"
		}
		in.Quantity = qty
	}

	fh, err := c.FormFile(imageFormField)
	if errors.Is(err, http.ErrMissingFile) {
		return in, ""
	}
	if err != nil {
		return usecase.CartItemInput{}, "invalid image"
	}
	if fh.Size > h.maxImageBytes {
		return usecase.CartItemInput{}, "image too large"
	}

	f, err := fh.Open()
	if err != nil {
		return usecase.CartItemInput{}, "invalid image"
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, h.maxImageBytes+1))
	if err != nil {
		return usecase.CartItemInput{}, "invalid image"
	}
	if int64(len(data)) > h.maxImageBytes {
		return usecase.CartItemInput{}, "image too large"
	}
	if len(data) > 0 {
		in.Image = data
	}
	return in, ""
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
