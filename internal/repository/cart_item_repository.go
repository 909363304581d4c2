package repository

import (
	"context"

	"shoppingcart/internal/domain/model"
)

// カート明細の保存・取得。所有者(userID)で必ず絞る
type CartItemRepository interface {
	Create(ctx context.Context, item *model.CartItem) error

	// 無い or 他人の明細なら ErrNotFound
	FindOwned(ctx context.Context, itemID int64, userID int64) (model.CartItem, error)

	// id昇順でoffset/limit
	ListByUserID(ctx context.Context, userID int64, offset int, limit int) ([]model.CartItem, error)

	// name/price/quantityだけ更新する
	UpdateFields(ctx context.Context, item model.CartItem) error

	DeleteOwned(ctx context.Context, itemID int64, userID int64) error

	// 見つからなければ ok=false
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.CartItem, bool, error)
}
