package repository

import (
	"context"
	"errors"

	"shoppingcart/internal/domain/model"
	repo "shoppingcart/internal/repository"

	"gorm.io/gorm"
)

type CartItemGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartItemGormRepository(db *gorm.DB) *CartItemGormRepository {
	return &CartItemGormRepository{db: db}
}

var _ repo.CartItemRepository = (*CartItemGormRepository)(nil)

// 明細を作成（画像も同じINSERTで保存）
func (r *CartItemGormRepository) Create(ctx context.Context, item *model.CartItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		if isUniqueViolation(err) {
			return repo.ErrDuplicate
		}
		return err
	}
	return nil
}

// userの明細を1件取得
func (r *CartItemGormRepository) FindOwned(ctx context.Context, itemID int64, userID int64) (model.CartItem, error) {
	var item model.CartItem

	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", itemID, userID).
		First(&item).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CartItem{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartItem{}, err
	}
	return item, nil
}

// userの明細を一覧取得（id昇順）
func (r *CartItemGormRepository) ListByUserID(ctx context.Context, userID int64, offset int, limit int) ([]model.CartItem, error) {
	var items []model.CartItem

	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id asc").
		Offset(offset).
		Limit(limit).
		Find(&items).Error; err != nil {
		return []model.CartItem{}, err
	}

	return items, nil
}

// name/price/quantityだけ更新。id/user_idは触らない
func (r *CartItemGormRepository) UpdateFields(ctx context.Context, item model.CartItem) error {
	res := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ? AND user_id = ?", item.ID, item.UserID).
		Updates(map[string]interface{}{
			"name":     item.Name,
			"price":    item.Price,
			"quantity": item.Quantity,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細を削除
func (r *CartItemGormRepository) DeleteOwned(ctx context.Context, itemID int64, userID int64) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", itemID, userID).
		Delete(&model.CartItem{})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 検索（同じキーなら同じ明細を返す）
func (r *CartItemGormRepository) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.CartItem, bool, error) {
	var item model.CartItem

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&item).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CartItem{}, false, nil
	}
	if err != nil {
		return model.CartItem{}, false, err
	}
	return item, true, nil
}
