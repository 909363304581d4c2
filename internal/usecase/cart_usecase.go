package usecase

import (
	"context"
	"errors"
	"math"
	"strings"

	"shoppingcart/internal/domain/model"
	repo "shoppingcart/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// pageSizeの上限
const MaxPageSize = 100

// 未認証（middlewareを通っていれば来ない）
var ErrNoUser = errors.New("user id is required")

const msgItemNotFound = "Cart item not found."

// 入力チェックの約束（実装は validator パッケージ）
type InputValidator interface {
	ValidateCartItem(in CartItemInput) []FieldViolation
	ValidateEmail(email string) bool
}

// CartUsecase は /api/cart/items の業務ロジックです。
// すべての操作はログインユーザーの明細だけに絞ります。
type CartUsecase struct {
	items     repo.CartItemRepository
	tx        repo.TransactionManager
	validator InputValidator
	clock     Clock
	log       *zap.Logger
}

func NewCartUsecase(
	items repo.CartItemRepository,
	tx repo.TransactionManager,
	validator InputValidator,
	clock Clock,
	log *zap.Logger,
) *CartUsecase {
	return &CartUsecase{
		items:     items,
		tx:        tx,
		validator: validator,
		clock:     clock,
		log:       log,
	}
}

// 作成・更新の入力
// 更新ではImage/IdempotencyKeyは使わない
type CartItemInput struct {
	Name           string
	Price          decimal.Decimal
	Quantity       int
	Image          []byte
	IdempotencyKey string
}

// List はページ単位で自分の明細を返す（範囲外は空）。
func (u *CartUsecase) List(ctx context.Context, userID int64, page int, pageSize int) (Result[[]model.CartItem], error) {
	if userID <= 0 {
		return Result[[]model.CartItem]{}, ErrNoUser
	}

	var violations []FieldViolation
	if page < 1 {
		violations = append(violations, FieldViolation{Field: "page", Message: "Page must be greater than 0."})
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		violations = append(violations, FieldViolation{Field: "pageSize", Message: "PageSize must be between 1 and 100."})
	}
	if len(violations) > 0 {
		return invalidInput[[]model.CartItem](violations), nil
	}

	//offsetがintを超えるページは必ず範囲外
	if page-1 > math.MaxInt/pageSize {
		return succeed([]model.CartItem{}, ""), nil
	}

	offset := (page - 1) * pageSize
	items, err := u.items.ListByUserID(ctx, userID, offset, pageSize)
	if err != nil {
		return Result[[]model.CartItem]{}, err
	}
	if items == nil {
		items = []model.CartItem{}
	}

	return succeed(items, ""), nil
}

// Get は自分の明細を1件返す。無い・他人のものは nil
func (u *CartUsecase) Get(ctx context.Context, userID int64, itemID int64) (*model.CartItem, error) {
	if userID <= 0 {
		return nil, ErrNoUser
	}
	if itemID <= 0 {
		return nil, nil
	}

	item, err := u.items.FindOwned(ctx, itemID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Create は明細を作成（所有者はログインユーザー）。
// IdempotencyKeyがあり既に作成済みなら、その明細を返す
func (u *CartUsecase) Create(ctx context.Context, userID int64, in CartItemInput) (Result[model.CartItem], error) {
	if userID <= 0 {
		return Result[model.CartItem]{}, ErrNoUser
	}

	if v := u.validator.ValidateCartItem(in); len(v) > 0 {
		return invalidInput[model.CartItem](v), nil
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		existing, found, err := u.items.FindByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return Result[model.CartItem]{}, err
		}
		if found {
			u.log.Debug("idempotent create replayed", zap.Int64("user_id", userID), zap.Int64("item_id", existing.ID))
			return succeed(existing, "Cart item already created."), nil
		}
	}

	item := model.CartItem{
		UserID:    userID,
		Name:      strings.TrimSpace(in.Name),
		Price:     in.Price.Round(2),
		Quantity:  in.Quantity,
		ImageData: in.Image,
	}
	if key != "" {
		item.IdempotencyKey = &key
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.CartItems().Create(ctx, &item); err != nil {
			return err
		}
		return r.AuditLogs().Create(ctx, cartItemAudit(u.clock.Now(), model.AuditActionCreateCartItem, userID, item.ID, "", snapshotJSON(item)))
	})
	if err != nil {
		// 同じキーの同時リクエスト。勝った方を返す（txは巻き戻っているので外で読む）
		if errors.Is(err, repo.ErrDuplicate) && key != "" {
			existing, found, findErr := u.items.FindByIdempotencyKey(ctx, userID, key)
			if findErr != nil {
				return Result[model.CartItem]{}, findErr
			}
			if found {
				return succeed(existing, "Cart item already created."), nil
			}
		}
		return Result[model.CartItem]{}, err
	}

	return succeed(item, "Cart item created."), nil
}

// Update は name/price/quantity を更新（所有チェック→入力チェック）。
func (u *CartUsecase) Update(ctx context.Context, userID int64, itemID int64, in CartItemInput) (Result[model.CartItem], error) {
	if userID <= 0 {
		return Result[model.CartItem]{}, ErrNoUser
	}
	if itemID <= 0 {
		return failWith[model.CartItem](KindNotFoundOrNotOwned, msgItemNotFound), nil
	}

	var res Result[model.CartItem]

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		item, err := r.CartItems().FindOwned(ctx, itemID, userID)
		if errors.Is(err, repo.ErrNotFound) {
			u.log.Debug("update on missing or foreign item", zap.Int64("user_id", userID), zap.Int64("item_id", itemID))
			res = failWith[model.CartItem](KindNotFoundOrNotOwned, msgItemNotFound)
			return nil
		}
		if err != nil {
			return err
		}

		if v := u.validator.ValidateCartItem(in); len(v) > 0 {
			res = invalidInput[model.CartItem](v)
			return nil
		}

		before := snapshotJSON(item)

		//id/user_idはそのまま
		item.Name = strings.TrimSpace(in.Name)
		item.Price = in.Price.Round(2)
		item.Quantity = in.Quantity

		if err := r.CartItems().UpdateFields(ctx, item); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				res = failWith[model.CartItem](KindNotFoundOrNotOwned, msgItemNotFound)
				return nil
			}
			return err
		}

		if err := r.AuditLogs().Create(ctx, cartItemAudit(u.clock.Now(), model.AuditActionUpdateCartItem, userID, item.ID, before, snapshotJSON(item))); err != nil {
			return err
		}

		res = succeed(item, "Cart item updated.")
		return nil
	})
	if err != nil {
		return Result[model.CartItem]{}, err
	}

	return res, nil
}

// Delete は自分の明細を削除
func (u *CartUsecase) Delete(ctx context.Context, userID int64, itemID int64) (Result[struct{}], error) {
	if userID <= 0 {
		return Result[struct{}]{}, ErrNoUser
	}
	if itemID <= 0 {
		return failWith[struct{}](KindNotFoundOrNotOwned, msgItemNotFound), nil
	}

	var res Result[struct{}]

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		item, err := r.CartItems().FindOwned(ctx, itemID, userID)
		if err == nil {
			err = r.CartItems().DeleteOwned(ctx, itemID, userID)
		}
		if errors.Is(err, repo.ErrNotFound) {
			u.log.Debug("delete on missing or foreign item", zap.Int64("user_id", userID), zap.Int64("item_id", itemID))
			res = failWith[struct{}](KindNotFoundOrNotOwned, msgItemNotFound)
			return nil
		}
		if err != nil {
			return err
		}

		if err := r.AuditLogs().Create(ctx, cartItemAudit(u.clock.Now(), model.AuditActionDeleteCartItem, userID, itemID, snapshotJSON(item), "")); err != nil {
			return err
		}

		res = succeed(struct{}{}, "Cart item deleted.")
		return nil
	})
	if err != nil {
		return Result[struct{}]{}, err
	}

	return res, nil
}
