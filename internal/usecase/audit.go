package usecase

import (
	"encoding/json"
	"time"

	"shoppingcart/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 監査ログに残す明細の値（画像は入れない）
type cartItemSnapshot struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

func snapshotJSON(item model.CartItem) string {
	b, err := json.Marshal(cartItemSnapshot{
		Name:     item.Name,
		Price:    item.Price,
		Quantity: item.Quantity,
	})
	if err != nil {
		return ""
	}
	return string(b)
}

func cartItemAudit(at time.Time, action model.AuditAction, userID int64, itemID int64, before string, after string) model.AuditLog {
	return model.AuditLog{
		ActorUserID:  userID,
		Action:       action,
		ResourceType: model.AuditResourceCartItem,
		ResourceID:   itemID,
		BeforeJSON:   before,
		AfterJSON:    after,
		CreatedAt:    at,
	}
}
