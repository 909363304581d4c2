package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// カートの明細
// UserIDは作成時に決まり、以後変わらない
type CartItem struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64           `gorm:"not null;index;uniqueIndex:idx_cart_items_user_idem,priority:1" json:"user_id"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	ImageData []byte          `gorm:"type:bytea" json:"image_data,omitempty"`

	//同じキーの再送は同じ明細を返す
	IdempotencyKey *string `gorm:"type:varchar(255);uniqueIndex:idx_cart_items_user_idem,priority:2" json:"-"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
