package model

import "time"

// Googleログインで作られるユーザー
// emailは識別キーなので作成後は変えない
type User struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Username string `gorm:"type:varchar(255);not null" json:"username"`
	Email    string `gorm:"type:varchar(320);uniqueIndex;not null" json:"email"`

	//Googleのsub（外部ID）
	GoogleSubject *string `gorm:"type:varchar(255);uniqueIndex" json:"-"`

	//ログアウトで+1。cookieのsvと一致しないセッションは無効
	SessionVersion int `gorm:"not null;default:0" json:"-"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`

	CartItems []CartItem `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
