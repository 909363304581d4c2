package model

import "time"

// 何をしたか
type AuditAction string

const (
	//外部ログインに成功した
	AuditActionLogin          AuditAction = "LOGIN"
	AuditActionCreateCartItem AuditAction = "CREATE_CART_ITEM"
	AuditActionUpdateCartItem AuditAction = "UPDATE_CART_ITEM"
	AuditActionDeleteCartItem AuditAction = "DELETE_CART_ITEM"
)

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceCartItem AuditResourceType = "cart_item"
	AuditResourceUser     AuditResourceType = "user"
)

// 監査ログ。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
// 変更と同じトランザクションで書く
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作したユーザーのID
	ActorUserID int64 `gorm:"not null;index" json:"actor_user_id"`

	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   int64             `gorm:"not null;index" json:"resource_id"`

	//JSON文字列。作成時のBefore・削除時のAfterは空
	BeforeJSON string `gorm:"type:text" json:"before_json"`
	AfterJSON  string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
