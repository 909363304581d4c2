package repository

import (
	"context"
	"errors"

	"shoppingcart/internal/domain/model"
)

// ユーザーが見つかりませんを統一
var ErrUserNotFound = errors.New("user not found")

// 保存・取得を約束
// Find系は見つからない場合 (nil, nil) を返す
type UserRepository interface {
	//新規ユーザー作成
	Create(ctx context.Context, user *model.User) error
	// IDからユーザーを1件取得する。
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	//メールからユーザーを一件取得する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	//Googleのsubjectからユーザーを1件取得する。
	FindByGoogleSubject(ctx context.Context, subject string) (*model.User, error)
	// ユーザー名・最終ログイン・subjectの紐付けを更新
	Update(ctx context.Context, user *model.User) error
	//セッションのバージョンを＋１（ログアウト）
	IncrementSessionVersion(ctx context.Context, userID int64) error
}
