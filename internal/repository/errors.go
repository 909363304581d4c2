package repository

import "errors"

var (
	// 存在しない・他人のものを区別しない
	ErrNotFound = errors.New("not found")

	// unique制約違反（email / google subject / idempotency key）
	ErrDuplicate = errors.New("duplicate")
)
