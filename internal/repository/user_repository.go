package repository

import (
	"context"

	"app/internal/domain/model"
)

// 会員の参照だけ。登録や認証は外部の認証サービスが担う。
type UserRepository interface {
	FindByID(ctx context.Context, userID int64) (model.User, error)
}
