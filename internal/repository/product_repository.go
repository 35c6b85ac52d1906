package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 一意制約違反（同じ注文IDの二重作成など）
var ErrDuplicate = errors.New("duplicate")

// 商品の取得だけを約束。カタログのCRUDはこのコアの外。
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
	ListVariants(ctx context.Context, productID int64) ([]model.ProductVariant, error)
}
