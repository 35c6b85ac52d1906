package repository

import (
	"context"

	"app/internal/domain/model"
)

// 在庫台帳。(product_id, size) 単位のカウンターを相対増減だけで動かす。
// 絶対値のSETはしない（同時チェックアウトでの取りこぼし防止）。
type InventoryRepository interface {
	//現在の在庫数（表示用の事前チェックにのみ使う。減算の根拠にはしない）
	GetStock(ctx context.Context, productID int64, size string) (int64, error)

	//在庫が足りるときだけ減算。変種が存在しないときは ErrNotFound。
	DecreaseStockIfEnough(ctx context.Context, productID int64, size string, qty int64) (bool, error)

	//在庫戻し（キャンセル・返金）。変種が存在しないときは ErrNotFound。
	IncreaseStock(ctx context.Context, productID int64, size string, qty int64) error

	//管理者の在庫調整（相対増減）。結果が負になる調整は false。
	AdjustStock(ctx context.Context, productID int64, size string, delta int64) (bool, error)

	//調整履歴作成
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
