package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

func (r *InventoryGormRepository) GetStock(ctx context.Context, productID int64, size string) (int64, error) {
	var v model.ProductVariant
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND size = ?", productID, size).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, repo.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return v.Stock, nil
}

// 在庫が足りるときだけ減らす。
// 0件更新のときは「行が無い」のか「足りない」のかを区別して返す。
func (r *InventoryGormRepository) DecreaseStockIfEnough(ctx context.Context, productID int64, size string, qty int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.ProductVariant{}).
		Where("product_id = ? AND size = ? AND stock >= ?", productID, size, qty).
		Update("stock", gorm.Expr("stock - ?", qty))

	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	//行自体が無ければ ErrNotFound（変種削除済み→呼び出し側がスキップ）
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.ProductVariant{}).
		Where("product_id = ? AND size = ?", productID, size).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, repo.ErrNotFound
	}
	return false, nil
}

// 在庫戻し（キャンセル・返金）
func (r *InventoryGormRepository) IncreaseStock(ctx context.Context, productID int64, size string, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.ProductVariant{}).
		Where("product_id = ? AND size = ?", productID, size).
		Update("stock", gorm.Expr("stock + ?", qty))

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 管理者の在庫調整。負になる調整は適用しない。
func (r *InventoryGormRepository) AdjustStock(ctx context.Context, productID int64, size string, delta int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.ProductVariant{}).
		Where("product_id = ? AND size = ? AND stock + ? >= 0", productID, size, delta).
		Update("stock", gorm.Expr("stock + ?", delta))

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// 調整履歴作成
func (r *InventoryGormRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	return r.db.WithContext(ctx).Create(&adj).Error
}
