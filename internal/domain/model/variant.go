package model

import "time"

// 在庫カウンター。(product_id, size) ごとに1行。
// サイズ展開のない商品は size='' の1行だけを持つ。
// Stockは0未満にならない（減算は必ず同一トランザクション内の条件付きUPDATEで行う）。
type ProductVariant struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64     `gorm:"not null;uniqueIndex:idx_product_size" json:"product_id"`
	Size      string    `gorm:"type:varchar(20);not null;default:'';uniqueIndex:idx_product_size" json:"size"`
	Stock     int64     `gorm:"not null" json:"stock"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
