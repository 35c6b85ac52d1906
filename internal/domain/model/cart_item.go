package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// カートの明細。
// 追加時点の価格を必ず保存。サイズ展開のない商品は size=''。
type CartItem struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID            int64           `gorm:"not null;index" json:"cart_id"`
	ProductID         int64           `gorm:"not null;index" json:"product_id"`
	Size              string          `gorm:"type:varchar(20);not null;default:''" json:"size"`
	Quantity          int64           `gorm:"not null" json:"quantity"`
	UnitPriceSnapshot decimal.Decimal `gorm:"type:numeric(12,2);not null;column:unit_price_snapshot" json:"unit_price_snapshot"`
	CreatedAt         time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
