package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
)

// 許可される遷移だけを表にする。文字列比較での分岐はしない。
var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:   {OrderStatusPaid: true, OrderStatusCancelled: true},
	OrderStatusPaid:      {OrderStatusShipped: true, OrderStatusCancelled: true, OrderStatusRefunded: true},
	OrderStatusShipped:   {OrderStatusDelivered: true},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
	OrderStatusRefunded:  {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// 終端ステータスか（これ以上遷移できない）
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusRefunded
}

// 出荷後か（この後のキャンセルは不可）
func (s OrderStatus) IsShippedOrLater() bool {
	return s == OrderStatusShipped || s == OrderStatusDelivered
}

func IsValidOrderStatus(s string) bool {
	_, ok := validNext[OrderStatus(s)]
	return ok
}

// 注文。IDはUUIDで、決済ゲートウェイのbasketId（冪等キー）を兼ねる。
// 会員注文は UserID、ゲスト注文は GuestEmail を持つ（排他）。
// 住所は注文時点のコピー。後から住所を編集しても注文には影響しない。
type Order struct {
	ID     string `gorm:"type:uuid;primaryKey" json:"id"`
	UserID *int64 `gorm:"index" json:"user_id,omitempty"`

	//連絡先スナップショット（会員注文でも配送先として保存する）
	ContactName string `gorm:"type:varchar(255);not null" json:"contact_name"`
	GuestEmail  string `gorm:"type:varchar(255);index" json:"guest_email,omitempty"`
	City        string `gorm:"type:varchar(255);not null" json:"city"`
	District    string `gorm:"type:varchar(255);not null" json:"district"`
	Phone       string `gorm:"type:varchar(30);not null" json:"phone"`
	Address     string `gorm:"type:text;not null" json:"address"`

	Status     OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	TotalPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`

	//ゲートウェイ側の識別子。PaymentIDは決済確定まで未設定。
	PaymentID    *string `gorm:"type:varchar(255)" json:"payment_id,omitempty"`
	SessionToken string  `gorm:"type:varchar(255)" json:"-"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (o Order) IsGuest() bool {
	return o.UserID == nil
}
