package repository

import (
	"context"
	"time"

	"app/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) error

	//PENDINGのときだけPAIDにして決済参照を保存する（RowsAffected==0 なら false）。
	//重複コールバックの二重確定をDB側で防ぐ。
	MarkPaid(ctx context.Context, orderID string, paymentID string) (bool, error)

	//fromのときだけtoへ遷移させる（RowsAffected==0 なら false）
	UpdateStatusFrom(ctx context.Context, orderID string, from, to model.OrderStatus) (bool, error)

	//チェックアウト後にゲートウェイのセッショントークンを保存する
	SetSessionToken(ctx context.Context, orderID string, token string) error

	//ゲスト照会用。guest_email か 会員emailの一致で引く
	FindByIDForEmail(ctx context.Context, orderID string, email string) (model.Order, error)

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
