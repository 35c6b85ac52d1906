package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type OrderUsecase struct {
	tx repo.TransactionManager
}

func NewOrderUsecase(tx repo.TransactionManager) *OrderUsecase {
	return &OrderUsecase{tx: tx}
}

// 誰がキャンセルを要求しているか。
// 会員はUserID、ゲストは注文時のメールアドレス、管理者はAdmin。
type Requester struct {
	UserID     *int64
	GuestEmail string
	Admin      bool
}

type OrderItemOutput struct {
	ProductID int64           `json:"product_id"`
	Size      string          `json:"size,omitempty"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
}

type OrderOutput struct {
	ID          string            `json:"id"`
	UserID      *int64            `json:"user_id,omitempty"`
	ContactName string            `json:"contact_name"`
	Status      string            `json:"status"`
	TotalPrice  decimal.Decimal   `json:"total_price"`
	PaymentID   *string           `json:"payment_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Items       []OrderItemOutput `json:"items"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, newUnauthorizedError()
	}

	//ページングはまずは固定で取る
	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, 1, 50)
		if err != nil {
			return newInternalError("db error")
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return newInternalError("db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID string) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, newUnauthorizedError()
	}
	if orderID == "" {
		return OrderOutput{}, newValidationError("invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return newNotFoundError("not found")
		}
		if err != nil {
			return newInternalError("db error")
		}
		if o.UserID == nil || *o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return newNotFoundError("not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return newInternalError("db error")
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// ゲストの注文照会。注文IDとメールアドレスの両方が一致したときだけ返す
func (u *OrderUsecase) TrackOrder(ctx context.Context, orderID string, email string) (OrderOutput, error) {
	orderID = strings.TrimSpace(orderID)
	email = strings.TrimSpace(email)
	if orderID == "" || email == "" {
		return OrderOutput{}, newValidationError("order id and email required")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForEmail(ctx, orderID, email)
		if errors.Is(err, repo.ErrNotFound) {
			return newNotFoundError("not found")
		}
		if err != nil {
			return newInternalError("db error")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return newInternalError("db error")
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// キャンセル。PENDINGとPAIDからのみ。出荷後・終端は拒否。
// PAIDのときだけ在庫を戻す（PENDINGは一度も引き落としていない）。
func (u *OrderUsecase) CancelOrder(ctx context.Context, orderID string, req Requester) (OrderOutput, error) {
	if orderID == "" {
		return OrderOutput{}, newValidationError("invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return newNotFoundError("not found")
		}
		if err != nil {
			return newInternalError("db error")
		}

		if err := authorizeCancel(o, req); err != nil {
			return err
		}

		if o.Status.IsShippedOrLater() {
			return newStateError("order already shipped")
		}
		if o.Status.IsTerminal() {
			return newStateError("order already " + strings.ToLower(string(o.Status)))
		}

		from := o.Status
		ok, err := r.Orders().UpdateStatusFrom(ctx, orderID, from, model.OrderStatusCancelled)
		if err != nil {
			return newInternalError("db error")
		}
		if !ok {
			//直前に別の遷移が入った
			return newStateError("order state changed, retry")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return newInternalError("db error")
		}

		//PAIDだった注文だけ在庫を戻す
		if from == model.OrderStatusPaid {
			if err := creditItems(ctx, r, items); err != nil {
				return err
			}
		}

		o.Status = model.OrderStatusCancelled
		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func authorizeCancel(o model.Order, req Requester) error {
	if req.Admin {
		return nil
	}
	if req.UserID != nil {
		if o.UserID != nil && *o.UserID == *req.UserID {
			return nil
		}
		return newForbiddenError("not your order")
	}
	if req.GuestEmail != "" {
		if o.IsGuest() && strings.EqualFold(o.GuestEmail, strings.TrimSpace(req.GuestEmail)) {
			return nil
		}
		return newForbiddenError("order does not match")
	}
	return newUnauthorizedError()
}

// 在庫戻し。変種が消えている明細はスキップ
func creditItems(ctx context.Context, r repo.TxRepos, items []model.OrderItem) error {
	for _, it := range items {
		err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Size, it.Quantity)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return newInternalError("db error")
		}
	}
	return nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	return OrderOutput{
		ID:          o.ID,
		UserID:      o.UserID,
		ContactName: o.ContactName,
		Status:      string(o.Status),
		TotalPrice:  o.TotalPrice,
		PaymentID:   o.PaymentID,
		CreatedAt:   o.CreatedAt,
		Items: lo.Map(items, func(it model.OrderItem, _ int) OrderItemOutput {
			return OrderItemOutput{
				ProductID: it.ProductID,
				Size:      it.Size,
				Name:      it.ProductNameSnapshot,
				Price:     it.UnitPriceSnapshot,
				Quantity:  it.Quantity,
			}
		}),
	}
}
