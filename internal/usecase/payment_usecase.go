package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"app/internal/domain/model"
	"app/internal/notification"
	"app/internal/payment"
	repo "app/internal/repository"
)

// コールバックの照合。
// コールバックbodyの金額やステータスは信用しない。tokenだけを受け取り、
// 正式な結果は必ずサーバー間でゲートウェイから取り直す。
type PaymentUsecase struct {
	tx       repo.TransactionManager
	users    repo.UserRepository
	gateway  payment.Gateway
	notifier notification.Sender
	log      *slog.Logger
}

func NewPaymentUsecase(
	tx repo.TransactionManager,
	users repo.UserRepository,
	gateway payment.Gateway,
	notifier notification.Sender,
	log *slog.Logger,
) *PaymentUsecase {
	return &PaymentUsecase{
		tx:       tx,
		users:    users,
		gateway:  gateway,
		notifier: notifier,
		log:      log,
	}
}

type ReconcileOutput struct {
	OrderID string `json:"order_id"`
	Paid    bool   `json:"paid"`
	//失敗時の表示用メッセージ（ゲートウェイ由来）
	ErrorMessage string `json:"error_message,omitempty"`
}

func (u *PaymentUsecase) ReconcileCallback(ctx context.Context, token string) (ReconcileOutput, error) {
	if token == "" {
		return ReconcileOutput{}, newValidationError("token required")
	}

	//正式な結果の取得。到達できなければリトライ可能エラー（注文はPENDINGのまま）
	result, err := u.gateway.RetrieveCheckoutForm(ctx, token)
	if err != nil {
		return ReconcileOutput{}, mapGatewayError(err)
	}

	if !result.Succeeded {
		//失敗時は自動キャンセルしない。PENDINGのまま残す
		u.log.InfoContext(ctx, "payment not successful", "order_id", result.BasketID, "message", result.ErrorMessage)
		return ReconcileOutput{
			OrderID:      result.BasketID,
			Paid:         false,
			ErrorMessage: result.ErrorMessage,
		}, nil
	}

	if result.BasketID == "" {
		return ReconcileOutput{}, newConsistencyError("gateway result missing basket id")
	}

	var order model.Order
	var alreadyPaid bool

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, result.BasketID)
		if errors.Is(err, repo.ErrNotFound) {
			//成功した決済に対応する注文が無い＝データ不整合
			return newNotFoundError("order not found")
		}
		if err != nil {
			return newInternalError("db error")
		}

		//冪等ガード。2回目のコールバックは既存のPAID注文をそのまま返す
		if o.Status == model.OrderStatusPaid {
			order = o
			alreadyPaid = true
			return nil
		}

		//PENDINGのときだけPAIDへ。同時実行の2本目はここで0件になる
		ok, err := r.Orders().MarkPaid(ctx, o.ID, result.PaymentID)
		if err != nil {
			return newInternalError("db error")
		}
		if !ok {
			o2, err := r.Orders().FindByID(ctx, o.ID)
			if err != nil {
				return newInternalError("db error")
			}
			if o2.Status == model.OrderStatusPaid {
				order = o2
				alreadyPaid = true
				return nil
			}
			return newStateError("order is " + string(o2.Status))
		}

		//在庫の引き落とし。注文単位で全部成功か全部なし
		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return newInternalError("db error")
		}
		for _, it := range items {
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, it.ProductID, it.Size, it.Quantity)
			if errors.Is(err, repo.ErrNotFound) {
				//注文後に変種が消された明細はスキップ（致命ではない）
				u.log.WarnContext(ctx, "variant missing at debit, skipped",
					"order_id", o.ID, "product_id", it.ProductID, "size", it.Size)
				continue
			}
			if err != nil {
				return newInternalError("db error")
			}
			if !ok {
				//不足があれば注文全体を巻き戻す
				return NewHTTPError(http.StatusConflict, CodeOutOfStock, "out of stock")
			}
		}

		//会員のカートを空にする（ゲストはカートを持たない）
		if o.UserID != nil {
			cart, err := r.Carts().FindActiveByUserID(ctx, *o.UserID)
			if err == nil {
				if err := r.Carts().UpdateStatus(ctx, cart.ID, model.CartStatusCheckedOut); err != nil {
					return newInternalError("db error")
				}
				if err := r.Carts().Clear(ctx, cart.ID); err != nil {
					return newInternalError("db error")
				}
			} else if !errors.Is(err, repo.ErrNotFound) {
				return newInternalError("db error")
			}
		}

		o.Status = model.OrderStatusPaid
		o.PaymentID = &result.PaymentID
		order = o
		return nil
	})
	if err != nil {
		return ReconcileOutput{}, err
	}

	//通知はコミット後・非同期。失敗しても照合は失敗させない
	if !alreadyPaid {
		u.notifyConfirmation(order)
	}

	return ReconcileOutput{OrderID: order.ID, Paid: true}, nil
}

func (u *PaymentUsecase) notifyConfirmation(order model.Order) {
	go func() {
		ctx := context.Background()

		recipient := order.GuestEmail
		if order.UserID != nil {
			user, err := u.users.FindByID(ctx, *order.UserID)
			if err != nil {
				u.log.ErrorContext(ctx, "confirmation recipient lookup failed",
					"order_id", order.ID, "error", err)
				return
			}
			recipient = user.Email
		}

		items, err := u.listOrderItems(ctx, order.ID)
		if err != nil {
			u.log.ErrorContext(ctx, "confirmation items lookup failed",
				"order_id", order.ID, "error", err)
			return
		}

		lines := make([]notification.SummaryLine, 0, len(items))
		for _, it := range items {
			lines = append(lines, notification.SummaryLine{
				Name:     it.ProductNameSnapshot,
				Size:     it.Size,
				Quantity: it.Quantity,
			})
		}

		if err := u.notifier.SendOrderConfirmation(ctx, recipient, notification.OrderSummary{
			OrderID:    order.ID,
			TotalPrice: order.TotalPrice,
			Lines:      lines,
		}); err != nil {
			u.log.ErrorContext(ctx, "order confirmation failed", "order_id", order.ID, "error", err)
		}
	}()
}

func (u *PaymentUsecase) listOrderItems(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	var items []model.OrderItem
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		items, err = r.OrderItems().ListByOrderID(ctx, orderID)
		return err
	})
	return items, err
}
