package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	"app/internal/payment"
	repo "app/internal/repository"
)

// 管理者の注文操作。ステータス更新・返金・決済再同期。
type AdminOrderUsecase struct {
	tx         repo.TransactionManager
	gateway    payment.Gateway
	reconciler *PaymentUsecase
	log        *slog.Logger
}

func NewAdminOrderUsecase(
	tx repo.TransactionManager,
	gateway payment.Gateway,
	reconciler *PaymentUsecase,
	log *slog.Logger,
) *AdminOrderUsecase {
	return &AdminOrderUsecase{
		tx:         tx,
		gateway:    gateway,
		reconciler: reconciler,
		log:        log,
	}
}

type AdminOrderListInput struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

type AdminOrderListOutput struct {
	Orders []OrderOutput `json:"orders"`
	Total  int64         `json:"total"`
	Page   int           `json:"page"`
	Limit  int           `json:"limit"`
}

func (u *AdminOrderUsecase) List(ctx context.Context, in AdminOrderListInput) (AdminOrderListOutput, error) {
	if in.Page <= 0 {
		in.Page = 1
	}
	if in.Limit <= 0 || in.Limit > 100 {
		in.Limit = 20
	}
	if in.Status != "" && !model.IsValidOrderStatus(in.Status) {
		return AdminOrderListOutput{}, newValidationError("invalid status filter")
	}

	var out AdminOrderListOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, repo.AdminOrderListFilter{
			Page:   in.Page,
			Limit:  in.Limit,
			Status: in.Status,
			UserID: in.UserID,
			From:   in.From,
			To:     in.To,
		})
		if err != nil {
			return newInternalError("db error")
		}

		outs := make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return newInternalError("db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}

		out = AdminOrderListOutput{
			Orders: outs,
			Total:  total,
			Page:   in.Page,
			Limit:  in.Limit,
		}
		return nil
	})

	if err != nil {
		return AdminOrderListOutput{}, err
	}
	return out, nil
}

// ステータス更新。遷移表にある組み合わせだけ許す。
// CANCELLEDへの遷移で、元がPAIDのときだけ在庫を戻す。
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, adminUserID int64, orderID string, newStatus string) (OrderOutput, error) {
	if orderID == "" {
		return OrderOutput{}, newValidationError("invalid id")
	}
	if !model.IsValidOrderStatus(newStatus) {
		return OrderOutput{}, newValidationError("invalid status: " + newStatus)
	}
	to := model.OrderStatus(newStatus)

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return newNotFoundError("not found")
		}
		if err != nil {
			return newInternalError("db error")
		}

		from := o.Status
		if from == to {
			return newStateError("order already " + strings.ToLower(string(to)))
		}
		if !model.CanTransition(from, to) {
			return newStateError("cannot move " + string(from) + " to " + string(to))
		}
		if to == model.OrderStatusRefunded {
			//返金はゲートウェイの取消を伴うので専用の操作で行う
			return newStateError("use refund operation")
		}

		ok, err := r.Orders().UpdateStatusFrom(ctx, orderID, from, to)
		if err != nil {
			return newInternalError("db error")
		}
		if !ok {
			return newStateError("order state changed, retry")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return newInternalError("db error")
		}

		if to == model.OrderStatusCancelled && from == model.OrderStatusPaid {
			if err := creditItems(ctx, r, items); err != nil {
				return err
			}
		}

		if err := r.AuditLogs().Create(ctx, statusAuditLog(adminUserID, orderID, from, to)); err != nil {
			return newInternalError("db error")
		}

		o.Status = to
		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 返金。ゲートウェイの取消が確認できてからローカルをREFUNDEDにする。
// 取消成功後のコミット失敗は握りつぶさず整合性エラーで返す。
func (u *AdminOrderUsecase) RefundOrder(ctx context.Context, adminUserID int64, orderID string, clientIP string) (OrderOutput, error) {
	if orderID == "" {
		return OrderOutput{}, newValidationError("invalid id")
	}

	//事前チェック。ここで弾けばゲートウェイを呼ばずに済む
	var order model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return newNotFoundError("not found")
		}
		if err != nil {
			return newInternalError("db error")
		}
		order = o
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if order.Status != model.OrderStatusPaid {
		return OrderOutput{}, newStateError("only paid orders can be refunded")
	}
	if order.PaymentID == nil || *order.PaymentID == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, CodeMissingPaymentRef, "order has no payment reference")
	}

	//ゲートウェイの取消。DBロックの外で呼ぶ
	if err := u.gateway.CancelPayment(ctx, *order.PaymentID, order.TotalPrice, clientIP); err != nil {
		return OrderOutput{}, mapGatewayError(err)
	}

	var out OrderOutput

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().UpdateStatusFrom(ctx, orderID, model.OrderStatusPaid, model.OrderStatusRefunded)
		if err != nil {
			return err
		}
		if !ok {
			//取消は済んでいるのにPAIDではなかった
			o, ferr := r.Orders().FindByID(ctx, orderID)
			if ferr == nil && o.Status == model.OrderStatusRefunded {
				//並行する返金が先に通った。冪等扱い
				items, ierr := r.OrderItems().ListByOrderID(ctx, orderID)
				if ierr != nil {
					return newInternalError("db error")
				}
				out = toOrderOutput(o, items)
				return nil
			}
			return newConsistencyError("payment reversed but order was not PAID")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := creditItems(ctx, r, items); err != nil {
			return err
		}

		if err := r.AuditLogs().Create(ctx, statusAuditLog(adminUserID, orderID, model.OrderStatusPaid, model.OrderStatusRefunded)); err != nil {
			return err
		}

		order.Status = model.OrderStatusRefunded
		out = toOrderOutput(order, items)
		return nil
	})

	if err != nil {
		//金は返っているのにDBが追従できなかった。手動照合が必要
		u.log.ErrorContext(ctx, "refund committed at gateway but local update failed",
			"order_id", orderID, "payment_id", *order.PaymentID, "error", err)
		return OrderOutput{}, newConsistencyError("payment reversed but order update failed")
	}
	return out, nil
}

// 決済の再同期。保存済みのセッショントークンで通常のコールバック照合を流し直す。
// コールバックが届かなかった（ユーザーが閉じた等）注文の救済用。
func (u *AdminOrderUsecase) SyncPayment(ctx context.Context, orderID string) (ReconcileOutput, error) {
	if orderID == "" {
		return ReconcileOutput{}, newValidationError("invalid id")
	}

	var token string
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return newNotFoundError("not found")
		}
		if err != nil {
			return newInternalError("db error")
		}
		token = o.SessionToken
		return nil
	})
	if err != nil {
		return ReconcileOutput{}, err
	}

	if token == "" {
		return ReconcileOutput{}, newStateError("order has no checkout session to sync")
	}

	return u.reconciler.ReconcileCallback(ctx, token)
}

func statusAuditLog(adminUserID int64, orderID string, from, to model.OrderStatus) model.AuditLog {
	action := model.AuditActionUpdateOrderStatus
	if to == model.OrderStatusRefunded {
		action = model.AuditActionRefundOrder
	}
	before, _ := json.Marshal(map[string]string{"status": string(from)})
	after, _ := json.Marshal(map[string]string{"status": string(to)})
	return model.AuditLog{
		ActorUserID:  adminUserID,
		Action:       action,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   orderID,
		BeforeJSON:   string(before),
		AfterJSON:    string(after),
		CreatedAt:    time.Now(),
	}
}
