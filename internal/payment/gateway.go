package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ゲートウェイに到達できない・タイムアウトなど。結果は不明なので呼び出し側はリトライできる。
var ErrUnavailable = errors.New("payment gateway unavailable")

// ゲートウェイが明示的に拒否した。ローカル状態は変更しない。
type RejectedError struct {
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment gateway rejected: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("payment gateway rejected: %s", e.Message)
}

// 購入者情報。ゲートウェイに渡すスナップショット。
type Buyer struct {
	ID      string
	Name    string
	Surname string
	Email   string
	GSM     string
	IP      string
	City    string
	Address string
}

type BasketItem struct {
	ID       string
	Name     string
	Category string
	//明細合計（単価×数量）
	Price decimal.Decimal
}

// チェックアウトセッション開始リクエスト。
// ConversationID と BasketID はどちらも注文ID（外部呼び出し前に採番したUUID）。
type CheckoutRequest struct {
	ConversationID string
	BasketID       string
	Price          decimal.Decimal
	PaidPrice      decimal.Decimal
	CallbackURL    string
	Buyer          Buyer
	ShippingName   string
	ShippingCity   string
	ShippingAddr   string
	Items          []BasketItem
}

type CheckoutSession struct {
	Token          string
	PaymentPageURL string
}

// コールバックtokenで取得した正式な決済結果。
// Succeededがfalseのときは ErrorMessage に表示用メッセージが入る。
type RetrieveResult struct {
	Succeeded    bool
	BasketID     string
	PaymentID    string
	PaidPrice    decimal.Decimal
	ErrorMessage string
}

// 外部決済ゲートウェイの薄いアダプタ。
// どの呼び出しもネットワークI/Oで、任意に遅延・失敗しうる。
// DBのロックを持ったまま呼んではいけない。
type Gateway interface {
	InitializeCheckoutForm(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	RetrieveCheckoutForm(ctx context.Context, token string) (RetrieveResult, error)
	//支払い全体の取り消し（返金）。確認できたときだけnil。
	CancelPayment(ctx context.Context, paymentID string, price decimal.Decimal, ip string) error
}
