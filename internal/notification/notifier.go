package notification

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
)

type SummaryLine struct {
	Name     string
	Size     string
	Quantity int64
}

// 注文確認通知の内容
type OrderSummary struct {
	OrderID    string
	TotalPrice decimal.Decimal
	Lines      []SummaryLine
}

// 通知コラボレータ。送信の失敗は呼び出し側の処理を失敗させない（ログだけ残す）。
type Sender interface {
	SendOrderConfirmation(ctx context.Context, recipient string, summary OrderSummary) error
}

// 実際のメール配送は外部の通知サービスに委ねる。
// このプロセスからは構造化ログでイベントを出すだけ。
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendOrderConfirmation(ctx context.Context, recipient string, summary OrderSummary) error {
	s.log.InfoContext(ctx, "order confirmation queued",
		"recipient", recipient,
		"order_id", summary.OrderID,
		"total_price", summary.TotalPrice.StringFixed(2),
		"lines", len(summary.Lines),
	)
	return nil
}
