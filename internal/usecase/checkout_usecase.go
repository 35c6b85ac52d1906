package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"app/internal/domain/model"
	"app/internal/payment"
	repo "app/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// チェックアウトの起点。
// PENDING注文をローカルに確定させてから、トランザクションの外でゲートウェイのセッションを開く。
// セッション開始に失敗してもPENDING注文は消さない（後で照会・キャンセルできるように残す）。
type CheckoutUsecase struct {
	tx          repo.TransactionManager
	users       repo.UserRepository
	gateway     payment.Gateway
	callbackURL string
	log         *slog.Logger
}

func NewCheckoutUsecase(
	tx repo.TransactionManager,
	users repo.UserRepository,
	gateway payment.Gateway,
	callbackURL string,
	log *slog.Logger,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		tx:          tx,
		users:       users,
		gateway:     gateway,
		callbackURL: callbackURL,
		log:         log,
	}
}

// 配送先。全項目必須。注文にコピーして保存する
type AddressInput struct {
	ContactName string
	City        string
	District    string
	Phone       string
	Address     string
}

// ゲストの明細指定。価格はクライアントから受け取らない（カタログから読み直す）
type CheckoutItemInput struct {
	ProductID int64
	Size      string
	Quantity  int64
}

type InitiateCheckoutInput struct {
	Address AddressInput
	//ゲストのみ必須
	GuestEmail string
	//ゲストのみ。会員はACTIVEカートから組み立てる
	Items []CheckoutItemInput
	//購入者のIP（ゲートウェイに渡す）
	ClientIP string
}

type InitiateCheckoutOutput struct {
	OrderID        string `json:"order_id"`
	Token          string `json:"token"`
	PaymentPageURL string `json:"payment_page_url"`
}

func (u *CheckoutUsecase) InitiateCheckout(ctx context.Context, userID *int64, in InitiateCheckoutInput) (InitiateCheckoutOutput, error) {
	if err := validateAddress(in.Address); err != nil {
		return InitiateCheckoutOutput{}, err
	}

	guestEmail := strings.TrimSpace(in.GuestEmail)
	if userID == nil {
		if guestEmail == "" {
			return InitiateCheckoutOutput{}, newValidationError("email required")
		}
		if len(in.Items) == 0 {
			return InitiateCheckoutOutput{}, newValidationError("cart empty")
		}
	}

	//注文ID＝ゲートウェイのbasketId。外部呼び出しの前に採番する
	orderID := uuid.NewString()

	var order model.Order
	var orderItems []model.OrderItem

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		if userID != nil {
			orderItems, err = u.buildItemsFromCart(ctx, r, *userID)
		} else {
			orderItems, err = u.buildItemsFromInput(ctx, r, in.Items)
		}
		if err != nil {
			return err
		}

		//合計は明細スナップショットから算出。以後再計算しない
		total := decimal.Zero
		for _, it := range orderItems {
			total = total.Add(it.Subtotal())
		}

		now := time.Now()
		order = model.Order{
			ID:          orderID,
			UserID:      userID,
			ContactName: strings.TrimSpace(in.Address.ContactName),
			GuestEmail:  guestEmail,
			City:        strings.TrimSpace(in.Address.City),
			District:    strings.TrimSpace(in.Address.District),
			Phone:       normalizePhone(in.Address.Phone),
			Address:     strings.TrimSpace(in.Address.Address),
			Status:      model.OrderStatusPending,
			TotalPrice:  total,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := r.Orders().Create(ctx, order); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return newStateError("duplicate order")
			}
			return newInternalError("db error")
		}
		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return newInternalError("db error")
		}
		return nil
	})
	if err != nil {
		return InitiateCheckoutOutput{}, err
	}

	//PENDING注文が永続化された後にだけ外部を呼ぶ
	session, err := u.openGatewaySession(ctx, order, orderItems, in.ClientIP)
	if err != nil {
		u.log.WarnContext(ctx, "checkout session open failed, pending order kept",
			"order_id", orderID, "error", err)
		return InitiateCheckoutOutput{}, err
	}

	//照会・再同期用にセッショントークンを残す（失敗しても決済は進む）
	if err := u.saveSessionToken(ctx, orderID, session.Token); err != nil {
		u.log.WarnContext(ctx, "session token save failed", "order_id", orderID, "error", err)
	}

	return InitiateCheckoutOutput{
		OrderID:        orderID,
		Token:          session.Token,
		PaymentPageURL: session.PaymentPageURL,
	}, nil
}

// 会員のACTIVEカートから明細を組み立てる。
// 単価はカートのスナップショットではなく現在のカタログ価格を取り直す。
func (u *CheckoutUsecase) buildItemsFromCart(ctx context.Context, r repo.TxRepos, userID int64) ([]model.OrderItem, error) {
	cart, err := r.Carts().FindActiveByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, newValidationError("cart empty")
	}
	if err != nil {
		return nil, newInternalError("db error")
	}

	cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
	if err != nil {
		return nil, newInternalError("db error")
	}
	if len(cartItems) == 0 {
		return nil, newValidationError("cart empty")
	}

	items := make([]model.OrderItem, 0, len(cartItems))
	now := time.Now()
	for _, ci := range cartItems {
		p, err := r.Products().FindByID(ctx, ci.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, newValidationError("invalid product")
		}
		if err != nil {
			return nil, newInternalError("db error")
		}
		if !p.IsActive {
			return nil, newValidationError("invalid product")
		}

		items = append(items, model.OrderItem{
			ProductID:           ci.ProductID,
			Size:                ci.Size,
			ProductNameSnapshot: p.Name,
			UnitPriceSnapshot:   p.Price,
			Quantity:            ci.Quantity,
			CreatedAt:           now,
		})
	}
	return items, nil
}

// ゲストの明細指定から組み立てる。価格・商品名は必ずカタログから読む
func (u *CheckoutUsecase) buildItemsFromInput(ctx context.Context, r repo.TxRepos, inputs []CheckoutItemInput) ([]model.OrderItem, error) {
	items := make([]model.OrderItem, 0, len(inputs))
	now := time.Now()
	for _, in := range inputs {
		if in.ProductID <= 0 {
			return nil, newValidationError("invalid product_id")
		}
		if in.Quantity < 1 {
			return nil, newValidationError("invalid quantity")
		}

		p, err := r.Products().FindByID(ctx, in.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, newValidationError("invalid product")
		}
		if err != nil {
			return nil, newInternalError("db error")
		}
		if !p.IsActive {
			return nil, newValidationError("invalid product")
		}

		items = append(items, model.OrderItem{
			ProductID:           in.ProductID,
			Size:                strings.TrimSpace(in.Size),
			ProductNameSnapshot: p.Name,
			UnitPriceSnapshot:   p.Price,
			Quantity:            in.Quantity,
			CreatedAt:           now,
		})
	}
	return items, nil
}

func (u *CheckoutUsecase) openGatewaySession(ctx context.Context, order model.Order, items []model.OrderItem, clientIP string) (payment.CheckoutSession, error) {
	buyer := payment.Buyer{
		ID:      order.ID,
		Name:    firstName(order.ContactName),
		Surname: lastName(order.ContactName),
		Email:   order.GuestEmail,
		GSM:     order.Phone,
		IP:      clientIP,
		City:    order.City,
		Address: order.District + " / " + order.Address,
	}

	//会員は登録情報で購入者欄を埋める
	if order.UserID != nil {
		user, err := u.users.FindByID(ctx, *order.UserID)
		if err == nil {
			buyer.ID = user.Email
			buyer.Email = user.Email
			if user.FullName != "" {
				buyer.Name = firstName(user.FullName)
				buyer.Surname = lastName(user.FullName)
			}
		}
	}

	basketItems := make([]payment.BasketItem, 0, len(items))
	for _, it := range items {
		basketItems = append(basketItems, payment.BasketItem{
			ID:       itemBasketID(it),
			Name:     it.ProductNameSnapshot,
			Category: "Genel",
			Price:    it.Subtotal(),
		})
	}

	session, err := u.gateway.InitializeCheckoutForm(ctx, payment.CheckoutRequest{
		ConversationID: order.ID,
		BasketID:       order.ID,
		Price:          order.TotalPrice,
		PaidPrice:      order.TotalPrice,
		CallbackURL:    u.callbackURL,
		Buyer:          buyer,
		ShippingName:   order.ContactName,
		ShippingCity:   order.City,
		ShippingAddr:   order.District + " / " + order.Address,
		Items:          basketItems,
	})
	if err != nil {
		return payment.CheckoutSession{}, mapGatewayError(err)
	}
	return session, nil
}

func (u *CheckoutUsecase) saveSessionToken(ctx context.Context, orderID, token string) error {
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Orders().SetSessionToken(ctx, orderID, token)
	})
}

// ゲートウェイのエラーをこの層のコードに写す
func mapGatewayError(err error) error {
	var rejected *payment.RejectedError
	if errors.As(err, &rejected) {
		return newGatewayRejectedError(rejected.Message)
	}
	if errors.Is(err, payment.ErrUnavailable) {
		return newGatewayUnavailableError("payment provider unavailable, try again")
	}
	return newInternalError("payment error")
}

// どの項目が欠けているかを返す（ユーザーが直せるように）
func validateAddress(a AddressInput) error {
	if strings.TrimSpace(a.ContactName) == "" {
		return newValidationError("contact_name required")
	}
	if strings.TrimSpace(a.City) == "" {
		return newValidationError("city required")
	}
	if strings.TrimSpace(a.District) == "" {
		return newValidationError("district required")
	}
	if strings.TrimSpace(a.Phone) == "" {
		return newValidationError("phone required")
	}
	if strings.TrimSpace(a.Address) == "" {
		return newValidationError("address required")
	}
	return nil
}

// 電話番号を国際形式に寄せる（0始まりは+9を付ける既存挙動を踏襲）
func normalizePhone(phone string) string {
	p := strings.ReplaceAll(strings.TrimSpace(phone), " ", "")
	if p == "" || strings.HasPrefix(p, "+") {
		return p
	}
	if strings.HasPrefix(p, "0") {
		return "+9" + p
	}
	return "+90" + p
}

func firstName(full string) string {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "Misafir"
	}
	return parts[0]
}

func lastName(full string) string {
	parts := strings.Fields(full)
	if len(parts) < 2 {
		return "Kullanıcı"
	}
	return strings.Join(parts[1:], " ")
}

func itemBasketID(it model.OrderItem) string {
	if it.Size == "" {
		return strconv.FormatInt(it.ProductID, 10)
	}
	return strconv.FormatInt(it.ProductID, 10) + "-" + it.Size
}
