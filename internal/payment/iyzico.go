package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	pathCheckoutFormInitialize = "/payment/iyzipos/checkoutform/initialize/auth/ecom"
	pathCheckoutFormRetrieve   = "/payment/iyzipos/checkoutform/auth/ecom/detail"
	pathPaymentCancel          = "/payment/cancel"

	localeTR = "tr"
)

// 起動時に一度だけ注入する固定設定。以後は書き換えない。
type Config struct {
	APIKey    string
	SecretKey string
	BaseURL   string
}

// iyzico系チェックアウトフォームAPIのクライアント。
// 呼び出しごとの状態は持たない（設定のみ保持）。
type IyzicoClient struct {
	cfg  Config
	http *http.Client
	//テストで固定するためのフック
	now func() time.Time
}

func NewIyzicoClient(cfg Config) *IyzicoClient {
	return &IyzicoClient{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
		now:  time.Now,
	}
}

type iyzicoAddress struct {
	ContactName string `json:"contactName"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Address     string `json:"address"`
}

type iyzicoBuyer struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Surname             string `json:"surname"`
	GSMNumber           string `json:"gsmNumber"`
	Email               string `json:"email"`
	IdentityNumber      string `json:"identityNumber"`
	RegistrationAddress string `json:"registrationAddress"`
	IP                  string `json:"ip"`
	City                string `json:"city"`
	Country             string `json:"country"`
}

type iyzicoBasketItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category1 string `json:"category1"`
	ItemType  string `json:"itemType"`
	Price     string `json:"price"`
}

type initializeRequest struct {
	Locale         string             `json:"locale"`
	ConversationID string             `json:"conversationId"`
	Price          string             `json:"price"`
	PaidPrice      string             `json:"paidPrice"`
	Currency       string             `json:"currency"`
	BasketID       string             `json:"basketId"`
	PaymentGroup   string             `json:"paymentGroup"`
	CallbackURL    string             `json:"callbackUrl"`
	Buyer          iyzicoBuyer        `json:"buyer"`
	ShippingAddr   iyzicoAddress      `json:"shippingAddress"`
	BillingAddr    iyzicoAddress      `json:"billingAddress"`
	BasketItems    []iyzicoBasketItem `json:"basketItems"`
}

type initializeResponse struct {
	Status         string `json:"status"`
	ErrorCode      string `json:"errorCode"`
	ErrorMessage   string `json:"errorMessage"`
	Token          string `json:"token"`
	PaymentPageURL string `json:"paymentPageUrl"`
}

type retrieveRequest struct {
	Locale         string `json:"locale"`
	ConversationID string `json:"conversationId"`
	Token          string `json:"token"`
}

type retrieveResponse struct {
	Status        string `json:"status"`
	ErrorCode     string `json:"errorCode"`
	ErrorMessage  string `json:"errorMessage"`
	PaymentStatus string `json:"paymentStatus"`
	BasketID      string `json:"basketId"`
	PaymentID     string `json:"paymentId"`
	PaidPrice     string `json:"paidPrice"`
}

type cancelRequest struct {
	Locale         string `json:"locale"`
	ConversationID string `json:"conversationId"`
	PaymentID      string `json:"paymentId"`
	IP             string `json:"ip"`
}

type cancelResponse struct {
	Status       string `json:"status"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (c *IyzicoClient) InitializeCheckoutForm(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	body := initializeRequest{
		Locale:         localeTR,
		ConversationID: req.ConversationID,
		Price:          req.Price.StringFixed(2),
		PaidPrice:      req.PaidPrice.StringFixed(2),
		Currency:       "TRY",
		BasketID:       req.BasketID,
		PaymentGroup:   "PRODUCT",
		CallbackURL:    req.CallbackURL,
		Buyer: iyzicoBuyer{
			ID:                  req.Buyer.ID,
			Name:                req.Buyer.Name,
			Surname:             req.Buyer.Surname,
			GSMNumber:           req.Buyer.GSM,
			Email:               req.Buyer.Email,
			IdentityNumber:      "11111111111",
			RegistrationAddress: req.Buyer.Address,
			IP:                  req.Buyer.IP,
			City:                req.Buyer.City,
			Country:             "Turkey",
		},
		ShippingAddr: iyzicoAddress{
			ContactName: req.ShippingName,
			City:        req.ShippingCity,
			Country:     "Turkey",
			Address:     req.ShippingAddr,
		},
		BillingAddr: iyzicoAddress{
			ContactName: req.ShippingName,
			City:        req.ShippingCity,
			Country:     "Turkey",
			Address:     req.ShippingAddr,
		},
		BasketItems: lo.Map(req.Items, func(it BasketItem, _ int) iyzicoBasketItem {
			return iyzicoBasketItem{
				ID:        it.ID,
				Name:      it.Name,
				Category1: it.Category,
				ItemType:  "PHYSICAL",
				Price:     it.Price.StringFixed(2),
			}
		}),
	}

	var res initializeResponse
	if err := c.post(ctx, pathCheckoutFormInitialize, body, &res); err != nil {
		return CheckoutSession{}, err
	}

	if res.Status != "success" {
		return CheckoutSession{}, &RejectedError{Code: res.ErrorCode, Message: res.ErrorMessage}
	}

	return CheckoutSession{Token: res.Token, PaymentPageURL: res.PaymentPageURL}, nil
}

func (c *IyzicoClient) RetrieveCheckoutForm(ctx context.Context, token string) (RetrieveResult, error) {
	body := retrieveRequest{
		Locale:         localeTR,
		ConversationID: token,
		Token:          token,
	}

	var res retrieveResponse
	if err := c.post(ctx, pathCheckoutFormRetrieve, body, &res); err != nil {
		return RetrieveResult{}, err
	}

	//封筒レベルの失敗（不正トークンなど）は拒否扱い
	if res.Status != "success" {
		return RetrieveResult{}, &RejectedError{Code: res.ErrorCode, Message: res.ErrorMessage}
	}

	out := RetrieveResult{
		Succeeded:    res.PaymentStatus == "SUCCESS",
		BasketID:     res.BasketID,
		PaymentID:    res.PaymentID,
		ErrorMessage: res.ErrorMessage,
	}
	if res.PaidPrice != "" {
		p, err := decimal.NewFromString(res.PaidPrice)
		if err != nil {
			return RetrieveResult{}, fmt.Errorf("parse paidPrice %q: %w", res.PaidPrice, err)
		}
		out.PaidPrice = p
	}
	return out, nil
}

func (c *IyzicoClient) CancelPayment(ctx context.Context, paymentID string, price decimal.Decimal, ip string) error {
	body := cancelRequest{
		Locale:         localeTR,
		ConversationID: paymentID,
		PaymentID:      paymentID,
		IP:             ip,
	}

	var res cancelResponse
	if err := c.post(ctx, pathPaymentCancel, body, &res); err != nil {
		return err
	}

	if res.Status != "success" {
		return &RejectedError{Code: res.ErrorCode, Message: res.ErrorMessage}
	}
	return nil
}

// 署名付きPOST。トランスポート層の失敗はすべて ErrUnavailable に畳む
// （結果不明＝リトライ可能、ローカルの注文はPENDINGのまま）。
func (c *IyzicoClient) post(ctx context.Context, path string, reqBody any, out any) error {
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}

	randomKey := strconv.FormatInt(c.now().UnixNano(), 10)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.authorizationHeader(randomKey, path, raw))
	httpReq.Header.Set("x-iyzi-rnd", randomKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: invalid response body", ErrUnavailable)
	}
	return nil
}

// IYZWSv2形式の認可ヘッダ。
// HMAC-SHA256(randomKey + path + body, secretKey) をhexにして組み立てる。
func (c *IyzicoClient) authorizationHeader(randomKey, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
	mac.Write([]byte(randomKey))
	mac.Write([]byte(path))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	auth := fmt.Sprintf("apiKey:%s&randomKey:%s&signature:%s", c.cfg.APIKey, randomKey, signature)
	return "IYZWSv2 " + base64.StdEncoding.EncodeToString([]byte(auth))
}
