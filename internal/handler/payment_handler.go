package handler

import (
	"net/http"
	"net/url"

	"app/internal/config"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 決済ゲートウェイからのコールバック。
// ゲートウェイがユーザーのブラウザ経由でPOSTしてくるので、処理後はフロントへリダイレクトする。
// bodyで信用するのはtokenだけ。金額やステータスはサーバー間で取り直す。
type PaymentHandler struct {
	uc    *usecase.PaymentUsecase
	feURL string
}

func NewPaymentHandler(uc *usecase.PaymentUsecase, feURL string) *PaymentHandler {
	return &PaymentHandler{uc: uc, feURL: feURL}
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	//ゲートウェイはapplication/x-www-form-urlencodedでtokenを送ってくる
	e.POST("/payment/callback", h.callback)
}

func (h *PaymentHandler) callback(c echo.Context) error {
	token := c.FormValue("token")

	out, err := h.uc.ReconcileCallback(c.Request().Context(), token)
	if err != nil {
		if he, ok := usecase.AsHTTPError(err); ok && he.Code == usecase.CodeGatewayUnavailable {
			//結果不明。注文はPENDINGのまま。後で再同期できるよう503で返す
			return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: he.Message, Code: he.Code})
		}
		return c.Redirect(http.StatusFound, h.failureURL("payment_failed"))
	}

	if !out.Paid {
		return c.Redirect(http.StatusFound, h.failureURL(out.ErrorMessage))
	}

	return c.Redirect(http.StatusFound, h.feURL+"/payment/success?order_id="+url.QueryEscape(out.OrderID))
}

func (h *PaymentHandler) failureURL(msg string) string {
	if msg == "" {
		msg = "payment_failed"
	}
	return h.feURL + "/cart?error=" + url.QueryEscape(msg)
}
