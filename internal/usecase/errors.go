package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// エラーコード。HTTPステータスだけでは足りない区別（リトライ可否・整合性アラート）を運ぶ。
const (
	CodeValidation         = "VALIDATION"
	CodeState              = "STATE"
	CodeNotFound           = "NOT_FOUND"
	CodeForbidden          = "FORBIDDEN"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeGatewayUnavailable = "GATEWAY_UNAVAILABLE" //リトライ可能。ローカル状態は変更していない
	CodeGatewayRejected    = "GATEWAY_REJECTED"    //ゲートウェイが明示拒否。ローカル状態は変更していない
	CodeConsistency        = "CONSISTENCY"         //外部とローカルの状態が食い違った。手動照合が必要
	CodeInternal           = "INTERNAL"
	CodeOutOfStock         = "OUT_OF_STOCK"
	CodeMissingPaymentRef  = "MISSING_PAYMENT_REFERENCE"
)

type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func NewHTTPError(status int, code string, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

//入力不備。副作用なし
func newValidationError(message string) error {
	return NewHTTPError(http.StatusBadRequest, CodeValidation, message)
}

//現在のステータスと両立しない操作
func newStateError(message string) error {
	return NewHTTPError(http.StatusConflict, CodeState, message)
}

func newNotFoundError(message string) error {
	return NewHTTPError(http.StatusNotFound, CodeNotFound, message)
}

func newForbiddenError(message string) error {
	return NewHTTPError(http.StatusForbidden, CodeForbidden, message)
}

func newUnauthorizedError() error {
	return NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
}

func newInternalError(message string) error {
	return NewHTTPError(http.StatusInternalServerError, CodeInternal, message)
}

//結果不明（タイムアウト・到達不能）。注文はそのまま、呼び出し側はリトライできる
func newGatewayUnavailableError(message string) error {
	return NewHTTPError(http.StatusBadGateway, CodeGatewayUnavailable, message)
}

//ゲートウェイの明示拒否。プロバイダのメッセージを表示用に残す
func newGatewayRejectedError(message string) error {
	return NewHTTPError(http.StatusBadRequest, CodeGatewayRejected, message)
}

//金とDBの状態が割れた。握りつぶさず、手動照合に回す
func newConsistencyError(message string) error {
	return NewHTTPError(http.StatusInternalServerError, CodeConsistency, message)
}
