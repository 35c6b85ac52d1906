package handler

import (
	"net/http"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

// /checkout のHTTP。会員はBearer付き、ゲストはトークン無しで同じエンドポイントを使う
type CheckoutHandler struct {
	uc *usecase.CheckoutUsecase
}

func NewCheckoutHandler(uc *usecase.CheckoutUsecase) *CheckoutHandler {
	return &CheckoutHandler{uc: uc}
}

type CheckoutAddressRequest struct {
	ContactName string `json:"contact_name"`
	City        string `json:"city"`
	District    string `json:"district"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
}

type CheckoutItemRequest struct {
	ProductID int64  `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int64  `json:"quantity"`
}

type CheckoutRequest struct {
	Address CheckoutAddressRequest `json:"address"`
	//ゲストのみ
	GuestEmail string                `json:"guest_email"`
	Items      []CheckoutItemRequest `json:"items"`
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/checkout")
	g.Use(middleware.OptionalAuthJWT(cfg))

	g.POST("", h.initiate)
}

func (h *CheckoutHandler) initiate(c echo.Context) error {
	//会員ならcontextにuser_idが入っている。ゲストはnil
	var userID *int64
	if id, ok := getUserIDFromContext(c); ok {
		userID = &id
	}

	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.InitiateCheckout(c.Request().Context(), userID, usecase.InitiateCheckoutInput{
		Address: usecase.AddressInput{
			ContactName: req.Address.ContactName,
			City:        req.Address.City,
			District:    req.Address.District,
			Phone:       req.Address.Phone,
			Address:     req.Address.Address,
		},
		GuestEmail: req.GuestEmail,
		Items: lo.Map(req.Items, func(it CheckoutItemRequest, _ int) usecase.CheckoutItemInput {
			return usecase.CheckoutItemInput{
				ProductID: it.ProductID,
				Size:      it.Size,
				Quantity:  it.Quantity,
			}
		}),
		ClientIP: c.RealIP(),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
