package usecase_test

import (
	"context"
	"testing"

	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func memberOrder(status model.OrderStatus) model.Order {
	return model.Order{
		ID:         orderID,
		UserID:     lo.ToPtr(int64(7)),
		Status:     status,
		TotalPrice: dec("100.00"),
	}
}

func cancelFixture(o model.Order) (*TxManagerMock, *OrderRepoMock, *OrderItemRepoMock, *InventoryRepoMock, *usecase.OrderUsecase) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	itemsRepo := new(OrderItemRepoMock)
	invRepo := new(InventoryRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderItems: itemsRepo, inventory: invRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, orderID).Return(o, nil)

	return tx, ordersRepo, itemsRepo, invRepo, usecase.NewOrderUsecase(tx)
}

func TestCancel_Pending_NoStockCredit(t *testing.T) {
	o := memberOrder(model.OrderStatusPending)
	_, ordersRepo, itemsRepo, invRepo, uc := cancelFixture(o)

	ordersRepo.On("UpdateStatusFrom", mock.Anything, orderID, model.OrderStatusPending, model.OrderStatusCancelled).
		Return(true, nil)
	itemsRepo.On("ListByOrderID", mock.Anything, orderID).Return([]model.OrderItem{
		{OrderID: orderID, ProductID: 1, Size: "M", Quantity: 2},
	}, nil)

	out, err := uc.CancelOrder(context.Background(), orderID, usecase.Requester{UserID: lo.ToPtr(int64(7))})
	assert.NoError(t, err)
	assert.Equal(t, "CANCELLED", out.Status)

	//PENDINGは一度も在庫を引いていないので戻さない
	invRepo.AssertNotCalled(t, "IncreaseStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCancel_Paid_CreditsStock(t *testing.T) {
	o := memberOrder(model.OrderStatusPaid)
	_, ordersRepo, itemsRepo, invRepo, uc := cancelFixture(o)

	ordersRepo.On("UpdateStatusFrom", mock.Anything, orderID, model.OrderStatusPaid, model.OrderStatusCancelled).
		Return(true, nil)
	itemsRepo.On("ListByOrderID", mock.Anything, orderID).Return([]model.OrderItem{
		{OrderID: orderID, ProductID: 1, Size: "M", Quantity: 2},
		{OrderID: orderID, ProductID: 2, Quantity: 1},
	}, nil)

	invRepo.On("IncreaseStock", mock.Anything, int64(1), "M", int64(2)).Return(nil)
	invRepo.On("IncreaseStock", mock.Anything, int64(2), "", int64(1)).Return(nil)

	out, err := uc.CancelOrder(context.Background(), orderID, usecase.Requester{UserID: lo.ToPtr(int64(7))})
	assert.NoError(t, err)
	assert.Equal(t, "CANCELLED", out.Status)
	invRepo.AssertExpectations(t)
}

func TestCancel_Paid_MissingVariantSkipped(t *testing.T) {
	o := memberOrder(model.OrderStatusPaid)
	_, ordersRepo, itemsRepo, invRepo, uc := cancelFixture(o)

	ordersRepo.On("UpdateStatusFrom", mock.Anything, orderID, model.OrderStatusPaid, model.OrderStatusCancelled).
		Return(true, nil)
	itemsRepo.On("ListByOrderID", mock.Anything, orderID).Return([]model.OrderItem{
		{OrderID: orderID, ProductID: 9, Size: "M", Quantity: 1},
		{OrderID: orderID, ProductID: 1, Quantity: 1},
	}, nil)

	invRepo.On("IncreaseStock", mock.Anything, int64(9), "M", int64(1)).Return(repo.ErrNotFound)
	invRepo.On("IncreaseStock", mock.Anything, int64(1), "", int64(1)).Return(nil)

	_, err := uc.CancelOrder(context.Background(), orderID, usecase.Requester{UserID: lo.ToPtr(int64(7))})
	assert.NoError(t, err)
	invRepo.AssertExpectations(t)
}

func TestCancel_ShippedAndTerminal_Rejected(t *testing.T) {
	cases := []struct {
		status model.OrderStatus
		want   string
	}{
		{model.OrderStatusShipped, "shipped"},
		{model.OrderStatusDelivered, "shipped"},
		{model.OrderStatusCancelled, "cancelled"},
		{model.OrderStatusRefunded, "refunded"},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			o := memberOrder(tc.status)
			_, ordersRepo, _, _, uc := cancelFixture(o)

			_, err := uc.CancelOrder(context.Background(), orderID, usecase.Requester{UserID: lo.ToPtr(int64(7))})
			assertErrContains(t, err, tc.want)
			ordersRepo.AssertNotCalled(t, "UpdateStatusFrom", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCancel_Authorization(t *testing.T) {
	t.Run("other member forbidden", func(t *testing.T) {
		o := memberOrder(model.OrderStatusPending)
		_, _, _, _, uc := cancelFixture(o)

		_, err := uc.CancelOrder(context.Background(), orderID, usecase.Requester{UserID: lo.ToPtr(int64(99))})
		assertErrContains(t, err, "not your order")
	})

	t.Run("admin allowed", func(t *testing.T) {
		o := memberOrder(model.OrderStatusPending)
		_, ordersRepo, itemsRepo, _, uc := cancelFixture(o)

		ordersRepo.On("UpdateStatusFrom", mock.Anything, orderID, model.OrderStatusPending, model.OrderStatusCancelled).
			Return(true, nil)
		itemsRepo.On("ListByOrderID", mock.Anything, orderID).Return([]model.OrderItem{}, nil)

		_, err := uc.CancelOrder(context.Background(), orderID, usecase.Requester{UserID: lo.ToPtr(int64(99)), Admin: true})
		assert.NoError(t, err)
	})

	t.Run("guest email match", func(t *testing.T) {
		o := model.Order{ID: orderID, GuestEmail: "guest@example.com", Status: model.OrderStatusPending}
		_, ordersRepo, itemsRepo, _, uc := cancelFixture(o)

		ordersRepo.On("UpdateStatusFrom", mock.Anything, orderID, model.OrderStatusPending, model.OrderStatusCancelled).
			Return(true, nil)
		itemsRepo.On("ListByOrderID", mock.Anything, orderID).Return([]model.OrderItem{}, nil)

		_, err := uc.CancelOrder(context.Background(), orderID, usecase.Requester{GuestEmail: "GUEST@example.com"})
		assert.NoError(t, err)
	})

	t.Run("guest email mismatch", func(t *testing.T) {
		o := model.Order{ID: orderID, GuestEmail: "guest@example.com", Status: model.OrderStatusPending}
		_, _, _, _, uc := cancelFixture(o)

		_, err := uc.CancelOrder(context.Background(), orderID, usecase.Requester{GuestEmail: "other@example.com"})
		assertErrContains(t, err, "does not match")
	})
}

func TestCancel_RaceLost(t *testing.T) {
	o := memberOrder(model.OrderStatusPending)
	_, ordersRepo, _, _, uc := cancelFixture(o)

	ordersRepo.On("UpdateStatusFrom", mock.Anything, orderID, model.OrderStatusPending, model.OrderStatusCancelled).
		Return(false, nil)

	_, err := uc.CancelOrder(context.Background(), orderID, usecase.Requester{UserID: lo.ToPtr(int64(7))})
	assertErrContains(t, err, "retry")
}

func TestTrackOrder(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	itemsRepo := new(OrderItemRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, orderItems: itemsRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	o := model.Order{ID: orderID, GuestEmail: "guest@example.com", Status: model.OrderStatusPaid, TotalPrice: dec("80.00")}
	ordersRepo.On("FindByIDForEmail", mock.Anything, orderID, "guest@example.com").Return(o, nil)
	itemsRepo.On("ListByOrderID", mock.Anything, orderID).Return([]model.OrderItem{}, nil)

	uc := usecase.NewOrderUsecase(tx)

	out, err := uc.TrackOrder(context.Background(), orderID, "guest@example.com")
	assert.NoError(t, err)
	assert.Equal(t, "PAID", out.Status)
}

func TestTrackOrder_WrongEmail(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByIDForEmail", mock.Anything, orderID, "other@example.com").
		Return(model.Order{}, repo.ErrNotFound)

	uc := usecase.NewOrderUsecase(tx)

	_, err := uc.TrackOrder(context.Background(), orderID, "other@example.com")
	assertErrContains(t, err, "not found")
}

func TestGetMyOrderDetail_OtherUsersOrderHidden(t *testing.T) {
	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, orderID).Return(memberOrder(model.OrderStatusPaid), nil)

	uc := usecase.NewOrderUsecase(tx)

	_, err := uc.GetMyOrderDetail(context.Background(), 99, orderID)
	assertErrContains(t, err, "not found")
}
