package usecase_test

import (
	"context"
	"testing"

	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func cartFixture() (*CartRepoMock, *CartItemRepoMock, *ProductRepoMock, *InventoryRepoMock, *usecase.CartUsecase) {
	tx := new(TxManagerMock)
	cartsRepo := new(CartRepoMock)
	cartItemsRepo := new(CartItemRepoMock)
	productsRepo := new(ProductRepoMock)
	invRepo := new(InventoryRepoMock)

	tx.Repos = &TxReposMock{
		carts:     cartsRepo,
		cartItems: cartItemsRepo,
		products:  productsRepo,
		inventory: invRepo,
	}
	tx.On("WithinTx", mock.Anything).Return(nil)

	return cartsRepo, cartItemsRepo, productsRepo, invRepo, usecase.NewCartUsecase(tx)
}

func TestAddItem_SnapshotsCurrentPrice(t *testing.T) {
	userID := int64(7)
	cartsRepo, cartItemsRepo, productsRepo, invRepo, uc := cartFixture()

	productsRepo.On("FindByID", mock.Anything, int64(1)).
		Return(model.Product{ID: 1, Name: "Tişört", Price: dec("50.00"), IsActive: true}, nil)
	productsRepo.On("ListVariants", mock.Anything, int64(1)).Return([]model.ProductVariant{
		{ProductID: 1, Size: "M", Stock: 5},
		{ProductID: 1, Size: "L", Stock: 0},
	}, nil)
	invRepo.On("GetStock", mock.Anything, int64(1), "M").Return(int64(5), nil)

	cartsRepo.On("GetOrCreateActiveByUserID", mock.Anything, userID).
		Return(model.Cart{ID: 3, UserID: userID, Status: model.CartStatusActive}, nil)

	//追加時点のカタログ価格がスナップショットとして渡る
	cartItemsRepo.On("UpsertByCartProductSize", mock.Anything, int64(3), int64(1), "M", int64(2), dec("50.00")).
		Return(nil)

	cartsRepo.On("FindActiveByUserID", mock.Anything, userID).
		Return(model.Cart{ID: 3, UserID: userID, Status: model.CartStatusActive}, nil)
	cartItemsRepo.On("ListByCartID", mock.Anything, int64(3)).Return([]model.CartItem{
		{ID: 10, CartID: 3, ProductID: 1, Size: "M", Quantity: 2, UnitPriceSnapshot: dec("50.00")},
	}, nil)

	out, err := uc.AddItem(context.Background(), userID, usecase.AddCartItemInput{ProductID: 1, Size: "M", Quantity: 2})
	assert.NoError(t, err)
	assert.True(t, out.Total.Equal(dec("100.00")))
	cartItemsRepo.AssertExpectations(t)
}

func TestAddItem_SizeValidation(t *testing.T) {
	userID := int64(7)

	t.Run("size required for sized product", func(t *testing.T) {
		_, _, productsRepo, _, uc := cartFixture()
		productsRepo.On("FindByID", mock.Anything, int64(1)).
			Return(model.Product{ID: 1, Price: dec("50.00"), IsActive: true}, nil)
		productsRepo.On("ListVariants", mock.Anything, int64(1)).
			Return([]model.ProductVariant{{ProductID: 1, Size: "M"}}, nil)

		_, err := uc.AddItem(context.Background(), userID, usecase.AddCartItemInput{ProductID: 1, Quantity: 1})
		assertErrContains(t, err, "size required")
	})

	t.Run("unknown size", func(t *testing.T) {
		_, _, productsRepo, _, uc := cartFixture()
		productsRepo.On("FindByID", mock.Anything, int64(1)).
			Return(model.Product{ID: 1, Price: dec("50.00"), IsActive: true}, nil)
		productsRepo.On("ListVariants", mock.Anything, int64(1)).
			Return([]model.ProductVariant{{ProductID: 1, Size: "M"}}, nil)

		_, err := uc.AddItem(context.Background(), userID, usecase.AddCartItemInput{ProductID: 1, Size: "XXL", Quantity: 1})
		assertErrContains(t, err, "unknown size")
	})

	t.Run("size rejected for plain product", func(t *testing.T) {
		_, _, productsRepo, _, uc := cartFixture()
		productsRepo.On("FindByID", mock.Anything, int64(2)).
			Return(model.Product{ID: 2, Price: dec("25.00"), IsActive: true}, nil)
		productsRepo.On("ListVariants", mock.Anything, int64(2)).
			Return([]model.ProductVariant{{ProductID: 2, Size: ""}}, nil)

		_, err := uc.AddItem(context.Background(), userID, usecase.AddCartItemInput{ProductID: 2, Size: "M", Quantity: 1})
		assertErrContains(t, err, "no size variants")
	})
}

func TestAddItem_NotEnoughStock(t *testing.T) {
	userID := int64(7)
	_, _, productsRepo, invRepo, uc := cartFixture()

	productsRepo.On("FindByID", mock.Anything, int64(1)).
		Return(model.Product{ID: 1, Price: dec("50.00"), IsActive: true}, nil)
	productsRepo.On("ListVariants", mock.Anything, int64(1)).
		Return([]model.ProductVariant{{ProductID: 1, Size: "M", Stock: 1}}, nil)
	invRepo.On("GetStock", mock.Anything, int64(1), "M").Return(int64(1), nil)

	_, err := uc.AddItem(context.Background(), userID, usecase.AddCartItemInput{ProductID: 1, Size: "M", Quantity: 3})
	assertErrContains(t, err, "not enough stock")
}

func TestAddItem_InactiveProductHidden(t *testing.T) {
	_, _, productsRepo, _, uc := cartFixture()

	productsRepo.On("FindByID", mock.Anything, int64(1)).
		Return(model.Product{ID: 1, Price: dec("50.00"), IsActive: false}, nil)

	_, err := uc.AddItem(context.Background(), int64(7), usecase.AddCartItemInput{ProductID: 1, Quantity: 1})
	assertErrContains(t, err, "not found")
}

func TestUpdateItemQuantity_ZeroDeletes(t *testing.T) {
	userID := int64(7)
	cartsRepo, cartItemsRepo, _, _, uc := cartFixture()

	cartItemsRepo.On("IsOwnedByUser", mock.Anything, int64(10), userID).Return(true, nil)
	cartItemsRepo.On("DeleteByID", mock.Anything, int64(10)).Return(nil)

	cartsRepo.On("FindActiveByUserID", mock.Anything, userID).Return(model.Cart{}, repo.ErrNotFound)

	out, err := uc.UpdateItemQuantity(context.Background(), userID, 10, 0)
	assert.NoError(t, err)
	assert.Empty(t, out.Items)
	cartItemsRepo.AssertExpectations(t)
}

func TestRemoveItem_NotOwned(t *testing.T) {
	userID := int64(7)
	_, cartItemsRepo, _, _, uc := cartFixture()

	cartItemsRepo.On("IsOwnedByUser", mock.Anything, int64(10), userID).Return(false, nil)

	_, err := uc.RemoveItem(context.Background(), userID, 10)
	assertErrContains(t, err, "not found")
	cartItemsRepo.AssertNotCalled(t, "DeleteByID", mock.Anything, mock.Anything)
}

func TestGetMyCart_NoActiveCartIsEmpty(t *testing.T) {
	userID := int64(7)
	cartsRepo, _, _, _, uc := cartFixture()

	cartsRepo.On("FindActiveByUserID", mock.Anything, userID).Return(model.Cart{}, repo.ErrNotFound)

	out, err := uc.GetMyCart(context.Background(), userID)
	assert.NoError(t, err)
	assert.Empty(t, out.Items)
	assert.True(t, out.Total.IsZero())
}
