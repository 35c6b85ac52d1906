package usecase_test

import (
	"context"
	"testing"

	"app/internal/domain/model"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func productFixture() (*ProductRepoMock, *InventoryRepoMock, *AuditRepoMock, *usecase.ProductUsecase) {
	tx := new(TxManagerMock)
	productsRepo := new(ProductRepoMock)
	invRepo := new(InventoryRepoMock)
	audit := new(AuditRepoMock)

	tx.Repos = &TxReposMock{products: productsRepo, inventory: invRepo, auditLogs: audit}
	tx.On("WithinTx", mock.Anything).Return(nil)

	return productsRepo, invRepo, audit, usecase.NewProductUsecase(tx)
}

func TestGetProductDetail_WithVariants(t *testing.T) {
	productsRepo, _, _, uc := productFixture()

	productsRepo.On("FindByID", mock.Anything, int64(1)).
		Return(model.Product{ID: 1, Name: "Tişört", Price: dec("50.00"), IsActive: true}, nil)
	productsRepo.On("ListVariants", mock.Anything, int64(1)).Return([]model.ProductVariant{
		{ProductID: 1, Size: "M", Stock: 5},
		{ProductID: 1, Size: "L", Stock: 0},
	}, nil)

	out, err := uc.GetProductDetail(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, "Tişört", out.Name)
	assert.Len(t, out.Variants, 2)
	assert.Equal(t, int64(0), out.Variants[1].Stock)
}

func TestGetProductDetail_InactiveHidden(t *testing.T) {
	productsRepo, _, _, uc := productFixture()

	productsRepo.On("FindByID", mock.Anything, int64(1)).
		Return(model.Product{ID: 1, IsActive: false}, nil)

	_, err := uc.GetProductDetail(context.Background(), 1)
	assertErrContains(t, err, "not found")
}

func TestAdjustStock_RecordsHistoryAndAudit(t *testing.T) {
	_, invRepo, audit, uc := productFixture()

	invRepo.On("GetStock", mock.Anything, int64(1), "M").Return(int64(10), nil)
	invRepo.On("AdjustStock", mock.Anything, int64(1), "M", int64(-4)).Return(true, nil)
	invRepo.On("CreateAdjustment", mock.Anything, mock.MatchedBy(func(a model.InventoryAdjustment) bool {
		return a.ProductID == 1 && a.Size == "M" && a.Delta == -4 && a.Reason == "sayım farkı"
	})).Return(nil)
	audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionAdjustStock && l.ResourceID == "1"
	})).Return(nil)

	out, err := uc.AdminAdjustVariantStock(context.Background(), adminID, usecase.AdjustStockInput{
		ProductID: 1,
		Size:      "M",
		Delta:     -4,
		Reason:    "sayım farkı",
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(6), out.Stock)
	invRepo.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestAdjustStock_CannotGoNegative(t *testing.T) {
	_, invRepo, audit, uc := productFixture()

	invRepo.On("GetStock", mock.Anything, int64(1), "M").Return(int64(2), nil)
	invRepo.On("AdjustStock", mock.Anything, int64(1), "M", int64(-5)).Return(false, nil)

	_, err := uc.AdminAdjustVariantStock(context.Background(), adminID, usecase.AdjustStockInput{
		ProductID: 1,
		Size:      "M",
		Delta:     -5,
		Reason:    "sayım farkı",
	})
	assertErrContains(t, err, "below zero")
	audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAdjustStock_Validation(t *testing.T) {
	_, _, _, uc := productFixture()

	_, err := uc.AdminAdjustVariantStock(context.Background(), adminID, usecase.AdjustStockInput{
		ProductID: 1, Size: "M", Delta: 0, Reason: "x",
	})
	assertErrContains(t, err, "delta")

	_, err = uc.AdminAdjustVariantStock(context.Background(), adminID, usecase.AdjustStockInput{
		ProductID: 1, Size: "M", Delta: 3,
	})
	assertErrContains(t, err, "reason")
}
