package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type ProductUsecase struct {
	tx repo.TransactionManager
}

func NewProductUsecase(tx repo.TransactionManager) *ProductUsecase {
	return &ProductUsecase{tx: tx}
}

type VariantOutput struct {
	Size  string `json:"size"`
	Stock int64  `json:"stock"`
}

type ProductOutput struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Variants    []VariantOutput `json:"variants"`
}

func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID int64) (ProductOutput, error) {
	if productID <= 0 {
		return ProductOutput{}, newValidationError("invalid id")
	}

	var out ProductOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return newNotFoundError("product not found")
		}
		if err != nil {
			return newInternalError("db error")
		}
		if !p.IsActive {
			return newNotFoundError("product not found")
		}

		variants, err := r.Products().ListVariants(ctx, productID)
		if err != nil {
			return newInternalError("db error")
		}

		out = ProductOutput{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Category:    p.Category,
			Price:       p.Price,
			Variants: lo.Map(variants, func(v model.ProductVariant, _ int) VariantOutput {
				return VariantOutput{Size: v.Size, Stock: v.Stock}
			}),
		}
		return nil
	})

	if err != nil {
		return ProductOutput{}, err
	}
	return out, nil
}

type AdjustStockInput struct {
	ProductID int64  `json:"product_id"`
	Size      string `json:"size"`
	Delta     int64  `json:"delta"`
	Reason    string `json:"reason"`
}

// 管理者の在庫調整。絶対値ではなく相対増減だけを受け付ける。
// 結果が0未満になる調整は拒否し、調整履歴と監査ログを同一トランザクションで残す。
func (u *ProductUsecase) AdminAdjustVariantStock(ctx context.Context, adminUserID int64, in AdjustStockInput) (VariantOutput, error) {
	if in.ProductID <= 0 {
		return VariantOutput{}, newValidationError("invalid product id")
	}
	if in.Delta == 0 {
		return VariantOutput{}, newValidationError("delta must not be zero")
	}
	if in.Reason == "" {
		return VariantOutput{}, newValidationError("reason required")
	}

	var out VariantOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Inventory().GetStock(ctx, in.ProductID, in.Size)
		if errors.Is(err, repo.ErrNotFound) {
			return newNotFoundError("variant not found")
		}
		if err != nil {
			return newInternalError("db error")
		}

		ok, err := r.Inventory().AdjustStock(ctx, in.ProductID, in.Size, in.Delta)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return newNotFoundError("variant not found")
			}
			return newInternalError("db error")
		}
		if !ok {
			return newStateError("stock cannot go below zero")
		}

		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   in.ProductID,
			Size:        in.Size,
			AdminUserID: adminUserID,
			Delta:       in.Delta,
			Reason:      in.Reason,
		}); err != nil {
			return newInternalError("db error")
		}

		after := before + in.Delta
		beforeJSON, _ := json.Marshal(map[string]int64{"stock": before})
		afterJSON, _ := json.Marshal(map[string]int64{"stock": after})
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionAdjustStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   strconv.FormatInt(in.ProductID, 10),
			BeforeJSON:   string(beforeJSON),
			AfterJSON:    string(afterJSON),
			CreatedAt:    time.Now(),
		}); err != nil {
			return newInternalError("db error")
		}

		out = VariantOutput{Size: in.Size, Stock: after}
		return nil
	})

	if err != nil {
		return VariantOutput{}, err
	}
	return out, nil
}
