package usecase

import (
	"context"
	"errors"
	"strconv"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const maxCartItemQuantity = 99

// 会員カート。追加時の価格をスナップショットとして保存する。
// ここでの在庫チェックは表示用の事前確認であり、確定はコールバック照合時の条件付き減算で行う。
type CartUsecase struct {
	tx repo.TransactionManager
}

func NewCartUsecase(tx repo.TransactionManager) *CartUsecase {
	return &CartUsecase{tx: tx}
}

type CartItemOutput struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Size        string          `json:"size,omitempty"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type CartOutput struct {
	CartID int64            `json:"cart_id"`
	Items  []CartItemOutput `json:"items"`
	Total  decimal.Decimal  `json:"total"`
}

type AddCartItemInput struct {
	ProductID int64  `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int64  `json:"quantity"`
}

func (u *CartUsecase) GetMyCart(ctx context.Context, userID int64) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, newUnauthorizedError()
	}

	var out CartOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindActiveByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			//カート未作成は空のカート扱い
			out = CartOutput{Items: []CartItemOutput{}, Total: decimal.Zero}
			return nil
		}
		if err != nil {
			return newInternalError("db error")
		}

		items, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return newInternalError("db error")
		}

		outs := make([]CartItemOutput, 0, len(items))
		total := decimal.Zero
		for _, it := range items {
			name := ""
			if p, perr := r.Products().FindByID(ctx, it.ProductID); perr == nil {
				name = p.Name
			}
			sub := it.UnitPriceSnapshot.Mul(decimal.NewFromInt(it.Quantity))
			outs = append(outs, CartItemOutput{
				ID:          it.ID,
				ProductID:   it.ProductID,
				ProductName: name,
				Size:        it.Size,
				Quantity:    it.Quantity,
				UnitPrice:   it.UnitPriceSnapshot,
				Subtotal:    sub,
			})
			total = total.Add(sub)
		}

		out = CartOutput{CartID: cart.ID, Items: outs, Total: total}
		return nil
	})

	if err != nil {
		return CartOutput{}, err
	}
	return out, nil
}

func (u *CartUsecase) AddItem(ctx context.Context, userID int64, in AddCartItemInput) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, newUnauthorizedError()
	}
	if in.ProductID <= 0 {
		return CartOutput{}, newValidationError("invalid product id")
	}
	if in.Quantity <= 0 || in.Quantity > maxCartItemQuantity {
		return CartOutput{}, newValidationError("quantity must be 1-" + strconv.Itoa(maxCartItemQuantity))
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, in.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return newNotFoundError("product not found")
		}
		if err != nil {
			return newInternalError("db error")
		}
		if !p.IsActive {
			return newNotFoundError("product not found")
		}

		if err := validateSize(ctx, r, in.ProductID, in.Size); err != nil {
			return err
		}

		//事前の在庫確認（表示用。確定時に改めて条件付き減算する）
		stock, err := r.Inventory().GetStock(ctx, in.ProductID, in.Size)
		if errors.Is(err, repo.ErrNotFound) {
			return newNotFoundError("variant not found")
		}
		if err != nil {
			return newInternalError("db error")
		}
		if stock < in.Quantity {
			return newStateError("not enough stock")
		}

		cart, err := r.Carts().GetOrCreateActiveByUserID(ctx, userID)
		if err != nil {
			return newInternalError("db error")
		}

		if err := r.CartItems().UpsertByCartProductSize(ctx, cart.ID, in.ProductID, in.Size, in.Quantity, p.Price); err != nil {
			return newInternalError("db error")
		}
		return nil
	})

	if err != nil {
		return CartOutput{}, err
	}
	return u.GetMyCart(ctx, userID)
}

// 数量更新。0は削除扱い
func (u *CartUsecase) UpdateItemQuantity(ctx context.Context, userID int64, cartItemID int64, qty int64) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, newUnauthorizedError()
	}
	if qty < 0 || qty > maxCartItemQuantity {
		return CartOutput{}, newValidationError("quantity must be 0-" + strconv.Itoa(maxCartItemQuantity))
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := requireOwnedItem(ctx, r, cartItemID, userID); err != nil {
			return err
		}

		if qty == 0 {
			if err := r.CartItems().DeleteByID(ctx, cartItemID); err != nil {
				return newInternalError("db error")
			}
			return nil
		}

		item, err := r.CartItems().FindByID(ctx, cartItemID)
		if err != nil {
			return newInternalError("db error")
		}

		stock, err := r.Inventory().GetStock(ctx, item.ProductID, item.Size)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return newInternalError("db error")
		}
		if err == nil && stock < qty {
			return newStateError("not enough stock")
		}

		if err := r.CartItems().UpdateQuantity(ctx, cartItemID, qty); err != nil {
			return newInternalError("db error")
		}
		return nil
	})

	if err != nil {
		return CartOutput{}, err
	}
	return u.GetMyCart(ctx, userID)
}

func (u *CartUsecase) RemoveItem(ctx context.Context, userID int64, cartItemID int64) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, newUnauthorizedError()
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := requireOwnedItem(ctx, r, cartItemID, userID); err != nil {
			return err
		}
		if err := r.CartItems().DeleteByID(ctx, cartItemID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return newNotFoundError("cart item not found")
			}
			return newInternalError("db error")
		}
		return nil
	})

	if err != nil {
		return CartOutput{}, err
	}
	return u.GetMyCart(ctx, userID)
}

func requireOwnedItem(ctx context.Context, r repo.TxRepos, cartItemID int64, userID int64) error {
	owned, err := r.CartItems().IsOwnedByUser(ctx, cartItemID, userID)
	if err != nil {
		return newInternalError("db error")
	}
	if !owned {
		//他人の明細は存在しない扱い
		return newNotFoundError("cart item not found")
	}
	return nil
}

// サイズ展開のある商品はサイズ必須、無い商品は size='' のみ許す
func validateSize(ctx context.Context, r repo.TxRepos, productID int64, size string) error {
	variants, err := r.Products().ListVariants(ctx, productID)
	if err != nil {
		return newInternalError("db error")
	}

	sized := lo.Filter(variants, func(v model.ProductVariant, _ int) bool { return v.Size != "" })
	if len(sized) == 0 {
		if size != "" {
			return newValidationError("product has no size variants")
		}
		return nil
	}

	if size == "" {
		return newValidationError("size required")
	}
	if !lo.ContainsBy(sized, func(v model.ProductVariant) bool { return v.Size == size }) {
		return newValidationError("unknown size: " + size)
	}
	return nil
}
