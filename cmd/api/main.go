package main

import (
	"log/slog"
	"os"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"
	"app/internal/notification"
	"app/internal/payment"
	"app/internal/server"
	"app/internal/usecase"

	"github.com/joho/godotenv"
)

func main() {
	//.envはローカル開発用。無ければ環境変数だけで動く
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.Error("db connect failed", "error", err)
		os.Exit(1)
	}

	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.ProductVariant{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.InventoryAdjustment{},
		&model.AuditLog{},
	); err != nil {
		log.Error("migrate failed", "error", err)
		os.Exit(1)
	}

	//Repository（GORM実装）生成
	txManager := infraRepo.NewTxManagerGorm(gormDB)
	userRepo := infraRepo.NewUserGormRepository(gormDB)

	//決済ゲートウェイ
	gateway := payment.NewIyzicoClient(payment.Config{
		APIKey:    cfg.PaymentAPIKey,
		SecretKey: cfg.PaymentSecretKey,
		BaseURL:   cfg.PaymentBaseURL,
	})

	//注文確定の通知。いまはログ出力のみ
	notifier := notification.NewLogSender(log)

	//Usecase生成
	callbackURL := cfg.APIURL + "/payment/callback"
	checkoutUC := usecase.NewCheckoutUsecase(txManager, userRepo, gateway, callbackURL, log)
	paymentUC := usecase.NewPaymentUsecase(txManager, userRepo, gateway, notifier, log)
	orderUC := usecase.NewOrderUsecase(txManager)
	adminOrderUC := usecase.NewAdminOrderUsecase(txManager, gateway, paymentUC, log)
	cartUC := usecase.NewCartUsecase(txManager)
	productUC := usecase.NewProductUsecase(txManager)

	//Handler生成
	handlers := server.Handlers{
		Product:    handler.NewProductHandler(productUC),
		Cart:       handler.NewCartHandler(cartUC),
		Checkout:   handler.NewCheckoutHandler(checkoutUC),
		Payment:    handler.NewPaymentHandler(paymentUC, cfg.FEURL),
		Order:      handler.NewOrderHandler(orderUC),
		AdminOrder: handler.NewAdminOrderHandler(adminOrderUC),
	}

	//Server起動
	e := server.New(cfg, handlers)
	if err := server.Start(e, cfg.Port); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
