package config

import (
	"fmt"
	"os"
	"strconv"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string // sslmode（disable）

	JWTSecret string // JWT検証シークレット（発行は外部の認証サービス）

	GoEnv  string // dev/prod
	APIURL string // このAPIの公開URL（コールバックURLの組み立てに使う）
	FEURL  string // フロントURL（決済後のリダイレクト先）

	// 決済ゲートウェイ。起動時に一度だけ読み、以後は不変。
	PaymentAPIKey    string
	PaymentSecretKey string
	PaymentBaseURL   string
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := mustAtoi("POSTGRES_PORT")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: os.Getenv("PORT"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		GoEnv:  os.Getenv("GO_ENV"),
		APIURL: os.Getenv("API_URL"),
		FEURL:  os.Getenv("FE_URL"),

		PaymentAPIKey:    os.Getenv("PAYMENT_API_KEY"),
		PaymentSecretKey: os.Getenv("PAYMENT_SECRET_KEY"),
		PaymentBaseURL:   os.Getenv("PAYMENT_BASE_URL"),
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.PostgresUser == "" {
		return Config{}, fmt.Errorf("POSTGRES_USER is required")
	}
	if cfg.PostgresPassword == "" {
		return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if cfg.PostgresDB == "" {
		return Config{}, fmt.Errorf("POSTGRES_DB is required")
	}
	if cfg.PostgresHost == "" {
		return Config{}, fmt.Errorf("POSTGRES_HOST is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}
	if cfg.APIURL == "" {
		return Config{}, fmt.Errorf("API_URL is required")
	}
	if cfg.FEURL == "" {
		return Config{}, fmt.Errorf("FE_URL is required")
	}
	if cfg.PaymentAPIKey == "" {
		return Config{}, fmt.Errorf("PAYMENT_API_KEY is required")
	}
	if cfg.PaymentSecretKey == "" {
		return Config{}, fmt.Errorf("PAYMENT_SECRET_KEY is required")
	}
	if cfg.PaymentBaseURL == "" {
		return Config{}, fmt.Errorf("PAYMENT_BASE_URL is required")
	}

	return cfg, nil
}

func mustAtoi(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
