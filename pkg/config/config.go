// Package config はアプリケーション設定をYAMLファイルと環境変数から読み込む。
//
// 優先順位は 既定値 < YAMLファイル < 環境変数。環境変数は INVEST_ 接頭辞を持ち、
// 階層は "__" で区切る（例: INVEST_API__BASE_URL は api.base_url）。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix は設定を上書きする環境変数の接頭辞。
const EnvPrefix = "INVEST_"

// Config はアプリケーション全体の設定。
type Config struct {
	API        APIConfig        `koanf:"api"`
	Log        LogConfig        `koanf:"log"`
	TokenStore TokenStoreConfig `koanf:"token_store"`
	Sentry     SentryConfig     `koanf:"sentry"`
	Stub       StubConfig       `koanf:"stub"`
	Quotes     QuotesConfig     `koanf:"quotes"`
}

// APIConfig はAPIクライアントの設定。
type APIConfig struct {
	BaseURL    string        `koanf:"base_url" validate:"required,url"`
	Timeout    time.Duration `koanf:"timeout" validate:"gt=0"`
	Verbose    bool          `koanf:"verbose"`
	LoginRoute string        `koanf:"login_route" validate:"required"`
}

// LogConfig はログ出力の設定。
type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

// TokenStoreConfig はセッショントークンの保存先の設定。
type TokenStoreConfig struct {
	Driver string `koanf:"driver" validate:"oneof=memory sqlite"`
	Path   string `koanf:"path" validate:"required_if=Driver sqlite"`
}

// SentryConfig はSentryへの送信設定。DSNが空なら送信しない。
type SentryConfig struct {
	DSN         string `koanf:"dsn" validate:"omitempty,url"`
	Environment string `koanf:"environment"`
}

// StubConfig は開発用バックエンドの設定。
type StubConfig struct {
	Port         int      `koanf:"port" validate:"min=1,max=65535"`
	JWTSecret    string   `koanf:"jwt_secret"`
	DBPath       string   `koanf:"db_path" validate:"required"`
	AllowOrigins []string `koanf:"allow_origins"`
}

// QuotesConfig は相場APIの設定。
type QuotesConfig struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	Symbols []string      `koanf:"symbols" validate:"min=1,dive,required"`
	Refresh time.Duration `koanf:"refresh" validate:"gt=0"`
}

// Default は既定値の設定を返す。
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:    "http://localhost:8080",
			Timeout:    10 * time.Second,
			LoginRoute: "LOGIN",
		},
		Log: LogConfig{
			Level: "info",
		},
		TokenStore: TokenStoreConfig{
			Driver: "sqlite",
			Path:   "investapp.db",
		},
		Sentry: SentryConfig{
			Environment: "development",
		},
		Stub: StubConfig{
			Port:   8080,
			DBPath: "stubapi.db",
		},
		Quotes: QuotesConfig{
			BaseURL: "https://query1.finance.yahoo.com",
			Symbols: []string{"AAPL", "BTC-USD", "ETH-USD"},
			Refresh: time.Minute,
		},
	}
}

// Load は既定値にYAMLファイルと環境変数を重ねた設定を返す。
// pathが空、またはファイルが存在しない場合はファイルを読まない。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("設定ファイル %s の読み込みに失敗: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("設定の展開に失敗: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey は INVEST_API__BASE_URL を api.base_url に変換する。
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate は設定値を検証し、失敗した項目をすべて列挙したエラーを返す。
func Validate(cfg *Config) error {
	validate := validator.New()
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("設定の検証に失敗: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("設定の検証に失敗:")
	for _, e := range errs {
		fmt.Fprintf(&sb, "\n  • %s: '%s' を満たさない (値: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return errors.New(sb.String())
}
