package httpclient

import "context"

// TokenStore は永続化されたセッショントークンへのアクセスを表す。
// トークンが保存されていない場合、Tokenは空文字列とnilを返す。
type TokenStore interface {
	// Token は保存されているトークンを返す。
	Token(ctx context.Context) (string, error)
	// SetToken はトークンを保存する。既存のトークンは上書きされる。
	SetToken(ctx context.Context, token string) error
	// RemoveToken は保存されているトークンを削除する。
	RemoveToken(ctx context.Context) error
}

// Alert はユーザーに表示するアラートの内容。
type Alert struct {
	// Title はアラートのタイトル。
	Title string
	// Message はアラートの本文。
	Message string
	// ButtonText は閉じるボタンのラベル。
	ButtonText string
	// OnClose はアラートが閉じられたときに呼ばれる。nilの場合は何もしない。
	OnClose func()
}

// AlertSurface はアラートを表示するUI上の面。
type AlertSurface interface {
	Show(alert Alert)
}

// Navigator は名前付きの画面へ遷移させる。
type Navigator interface {
	NavigateTo(route string)
}

// Telemetry は構造化ログの送信先。
// 実装がパニックしてもClientが回収し、フォールバック先に1行書き出す。
type Telemetry interface {
	Info(message string, meta map[string]any)
	Warn(message string, meta map[string]any)
	Error(err error, meta map[string]any)
}

type nopTelemetry struct{}

func (nopTelemetry) Info(string, map[string]any)  {}
func (nopTelemetry) Warn(string, map[string]any)  {}
func (nopTelemetry) Error(error, map[string]any) {}
