package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Sentry はSentryに送信するSink。
// infoはブレッドクラム、warnはメッセージ、errorは例外として送る。
type Sentry struct {
	hub *sentry.Hub
}

// SentryOptions はSentryクライアントの設定。
type SentryOptions struct {
	// DSN は送信先。空の場合はTransportが指定されていなければ送信しない。
	DSN string
	// Environment は環境名。
	Environment string
	// Release はアプリケーションのバージョン。
	Release string
	// Transport は送信処理の差し替え先。テストで使う。
	Transport sentry.Transport
}

// NewSentry は専用のHubを持つSentry Sinkを生成する。
func NewSentry(opts SentryOptions) (*Sentry, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         opts.DSN,
		Environment: opts.Environment,
		Release:     opts.Release,
		Transport:   opts.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("Sentryクライアントの初期化に失敗: %w", err)
	}
	return &Sentry{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

func (s *Sentry) Info(message string, meta map[string]any) {
	s.hub.AddBreadcrumb(&sentry.Breadcrumb{
		Category:  "api",
		Message:   message,
		Level:     sentry.LevelInfo,
		Data:      meta,
		Timestamp: time.Now(),
	}, nil)
}

func (s *Sentry) Warn(message string, meta map[string]any) {
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		scope.SetExtras(meta)
		s.hub.CaptureMessage(message)
	})
}

func (s *Sentry) Error(err error, meta map[string]any) {
	if err == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetExtras(meta)
		scope.SetTag("api_error", "true")
		s.hub.CaptureException(err)
	})
}

// SetTag は以降のすべてのイベントにタグを付ける。
func (s *Sentry) SetTag(key, value string) {
	s.hub.Scope().SetTag(key, value)
}

// SetUser は以降のすべてのイベントに利用者を紐付ける。空のidは紐付けを解除する。
func (s *Sentry) SetUser(id, username string) {
	if id == "" {
		s.hub.Scope().SetUser(sentry.User{})
		return
	}
	s.hub.Scope().SetUser(sentry.User{ID: id, Username: username})
}

// Flush は送信待ちのイベントをtimeoutまで待って送り出す。
func (s *Sentry) Flush(timeout time.Duration) bool {
	return s.hub.Flush(timeout)
}
