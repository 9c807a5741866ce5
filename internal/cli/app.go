// Package cli は投資アプリのバックエンドを操作するコマンドラインを提供する。
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nao1215/investapp/internal/console"
	"github.com/nao1215/investapp/internal/investapi"
	"github.com/nao1215/investapp/pkg/config"
	"github.com/nao1215/investapp/pkg/httpclient"
	"github.com/nao1215/investapp/pkg/logger"
	"github.com/nao1215/investapp/pkg/middleware"
	"github.com/nao1215/investapp/pkg/session"
	"github.com/nao1215/investapp/pkg/telemetry"
	"github.com/nao1215/investapp/pkg/tokenstore"
)

// routeHints は画面名ごとに次に実行するとよいコマンド。
var routeHints = map[string]string{
	investapi.RouteLogin:        "investcli login",
	investapi.RouteUserHome:     "investcli home",
	investapi.RouteSubscription: "investcli plans",
}

// app は1回のコマンド実行で使う依存関係一式。
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	svc     *investapi.Service
	quotes  *investapi.QuoteService
	session *session.Manager
	nav     *console.Navigator
	tokens  httpclient.TokenStore
	// sentry はDSNが設定されている場合のみ非nil。
	sentry *telemetry.Sentry

	closers []func()
}

// options はルートコマンドのフラグ。
type options struct {
	configPath string
	verbose    bool
	yes        bool
}

// streams はコマンドの入出力先。
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

// newApp は設定を読み込み、ロガー・テレメトリ・トークンストア・クライアントを組み立てる。
func newApp(ctx context.Context, opts options, s streams) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.verbose {
		cfg.API.Verbose = true
		cfg.Log.Level = "debug"
	}

	log := logger.New(cfg.Log.Level, s.err)
	a := &app{cfg: cfg, log: log}

	sinks := []telemetry.Sink{telemetry.NewLogrus(log)}
	if cfg.Sentry.DSN != "" {
		sentrySink, err := telemetry.NewSentry(telemetry.SentryOptions{
			DSN:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		})
		if err != nil {
			// 送信できなくてもコマンドは続ける
			log.WithError(err).Warn("Sentryの初期化に失敗したためローカルログのみに記録します")
		} else {
			sentrySink.SetTag("component", "investcli")
			sinks = append(sinks, sentrySink)
			a.sentry = sentrySink
			a.closers = append(a.closers, func() { sentrySink.Flush(2 * time.Second) })
		}
	}
	tel := telemetry.Isolated(s.err, sinks...)

	store, err := openTokenStore(ctx, cfg.TokenStore, log)
	if err != nil {
		a.close()
		return nil, err
	}
	if closer, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, func() { _ = closer.Close() })
	}
	a.tokens = store
	a.identify(ctx)

	var alertIn io.Reader
	if !opts.yes {
		alertIn = s.in
	}
	a.nav = console.NewNavigator(s.err, routeHints)
	a.session = session.NewManager(store, tel)

	client := httpclient.New(cfg.API.BaseURL, store,
		httpclient.WithTimeout(cfg.API.Timeout),
		httpclient.WithAlertSurface(console.NewAlerts(s.err, alertIn)),
		httpclient.WithNavigator(a.nav),
		httpclient.WithTelemetry(tel),
		httpclient.WithLoginRoute(cfg.API.LoginRoute),
		httpclient.WithVerbose(cfg.API.Verbose),
		httpclient.WithSessionExpiredHandler(a.session.Expire),
	)
	a.svc = investapi.NewService(client, a.session)

	// 相場APIは認証もアラートも使わない
	a.quotes = investapi.NewQuoteService(httpclient.New(cfg.Quotes.BaseURL, nil,
		httpclient.WithTimeout(cfg.API.Timeout),
		httpclient.WithTelemetry(tel),
		httpclient.WithVerbose(cfg.API.Verbose),
	))
	return a, nil
}

// identify は保存されているトークンの利用者をSentryのイベントに紐付ける。
// トークンがなければ紐付けを解除する。Sentryが無効なら何もしない。
func (a *app) identify(ctx context.Context) {
	if a.sentry == nil {
		return
	}
	token, err := a.tokens.Token(ctx)
	if err != nil || token == "" {
		a.sentry.SetUser("", "")
		return
	}
	claims, err := middleware.PeekClaims(token)
	if err != nil {
		a.log.WithError(err).Debug("トークンから利用者を特定できません")
		a.sentry.SetUser("", "")
		return
	}
	a.sentry.SetUser(claims.UserID, claims.Phone)
}

// close は開いた資源を逆順に解放する。
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openTokenStore(ctx context.Context, cfg config.TokenStoreConfig, log *logrus.Logger) (httpclient.TokenStore, error) {
	switch cfg.Driver {
	case "memory":
		return tokenstore.NewMemory(), nil
	case "sqlite":
		store, err := tokenstore.OpenSQLite(ctx, cfg.Path, log)
		if err != nil {
			return nil, fmt.Errorf("トークンストアを開けません: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("未知のトークンストア: %s", cfg.Driver)
	}
}
