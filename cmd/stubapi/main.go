// 開発用バックエンドのエントリポイント。
// CLIやクライアントの動作確認のため、本番APIと同じエンベロープ形式で応答する。
// 設定ファイルのパスは INVEST_CONFIG で指定する（既定: investapp.yaml）。
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/investapp/internal/stubapi"
	"github.com/nao1215/investapp/pkg/config"
	"github.com/nao1215/investapp/pkg/logger"
)

func main() {
	log := logger.New("info", os.Stderr)

	path := os.Getenv("INVEST_CONFIG")
	if path == "" {
		path = "investapp.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.WithError(err).Fatal("設定の読み込みに失敗")
	}
	log.SetLevel(logger.ParseLevel(cfg.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := stubapi.NewServer(ctx, cfg.Stub, log)
	if err != nil {
		log.WithError(err).Fatal("サーバーの初期化に失敗")
	}
	defer server.Close()

	log.WithField("port", cfg.Stub.Port).Info("開発用バックエンドを起動します")
	if err := server.Run(ctx); err != nil {
		log.WithError(err).Error("サーバーが異常終了しました")
		return
	}
	log.Info("開発用バックエンドを停止しました")
}
