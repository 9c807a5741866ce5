// Package logger は設定からlogrusのロガーを組み立てる。
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// New は指定レベルで出力先outに書き込むロガーを生成する。
// 解釈できないレベルはinfoとして扱う。outがnilの場合は標準エラー出力に書き込む。
func New(level string, out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stderr
	}

	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(ParseLevel(level))
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableQuote:    true,
		PadLevelText:    true,
	})
	return log
}

// ParseLevel はレベル名をlogrusのレベルに変換する。
func ParseLevel(level string) logrus.Level {
	lv, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return lv
}
