package telemetry

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Sink は構造化ログの送信先。
type Sink interface {
	Info(message string, meta map[string]any)
	Warn(message string, meta map[string]any)
	Error(err error, meta map[string]any)
}

// multi は複数の送信先に同じログを送る。
type multi []Sink

// Multi は複数の送信先に順に送るSinkを返す。nilは無視する。
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m multi) Info(message string, meta map[string]any) {
	for _, s := range m {
		s.Info(message, meta)
	}
}

func (m multi) Warn(message string, meta map[string]any) {
	for _, s := range m {
		s.Warn(message, meta)
	}
}

func (m multi) Error(err error, meta map[string]any) {
	for _, s := range m {
		s.Error(err, meta)
	}
}

// Isolated はsinksをそれぞれSafeで包んでからMultiで束ねる。
// ある送信先がパニックしても後続の送信先には配送される。
func Isolated(fallback io.Writer, sinks ...Sink) Sink {
	guarded := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			guarded = append(guarded, Safe(s, fallback))
		}
	}
	return Multi(guarded...)
}

// safe は下位のSinkのパニックを握りつぶし、fallbackに1行だけ書き出す。
type safe struct {
	next     Sink
	mu       sync.Mutex
	fallback io.Writer
}

// Safe はnextで発生したパニックを呼び出し元に伝播させないSinkを返す。
// 失敗した場合はfallback（nilなら標準エラー出力）にベストエフォートで書き出す。
func Safe(next Sink, fallback io.Writer) Sink {
	if fallback == nil {
		fallback = os.Stderr
	}
	return &safe{next: next, fallback: fallback}
}

func (s *safe) Info(message string, meta map[string]any) {
	defer s.recover("INFO", message)
	s.next.Info(message, meta)
}

func (s *safe) Warn(message string, meta map[string]any) {
	defer s.recover("WARN", message)
	s.next.Warn(message, meta)
}

func (s *safe) Error(err error, meta map[string]any) {
	defer s.recover("ERROR", errorMessage(err))
	s.next.Error(err, meta)
}

func (s *safe) recover(level, message string) {
	r := recover()
	if r == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintf(s.fallback, "%s: %s (telemetry failure: %v)\n", level, message, r)
}

func errorMessage(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}
