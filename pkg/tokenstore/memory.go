package tokenstore

import (
	"context"
	"sync"
)

// Memory はプロセス内にトークンを保持するストア。テストや一時的な実行に使う。
type Memory struct {
	mu    sync.RWMutex
	token string
}

// NewMemory は空のメモリストアを生成する。
func NewMemory() *Memory {
	return &Memory{}
}

// Token は保存されているトークンを返す。なければ空文字列。
func (m *Memory) Token(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

// SetToken はトークンを保存する。
func (m *Memory) SetToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// RemoveToken はトークンを削除する。
func (m *Memory) RemoveToken(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
