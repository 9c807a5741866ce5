// Package session はトークンストア上のセッション状態を管理する。
//
// 状態は Anonymous -> Authenticated -> Anonymous の順に遷移する。
// 遷移のたびにpkg/eventのイベントを記録し、テレメトリに送る。
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nao1215/investapp/pkg/event"
	"github.com/nao1215/investapp/pkg/httpclient"
)

// ErrEmptyToken は空のトークンで認証しようとしたときに返される。
var ErrEmptyToken = errors.New("トークンが空です")

// State はセッションの状態。
type State int

const (
	// Anonymous はトークンを持たない状態。
	Anonymous State = iota
	// Authenticated はトークンを保持している状態。
	Authenticated
)

// String は状態名を返す。
func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Manager はセッションの状態遷移を担う。複数のゴルーチンから安全に使える。
type Manager struct {
	tokens    httpclient.TokenStore
	telemetry httpclient.Telemetry

	mu     sync.Mutex
	events []event.Event
}

// NewManager はtokensを状態の保存先とするManagerを生成する。
// telemetryがnilの場合、遷移は記録されるが送信されない。
func NewManager(tokens httpclient.TokenStore, telemetry httpclient.Telemetry) *Manager {
	return &Manager{tokens: tokens, telemetry: telemetry}
}

// State は現在の状態を返す。トークンを読めない場合はAnonymousとエラーを返す。
func (m *Manager) State(ctx context.Context) (State, error) {
	token, err := m.tokens.Token(ctx)
	if err != nil {
		return Anonymous, &httpclient.StorageError{Op: "get", Err: err}
	}
	if token == "" {
		return Anonymous, nil
	}
	return Authenticated, nil
}

// Authenticate はトークンを保存してAuthenticatedに遷移する。
func (m *Manager) Authenticate(ctx context.Context, token string, data event.SessionAuthenticatedData) error {
	if token == "" {
		return ErrEmptyToken
	}
	if err := m.tokens.SetToken(ctx, token); err != nil {
		return &httpclient.StorageError{Op: "set", Err: err}
	}
	m.record(event.TypeSessionAuthenticated, data)
	return nil
}

// Expire はサーバーが認証切れを返したときに呼ばれる。
// トークンの削除はクライアントが済ませているため、遷移の記録だけを行う。
func (m *Manager) Expire(_ context.Context) {
	m.record(event.TypeSessionExpired, event.SessionExpiredData{Reason: "unauthorized"})
}

// Logout はトークンを削除してAnonymousに遷移する。
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.tokens.RemoveToken(ctx); err != nil {
		return &httpclient.StorageError{Op: "remove", Err: err}
	}
	m.record(event.TypeSessionLoggedOut, event.SessionLoggedOutData{})
	return nil
}

// Events はこれまでに記録したイベントを発生順に返す。
func (m *Manager) Events() []event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]event.Event, len(m.events))
	copy(out, m.events)
	return out
}

func (m *Manager) record(eventType event.Type, data any) {
	ev, err := event.New(eventType, data)
	if err != nil {
		if m.telemetry != nil {
			m.telemetry.Error(fmt.Errorf("セッションイベントの生成に失敗: %w", err), map[string]any{"type": string(eventType)})
		}
		return
	}

	m.mu.Lock()
	m.events = append(m.events, *ev)
	m.mu.Unlock()

	if m.telemetry == nil {
		return
	}
	meta := map[string]any{
		"event_id": ev.ID,
		"type":     string(ev.Type),
	}
	// データの各項目はログの検索用に平坦化して載せる
	fields, err := event.DecodeData[map[string]any](ev)
	if err != nil {
		meta["data"] = string(ev.Data)
	} else {
		for k, v := range *fields {
			meta["data."+k] = v
		}
	}
	m.telemetry.Info("セッション状態が遷移しました", meta)
}
