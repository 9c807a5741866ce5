// Package event はセッションのライフサイクルで発生するイベントを表す。
package event

import (
	"encoding/json"
	"time"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeSessionAuthenticated はトークンを受け取りセッションが開始されたことを表す。
	TypeSessionAuthenticated Type = "SessionAuthenticated"
	// TypeSessionExpired はサーバーが認証切れを返し、セッションが失効したことを表す。
	TypeSessionExpired Type = "SessionExpired"
	// TypeSessionLoggedOut は利用者の操作でセッションが終了したことを表す。
	TypeSessionLoggedOut Type = "SessionLoggedOut"
)

// Event はセッションで発生した1件の出来事。
type Event struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// SessionAuthenticatedData はTypeSessionAuthenticatedのデータ。
type SessionAuthenticatedData struct {
	// Source はトークンを発行した操作（login / register）。
	Source string `json:"source"`
	// NextRoute は認証後に遷移する画面。
	NextRoute string `json:"next_route,omitempty"`
}

// SessionExpiredData はTypeSessionExpiredのデータ。
type SessionExpiredData struct {
	Reason string `json:"reason"`
}

// SessionLoggedOutData はTypeSessionLoggedOutのデータ。
type SessionLoggedOutData struct{}
