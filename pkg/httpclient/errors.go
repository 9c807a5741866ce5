package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuthExpired はバックエンドがセッション切れ（401）を通知したことを表す。
// ステータス401の*HTTPErrorはerrors.Isでこのエラーに一致する。
var ErrAuthExpired = errors.New("セッションの有効期限が切れました")

// NetworkError はレスポンスを受け取れなかった通信エラー。
// タイムアウト、接続拒否、DNS解決失敗などが該当する。
type NetworkError struct {
	// Method はHTTPメソッド。
	Method string
	// URL はリクエスト先のURL。
	URL string
	// Err は下位のトランスポートエラー。
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("通信エラー: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout はタイムアウトによる失敗の場合にtrueを返す。
func (e *NetworkError) Timeout() bool {
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

// HTTPError はレスポンスを受け取ったが、HTTPステータスが2xxでないか
// エンベロープが失敗を示している場合のエラー。
type HTTPError struct {
	// StatusCode は分類に用いたステータスコード。
	// エンベロープのstatus_codeがあればそれを、なければHTTPステータスを使う。
	StatusCode int
	// HTTPStatus は実際のHTTPレスポンスステータス。
	HTTPStatus int
	// Message はサーバーが返したメッセージ。
	Message string
	// Body はレスポンスボディ。
	Body []byte
	// Envelope は解釈できた場合のエンベロープ。
	Envelope *Envelope
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTPエラー: status=%d, message=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTPエラー: status=%d, body=%s", e.StatusCode, string(e.Body))
}

// Is はセッション切れの場合にErrAuthExpiredと一致させる。
func (e *HTTPError) Is(target error) bool {
	return target == ErrAuthExpired && e.AuthExpired()
}

// AuthExpired はこのエラーがセッション切れを表す場合にtrueを返す。
func (e *HTTPError) AuthExpired() bool {
	return e.StatusCode == http.StatusUnauthorized || e.HTTPStatus == http.StatusUnauthorized
}

// StorageError はトークンストアの読み書きに失敗したことを表す。
type StorageError struct {
	// Op は失敗した操作（get / set / remove）。
	Op string
	// Err は下位のエラー。
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("トークンストアの%s操作に失敗: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsAuthExpired はerrがセッション切れによる失敗であればtrueを返す。
// クライアントが既にアラートを表示しているため、呼び出し側は独自のアラートを省略できる。
func IsAuthExpired(err error) bool {
	return errors.Is(err, ErrAuthExpired)
}
