package httpclient

import (
	"net/http"
	"time"
)

// Request は1回のAPI呼び出しを記述する。
// Dispatchはこの値を変更しないため、同じRequestを複数回送信できる。
type Request struct {
	// Method はHTTPメソッド。空の場合はGET。
	Method string
	// Path はベースURLからの相対パス。クエリ文字列を含んでもよい。
	Path string
	// Header は追加のリクエストヘッダー。
	Header http.Header
	// Body はリクエストボディ。[]byteはそのまま、それ以外はJSONにシリアライズする。
	Body any
}

// Response はクライアントが受け取ったレスポンス。
type Response struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Header はレスポンスヘッダー。
	Header http.Header
	// Body はレスポンスボディ全体。
	Body []byte
	// Envelope はボディをエンベロープとして解釈できた場合の値。できなければnil。
	Envelope *Envelope
	// Duration は送信開始から受信完了までの経過時間。
	Duration time.Duration
}

// Exchange は1回のディスパッチにおけるリクエストとその結果をまとめた作業領域。
// パイプラインの各フックはこの値を読み書きする。ディスパッチごとに新しく生成されるため、
// 同時に実行されている他のリクエストと状態を共有しない。
type Exchange struct {
	// ID はリクエストの識別子。X-Request-IDヘッダーとログに使う。
	ID string
	// Method はHTTPメソッド。
	Method string
	// URL はベースURLとパスを結合した完全なURL。
	URL string
	// Header は送信するヘッダー。
	Header http.Header
	// Body はシリアライズ済みのリクエストボディ。
	Body []byte
	// StartedAt は送信開始時刻。
	StartedAt time.Time
	// Duration は送信開始から結果確定までの経過時間。
	Duration time.Duration
	// Response は受信したレスポンス。通信エラーの場合はnil。
	Response *Response
	// Err はこの呼び出しの結果として呼び出し元に返すエラー。
	Err error
}
