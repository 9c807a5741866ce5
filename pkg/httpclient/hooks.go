package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
)

const (
	sessionExpiredTitle   = "Session Expired"
	sessionExpiredMessage = "Your session has expired. Please log in again."
	failureTitle          = "Unable to Process"
	alertButtonText       = "Okay"

	redacted = "[REDACTED]"
)

// sensitiveBodyKeys はリクエストボディのログで伏せるキー。
var sensitiveBodyKeys = map[string]struct{}{
	"password":         {},
	"confirm_password": {},
	"access_token":     {},
}

// stampStart は送信開始時刻を記録する。
func (c *Client) stampStart(_ context.Context, ex *Exchange) error {
	ex.StartedAt = c.now()
	return nil
}

// attachToken は保存されているトークンをAuthorizationヘッダーに設定する。
// トークンの読み出しに失敗してもリクエストは中断せず、認証なしで送信する。
func (c *Client) attachToken(ctx context.Context, ex *Exchange) error {
	if c.tokens == nil {
		return nil
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		serr := &StorageError{Op: "get", Err: err}
		meta := c.exchangeMeta(ex)
		meta["error"] = serr.Error()
		c.telemetry.Warn("トークンを読み出せないため認証なしで送信する", meta)
		return nil
	}
	if token != "" {
		ex.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// logRequest は送信するリクエストをログに記録する。トークンは伏せる。
func (c *Client) logRequest(_ context.Context, ex *Exchange) error {
	meta := c.exchangeMeta(ex)
	meta["headers"] = redactHeaders(ex.Header)
	if ex.Method != http.MethodGet && len(ex.Body) > 0 {
		meta["body"] = redactBody(ex.Body)
	}
	c.telemetry.Info("APIリクエスト", meta)
	return nil
}

// measure は経過時間を算出する。
func (c *Client) measure(_ context.Context, ex *Exchange) {
	ex.Duration = c.now().Sub(ex.StartedAt)
	if ex.Response != nil {
		ex.Response.Duration = ex.Duration
	}
}

// logResponse は受信したレスポンスをログに記録する。
// 内容はverboseの場合のみ含める。
func (c *Client) logResponse(_ context.Context, ex *Exchange) {
	if ex.Response == nil {
		return
	}
	meta := c.exchangeMeta(ex)
	meta["status"] = ex.Response.StatusCode
	meta["duration_ms"] = ex.Duration.Milliseconds()
	meta["size"] = len(ex.Response.Body)
	if c.verbose {
		meta["data"] = string(ex.Response.Body)
	}
	c.telemetry.Info("APIレスポンス", meta)
}

// classify は結果を成功・セッション切れ・その他の失敗に分類し、
// 失敗の場合はログとアラートを済ませてex.Errに呼び出し元へ返すエラーを設定する。
func (c *Client) classify(ctx context.Context, ex *Exchange) {
	if ex.Err != nil {
		meta := c.exchangeMeta(ex)
		meta["duration_ms"] = ex.Duration.Milliseconds()
		meta["message"] = ex.Err.Error()
		var nerr *NetworkError
		if errors.As(ex.Err, &nerr) {
			meta["timeout"] = nerr.Timeout()
		}
		c.telemetry.Error(ex.Err, meta)
		// 呼び出し元が中断した場合はユーザーに知らせるものがない
		if errors.Is(ex.Err, context.Canceled) {
			return
		}
		c.showFailure("")
		return
	}

	resp := ex.Response
	env := resp.Envelope
	if isSuccessStatus(resp.StatusCode) && (env == nil || env.Succeeded()) {
		return
	}

	herr := &HTTPError{
		StatusCode: resp.StatusCode,
		HTTPStatus: resp.StatusCode,
		Body:       resp.Body,
		Envelope:   env,
	}
	if env != nil {
		herr.Message = env.Message
		if env.StatusCode != 0 {
			herr.StatusCode = int(env.StatusCode)
		}
	}
	ex.Err = herr

	meta := c.exchangeMeta(ex)
	meta["status"] = resp.StatusCode
	meta["status_code"] = herr.StatusCode
	meta["message"] = herr.Message
	if env != nil {
		meta["envelope_status"] = env.State().String()
	}
	c.telemetry.Error(herr, meta)

	if herr.AuthExpired() {
		c.expireSession(ctx, ex)
		return
	}
	c.showFailure(herr.Message)
}

// expireSession はトークンを削除し、セッション切れのアラートを表示する。
// ログイン画面への遷移はアラートが閉じられたときに一度だけ行う。
// アラートの表示先がない場合はその場で遷移する。
func (c *Client) expireSession(ctx context.Context, ex *Exchange) {
	if c.tokens != nil {
		if err := c.tokens.RemoveToken(ctx); err != nil {
			serr := &StorageError{Op: "remove", Err: err}
			meta := c.exchangeMeta(ex)
			meta["error"] = serr.Error()
			c.telemetry.Warn("セッショントークンの削除に失敗", meta)
		}
	}
	for _, fn := range c.expiredHandlers {
		fn(ctx)
	}

	var once sync.Once
	navigate := func() {
		once.Do(func() {
			if c.navigator != nil {
				c.navigator.NavigateTo(c.loginRoute)
			}
		})
	}
	if c.alerts == nil {
		navigate()
		return
	}
	c.alerts.Show(Alert{
		Title:      sessionExpiredTitle,
		Message:    sessionExpiredMessage,
		ButtonText: alertButtonText,
		OnClose:    navigate,
	})
}

// showFailure は汎用の失敗アラートを表示する。
func (c *Client) showFailure(message string) {
	if c.alerts == nil {
		return
	}
	if strings.TrimSpace(message) == "" {
		message = FallbackMessage
	}
	c.alerts.Show(Alert{
		Title:      failureTitle,
		Message:    message,
		ButtonText: alertButtonText,
	})
}

// exchangeMeta はログに共通で含める項目を返す。
func (c *Client) exchangeMeta(ex *Exchange) map[string]any {
	return map[string]any{
		"request_id": ex.ID,
		"method":     ex.Method,
		"url":        ex.URL,
	}
}

func isSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}

// redactHeaders はログ用にヘッダーを平坦化し、認証情報を伏せる。
func redactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if strings.EqualFold(k, "Authorization") {
			out[k] = "Bearer " + redacted
			continue
		}
		out[k] = strings.Join(v, ", ")
	}
	return out
}

// redactBody はJSONボディのうちパスワードやトークンを伏せた文字列を返す。
// JSONオブジェクトでない場合はそのまま返す。
func redactBody(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return string(body)
	}
	for k := range obj {
		if _, ok := sensitiveBodyKeys[strings.ToLower(k)]; ok {
			obj[k] = redacted
		}
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return string(body)
	}
	return string(b)
}
