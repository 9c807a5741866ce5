package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/investapp/pkg/telemetry"
)

const (
	// DefaultTimeout は1リクエストあたりのタイムアウト。
	DefaultTimeout = 10 * time.Second
	// DefaultLoginRoute はセッション切れ時に遷移するログイン画面のルート名。
	DefaultLoginRoute = "LOGIN"
	// FallbackMessage はサーバーからメッセージが得られない場合に表示する文言。
	FallbackMessage = "Something went wrong. Please try again later."
)

// Client はバックエンドAPI呼び出しの唯一の窓口となるHTTPクライアント。
// 認証ヘッダーの付与、構造化ログ、失敗の分類を一貫して行う。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。Newの最後に確定する。
	httpClient *http.Client
	// baseHTTP はWithHTTPClientで渡されたクライアント。直接は変更しない。
	baseHTTP *http.Client
	// timeout はWithTimeoutで指定されたタイムアウト。0なら未指定。
	timeout time.Duration
	// baseURL は接続先APIのベースURL（末尾のスラッシュなし）。
	baseURL string
	// tokens はセッショントークンの保存先。
	tokens TokenStore
	// alerts はアラートの表示先。nilの場合は表示しない。
	alerts AlertSurface
	// navigator は画面遷移の実行先。nilの場合は遷移しない。
	navigator Navigator
	// telemetry は構造化ログの送信先。パニックしないよう包んで保持する。
	telemetry Telemetry
	// fallback はテレメトリが失敗したときの書き出し先。
	fallback io.Writer
	// loginRoute はセッション切れ時の遷移先。
	loginRoute string
	// verbose がtrueの場合はレスポンス内容もログに含める。
	verbose bool
	// extraPre と extraPost は利用者が追加したフック。
	extraPre  []PreRequestHook
	extraPost []PostResponseHook
	// expiredHandlers はセッション切れでトークンを削除した後に呼ばれる。
	expiredHandlers []func(ctx context.Context)
	// now と newID はテストで差し替える。
	now   func() time.Time
	newID func() string

	pipeline pipeline
}

// Option はClientの設定を変更する。
type Option func(*Client)

// WithTimeout は1リクエストあたりのタイムアウトを設定する。0以下の値は無視する。
// WithHTTPClientとの順序に関係なく適用される。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient は内部で使用するHTTPクライアントを差し替える。
// 渡したクライアントは複製して使うため、呼び出し元の設定は変更されない。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.baseHTTP = hc
		}
	}
}

// WithAlertSurface はアラートの表示先を設定する。
func WithAlertSurface(a AlertSurface) Option {
	return func(c *Client) { c.alerts = a }
}

// WithNavigator は画面遷移の実行先を設定する。
func WithNavigator(n Navigator) Option {
	return func(c *Client) { c.navigator = n }
}

// WithTelemetry は構造化ログの送信先を設定する。
func WithTelemetry(t Telemetry) Option {
	return func(c *Client) {
		if t != nil {
			c.telemetry = t
		}
	}
}

// WithTelemetryFallback はテレメトリがパニックしたときの書き出し先を設定する。
// 既定は標準エラー出力。
func WithTelemetryFallback(w io.Writer) Option {
	return func(c *Client) {
		if w != nil {
			c.fallback = w
		}
	}
}

// WithLoginRoute はセッション切れ時の遷移先ルート名を設定する。
func WithLoginRoute(route string) Option {
	return func(c *Client) {
		if route != "" {
			c.loginRoute = route
		}
	}
}

// WithVerbose はレスポンス内容のログ出力を切り替える。
func WithVerbose(v bool) Option {
	return func(c *Client) { c.verbose = v }
}

// WithPreRequestHook はトークン付与の後、リクエストログの前に実行するフックを追加する。
func WithPreRequestHook(h PreRequestHook) Option {
	return func(c *Client) { c.extraPre = append(c.extraPre, h) }
}

// WithPostResponseHook はレスポンスログの後、失敗の分類の前に実行するフックを追加する。
func WithPostResponseHook(h PostResponseHook) Option {
	return func(c *Client) { c.extraPost = append(c.extraPost, h) }
}

// WithSessionExpiredHandler はセッション切れでトークンを削除した後に呼ぶ関数を追加する。
func WithSessionExpiredHandler(fn func(ctx context.Context)) Option {
	return func(c *Client) { c.expiredHandlers = append(c.expiredHandlers, fn) }
}

// New は新しいAPIクライアントを生成する。
// baseURLには接続先APIのベースURL（例: "https://api.example.com"）を指定する。
// tokensがnilの場合、Authorizationヘッダーは付与されない。
func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		telemetry:  nopTelemetry{},
		loginRoute: DefaultLoginRoute,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient = c.buildHTTPClient()
	// ログの失敗でディスパッチを止めない
	c.telemetry = telemetry.Safe(c.telemetry, c.fallback)

	c.pipeline = pipeline{
		pre: append(append([]PreRequestHook{c.stampStart, c.attachToken}, c.extraPre...),
			c.logRequest),
		post: append(append([]PostResponseHook{c.measure, c.logResponse}, c.extraPost...),
			c.classify),
	}
	return c
}

// buildHTTPClient はオプションの適用後に使用するHTTPクライアントを組み立てる。
// タイムアウトの優先順位は WithTimeout > 渡したクライアントの値 > DefaultTimeout。
func (c *Client) buildHTTPClient() *http.Client {
	hc := &http.Client{}
	if c.baseHTTP != nil {
		copied := *c.baseHTTP
		hc = &copied
	}
	switch {
	case c.timeout > 0:
		hc.Timeout = c.timeout
	case hc.Timeout == 0:
		hc.Timeout = DefaultTimeout
	}
	return hc
}

// Dispatch はリクエストを加工して送信し、結果を分類して返す。
// 失敗した場合はログとアラートを済ませたうえでエラーを返す。HTTPErrorの場合は
// 受信したResponseも併せて返す。返るエラーは
// *NetworkError、*HTTPError（セッション切れの場合はErrAuthExpiredにも一致）、
// またはリクエストの組み立て自体に失敗した場合のエラーのいずれか。
func (c *Client) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	ex, err := c.newExchange(req)
	if err != nil {
		c.telemetry.Error(err, map[string]any{"stage": "prepare"})
		return nil, err
	}

	if err := c.pipeline.before(ctx, ex); err != nil {
		c.telemetry.Error(err, c.exchangeMeta(ex))
		return nil, err
	}

	ex.Response, ex.Err = c.send(ctx, ex)
	c.pipeline.after(ctx, ex)

	return ex.Response, ex.Err
}

// Get は指定パスにGETリクエストを送信する。
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Dispatch(ctx, &Request{Method: http.MethodGet, Path: path})
}

// Post は指定パスにJSONボディでPOSTリクエストを送信する。
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Dispatch(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// GetJSON は指定パスにGETリクエストを送信し、エンベロープのdataをresultにデシリアライズする。
// レスポンスがエンベロープでない場合はボディ全体をデシリアライズする。
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	return decodeResult(resp, result)
}

// PostJSON は指定パスにJSONボディでPOSTリクエストを送信し、
// エンベロープのdataをresultにデシリアライズする。
func (c *Client) PostJSON(ctx context.Context, path string, body any, result any) error {
	resp, err := c.Post(ctx, path, body)
	if err != nil {
		return err
	}
	return decodeResult(resp, result)
}

func decodeResult(resp *Response, result any) error {
	if result == nil || resp == nil {
		return nil
	}
	if resp.Envelope != nil {
		return resp.Envelope.DecodeData(result)
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, result); err != nil {
		return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
	}
	return nil
}

// newExchange はRequestから今回のディスパッチ専用のExchangeを組み立てる。
func (c *Client) newExchange(req *Request) (*Exchange, error) {
	if req == nil {
		return nil, errors.New("リクエストがnil")
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.resolve(req.Path)
	if err != nil {
		return nil, err
	}

	header := req.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}

	var body []byte
	if req.Body != nil {
		switch b := req.Body.(type) {
		case []byte:
			body = b
		case json.RawMessage:
			body = b
		default:
			body, err = json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
			}
		}
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", "application/json")
		}
	}
	if header.Get("Accept") == "" {
		header.Set("Accept", "application/json")
	}

	id := c.newID()
	header.Set("X-Request-ID", id)

	return &Exchange{
		ID:     id,
		Method: method,
		URL:    target,
		Header: header,
		Body:   body,
	}, nil
}

// resolve はベースURLとパスを結合して完全なURLを返す。
func (c *Client) resolve(path string) (string, error) {
	target := c.baseURL
	if path != "" {
		target += "/" + strings.TrimLeft(path, "/")
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("URLの組み立てに失敗: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("URLが不正: %q", target)
	}
	return target, nil
}

// send はExchangeの内容でHTTPリクエストを送信し、ボディを読み切って返す。
func (c *Client) send(ctx context.Context, ex *Exchange) (*Response, error) {
	var bodyReader io.Reader
	if len(ex.Body) > 0 {
		bodyReader = bytes.NewReader(ex.Body)
	}

	req, err := http.NewRequestWithContext(ctx, ex.Method, ex.URL, bodyReader)
	if err != nil {
		return nil, &NetworkError{Method: ex.Method, URL: ex.URL, Err: err}
	}
	req.Header = ex.Header.Clone()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Method: ex.Method, URL: ex.URL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Method: ex.Method, URL: ex.URL, Err: fmt.Errorf("レスポンスの読み取りに失敗: %w", err)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Envelope:   decodeEnvelope(body),
	}, nil
}
