package httpclient

import "context"

// PreRequestHook は送信前にExchangeを加工するフック。
// エラーを返すとそれ以降のフックは実行されず、リクエストは送信されない。
type PreRequestHook func(ctx context.Context, ex *Exchange) error

// PostResponseHook は結果確定後にExchangeを検査するフック。
// 通信エラーの場合もレスポンス受信の場合も同じ順序で呼ばれる。
type PostResponseHook func(ctx context.Context, ex *Exchange)

// pipeline は送信前と受信後のフックを決められた順序で実行する。
type pipeline struct {
	pre  []PreRequestHook
	post []PostResponseHook
}

// before は送信前フックを順に実行する。
func (p pipeline) before(ctx context.Context, ex *Exchange) error {
	for _, h := range p.pre {
		if err := h(ctx, ex); err != nil {
			return err
		}
	}
	return nil
}

// after は受信後フックを順に実行する。
func (p pipeline) after(ctx context.Context, ex *Exchange) {
	for _, h := range p.post {
		h(ctx, ex)
	}
}
