package investapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/investapp/pkg/httpclient"
)

// DefaultSymbols は相場を表示する既定の銘柄。
var DefaultSymbols = []string{"AAPL", "BTC-USD", "ETH-USD"}

// ErrNoQuoteData はチャートに終値が1つも含まれていないときに返される。
var ErrNoQuoteData = errors.New("終値がありません")

// Quote は1銘柄の直近の相場。
type Quote struct {
	// Symbol は表示用の銘柄名。"-USD" は取り除く。
	Symbol string
	// Price は直近の終値。
	Price float64
	// ChangePercent は最初の終値からの変化率（%）。
	ChangePercent float64
}

// chartResponse は相場APIのレスポンスのうち使う部分。
type chartResponse struct {
	Chart struct {
		Result []struct {
			Indicators struct {
				Quote []struct {
					// 取引のなかった時点はnullになる
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

// QuoteService は相場APIから株式と暗号資産の価格を取得する。
type QuoteService struct {
	client *httpclient.Client
}

// NewQuoteService は相場APIに接続したclientで取得するQuoteServiceを生成する。
func NewQuoteService(client *httpclient.Client) *QuoteService {
	return &QuoteService{client: client}
}

// Quotes はsymbolsの相場を並行に取得し、指定順に返す。
// symbolsが空の場合はDefaultSymbolsを使う。1銘柄でも失敗すればエラーを返す。
func (q *QuoteService) Quotes(ctx context.Context, symbols ...string) ([]Quote, error) {
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}

	quotes := make([]Quote, len(symbols))
	g, ctx := errgroup.WithContext(ctx)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			quote, err := q.quote(ctx, symbol)
			if err != nil {
				return err
			}
			quotes[i] = quote
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return quotes, nil
}

func (q *QuoteService) quote(ctx context.Context, symbol string) (Quote, error) {
	path := "/v8/finance/chart/" + url.PathEscape(symbol) + "?range=1d&interval=1m"

	var res chartResponse
	if err := q.client.GetJSON(ctx, path, &res); err != nil {
		return Quote{}, fmt.Errorf("%s の相場取得に失敗: %w", symbol, err)
	}

	var closes []float64
	for _, r := range res.Chart.Result {
		for _, quote := range r.Indicators.Quote {
			for _, c := range quote.Close {
				if c != nil {
					closes = append(closes, *c)
				}
			}
		}
	}
	if len(closes) == 0 {
		return Quote{}, fmt.Errorf("%s: %w", symbol, ErrNoQuoteData)
	}

	open, last := closes[0], closes[len(closes)-1]
	var change float64
	if open != 0 {
		change = (last - open) / open * 100
	}
	return Quote{
		Symbol:        strings.TrimSuffix(symbol, "-USD"),
		Price:         last,
		ChangePercent: change,
	}, nil
}
