package stubapi

import (
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// chartBasePrices は開発用に返す銘柄ごとの始値。
var chartBasePrices = map[string]float64{
	"AAPL":    190,
	"BTC-USD": 65000,
	"ETH-USD": 3200,
}

// chartSteps は始値に対する各時点の終値の倍率。nilは取引のなかった時点。
var chartSteps = []*float64{ptr(1.0), nil, ptr(1.005), ptr(1.01)}

func ptr(v float64) *float64 { return &v }

// chartMeta は銘柄の付帯情報。
type chartMeta struct {
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
}

// chartQuote は時点ごとの終値。
type chartQuote struct {
	Close []*float64 `json:"close"`
}

// chartResult は1銘柄分のチャート。
type chartResult struct {
	Meta       chartMeta `json:"meta"`
	Timestamp  []int64   `json:"timestamp"`
	Indicators struct {
		Quote []chartQuote `json:"quote"`
	} `json:"indicators"`
}

// chartError は銘柄が見つからない場合のエラー。
type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// chartEnvelope は相場APIのレスポンス形式。エンベロープ形式ではない。
type chartEnvelope struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

// handleChart は1分足の終値を返すハンドラを返す。
// 終値は始値から1%上昇する固定の系列で、途中に取引のない時点を1つ含む。
func (s *Server) handleChart() gin.HandlerFunc {
	return func(c *gin.Context) {
		symbol := strings.ToUpper(c.Param("symbol"))

		var res chartEnvelope
		base, ok := chartBasePrices[symbol]
		if !ok {
			res.Chart.Error = &chartError{Code: "Not Found", Description: "No data found, symbol may be delisted"}
			c.JSON(http.StatusNotFound, res)
			return
		}

		start := s.now().UTC().Truncate(time.Minute).Add(-time.Duration(len(chartSteps)-1) * time.Minute)
		r := chartResult{Meta: chartMeta{Symbol: symbol, Currency: "USD"}}
		closes := make([]*float64, 0, len(chartSteps))
		for i, step := range chartSteps {
			r.Timestamp = append(r.Timestamp, start.Add(time.Duration(i)*time.Minute).Unix())
			if step == nil {
				closes = append(closes, nil)
				continue
			}
			closes = append(closes, ptr(math.Round(base*(*step)*100)/100))
		}
		r.Indicators.Quote = []chartQuote{{Close: closes}}
		res.Chart.Result = []chartResult{r}
		c.JSON(http.StatusOK, res)
	}
}
