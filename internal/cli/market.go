package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/investapp/internal/console"
)

func newCalcCmd() *cobra.Command {
	var planID int64
	cmd := &cobra.Command{
		Use:   "calc <amount>",
		Short: "契約中のプランで運用したときの見込み額を計算する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("amountは数値で指定してください: %q", args[0])
			}
			est, err := appFrom(cmd).svc.EstimateReturns(cmd.Context(), planID, amount)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "プラン: %s (期待利回り %g%%)\n", est.Plan.Name, est.Plan.ExpectedReturn)
			fmt.Fprintf(out, "投資額: %.2f\n", est.Amount)
			fmt.Fprintf(out, "見込み額: %.2f\n", est.Returns)
			return nil
		},
	}
	cmd.Flags().Int64Var(&planID, "plan", 0, "計算に使うプランID（省略時は契約中の最初のプラン）")
	return cmd
}

func newQuotesCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "quotes",
		Short: "株式と暗号資産の相場を表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			ctx := cmd.Context()

			render := func() error {
				quotes, err := a.quotes.Quotes(ctx, a.cfg.Quotes.Symbols...)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(quotes))
				for _, q := range quotes {
					rows = append(rows, []string{q.Symbol, fmt.Sprintf("$%.2f", q.Price), fmt.Sprintf("%+.2f%%", q.ChangePercent)})
				}
				return console.WriteTable(cmd.OutOrStdout(), []string{"SYMBOL", "PRICE", "CHANGE"}, rows)
			}
			if !watch {
				return render()
			}

			ticker := time.NewTicker(a.cfg.Quotes.Refresh)
			defer ticker.Stop()
			for {
				// 取得に失敗しても次の更新で回復することがある
				if err := render(); err != nil && ctx.Err() == nil {
					a.log.WithError(err).Warn("相場の取得に失敗しました")
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "中断されるまで一定間隔で更新する")
	return cmd
}
