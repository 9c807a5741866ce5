package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

type appKey struct{}

// rootState はコマンド実行中に組み立てたappを保持し、終了時に解放する。
type rootState struct {
	app *app
}

func (r *rootState) close() {
	if r.app != nil {
		r.app.close()
		r.app = nil
	}
}

// newRootCmd はinvestcliのルートコマンドを組み立てる。
// アラートと遷移はerrOutに、コマンドの結果はoutに書き出す。
func newRootCmd(in io.Reader, out, errOut io.Writer) (*cobra.Command, *rootState) {
	var opts options
	state := &rootState{}
	s := streams{in: in, out: out, err: errOut}

	cmd := &cobra.Command{
		Use:           "investcli",
		Short:         "投資アプリのバックエンドを操作するCLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			a, err := newApp(cmd.Context(), opts, s)
			if err != nil {
				return err
			}
			state.app = a
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "investapp.yaml", "設定ファイル(YAML)のパス")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "レスポンスの内容までログに出す")
	cmd.PersistentFlags().BoolVarP(&opts.yes, "yes", "y", false, "アラートを確認せずに閉じる")

	cmd.AddCommand(
		newLoginCmd(),
		newRegisterCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newPlansCmd(),
		newSubscribeCmd(),
		newHomeCmd(),
		newProfileCmd(),
		newSubscriptionsCmd(),
		newWithdrawCmd(),
		newCalcCmd(),
		newQuotesCmd(),
	)
	return cmd, state
}

// Execute はargsでinvestcliを実行する。成否にかかわらず開いた資源は解放する。
func Execute(ctx context.Context, in io.Reader, out, errOut io.Writer, args []string) error {
	cmd, state := newRootCmd(in, out, errOut)
	defer state.close()

	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func appFrom(cmd *cobra.Command) *app {
	a, _ := cmd.Context().Value(appKey{}).(*app)
	return a
}
