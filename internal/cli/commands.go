package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nao1215/investapp/internal/console"
	"github.com/nao1215/investapp/internal/investapi"
)

func newLoginCmd() *cobra.Command {
	var form investapi.LoginForm
	cmd := &cobra.Command{
		Use:   "login",
		Short: "電話番号とパスワードでログインする",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			route, err := a.svc.Login(cmd.Context(), form)
			if err != nil {
				return err
			}
			a.identify(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "ログインしました")
			a.nav.NavigateTo(route)
			return nil
		},
	}
	cmd.Flags().StringVar(&form.Phone, "phone", "", "電話番号")
	cmd.Flags().StringVar(&form.Password, "password", "", "パスワード")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var form investapi.RegisterForm
	cmd := &cobra.Command{
		Use:   "register",
		Short: "ユーザーを登録する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			route, err := a.svc.Register(cmd.Context(), form)
			if err != nil {
				return err
			}
			a.identify(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "登録しました")
			a.nav.NavigateTo(route)
			return nil
		},
	}
	cmd.Flags().StringVar(&form.Username, "username", "", "ユーザー名")
	cmd.Flags().StringVar(&form.Email, "email", "", "メールアドレス")
	cmd.Flags().StringVar(&form.Phone, "phone", "", "電話番号（10桁）")
	cmd.Flags().StringVar(&form.Password, "password", "", "パスワード（6文字以上）")
	cmd.Flags().StringVar(&form.ConfirmPassword, "confirm-password", "", "確認用パスワード")
	cmd.Flags().BoolVar(&form.Consent, "consent", false, "利用規約に同意する")
	cmd.Flags().StringVar(&form.ReferralCode, "referral-code", "", "紹介コード")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "保存しているトークンを削除する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			if err := a.svc.Logout(cmd.Context()); err != nil {
				return err
			}
			a.identify(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "ログアウトしました")
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "セッションの状態を表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			state, err := a.session.State(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session=%s base_url=%s\n", state, a.cfg.API.BaseURL)
			return nil
		},
	}
}

func newPlansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "契約できるプランを一覧表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plans, err := appFrom(cmd).svc.Plans(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(plans))
			for _, p := range plans {
				rows = append(rows, []string{
					strconv.FormatInt(p.PlanID, 10),
					p.Name,
					fmt.Sprintf("%.2f", p.Price),
					strconv.Itoa(p.DurationMonths),
					fmt.Sprintf("%g%%", p.ExpectedReturn),
				})
			}
			return console.WriteTable(cmd.OutOrStdout(),
				[]string{"PLAN_ID", "NAME", "PRICE", "MONTHS", "RETURN"}, rows)
		},
	}
}

func newSubscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe <plan_id>",
		Short: "プランを契約する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			planID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("plan_idは数値で指定してください: %q", args[0])
			}
			env, err := appFrom(cmd).svc.AddSubscription(cmd.Context(), planID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), env.Message)
			return nil
		},
	}
}

func newHomeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "home",
		Short: "ポートフォリオの集計を表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, err := appFrom(cmd).svc.Home(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "portfolio=%.2f trades_performed=%d\n", home.Portfolio, home.TradesPerformed)
			return nil
		},
	}
}

func newProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "登録情報を表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := appFrom(cmd).svc.UserDetails(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "username:      %s\n", p.Username)
			fmt.Fprintf(out, "email:         %s\n", p.Email)
			fmt.Fprintf(out, "phone:         %s\n", p.Phone)
			fmt.Fprintf(out, "referral_code: %s\n", p.ReferralCode)
			return nil
		},
	}
}

func newSubscriptionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subscriptions",
		Short: "契約中のプランを一覧表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			subs, err := appFrom(cmd).svc.SubscribedPlans(cmd.Context())
			if err != nil {
				return err
			}
			if len(subs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "契約中のプランはありません")
				return nil
			}
			rows := make([][]string, 0, len(subs))
			for _, s := range subs {
				rows = append(rows, []string{s.ID, s.Name, fmt.Sprintf("%.2f", s.Amount), s.CreatedAt})
			}
			return console.WriteTable(cmd.OutOrStdout(),
				[]string{"ID", "PLAN", "AMOUNT", "CREATED_AT"}, rows)
		},
	}
}

func newWithdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <id>",
		Short: "契約を解約して出金する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := appFrom(cmd).svc.Withdraw(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "出金額: %.2f\n", w.Amount)
			return nil
		},
	}
}
