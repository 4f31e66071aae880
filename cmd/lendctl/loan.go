package main

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"memelend/native/lending"
)

func newLoanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loan",
		Short: "Create, repay and inspect loans",
	}

	var (
		mint       string
		collateral uint64
		duration   int64
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Borrow SOL against memecoin collateral",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := parseAddressArg("mint", mint)
			if err != nil {
				return err
			}
			return a.call(cmd, http.MethodPost, "/v1/loans", map[string]any{
				"mint":       m,
				"collateral": collateral,
				"duration":   duration,
			}, true)
		},
	}
	create.Flags().StringVar(&mint, "mint", "", "collateral mint")
	create.Flags().Uint64Var(&collateral, "collateral", 0, "collateral amount in base units")
	create.Flags().Int64Var(&duration, "duration", lending.BaseLoanDuration, "loan duration in seconds")
	_ = create.MarkFlagRequired("mint")
	_ = create.MarkFlagRequired("collateral")

	var minOut uint64
	liquidate := &cobra.Command{
		Use:   "liquidate <loan>",
		Short: "Liquidate an expired or underwater loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loan, err := parseAddressArg("loan", args[0])
			if err != nil {
				return err
			}
			body := map[string]any{}
			if cmd.Flags().Changed("min-out") {
				body["minOut"] = minOut
			}
			return a.call(cmd, http.MethodPost, "/v1/loans/"+loan.String()+"/liquidate", body, true)
		},
	}
	liquidate.Flags().Uint64Var(&minOut, "min-out", 0, "minimum lamports accepted from the sale (default: tightest allowed)")

	var borrower string
	list := &cobra.Command{
		Use:   "list",
		Short: "List active loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			if borrower != "" {
				b, err := parseAddressArg("borrower", borrower)
				if err != nil {
					return err
				}
				q.Set("borrower", b.String())
			}
			var out any
			if err := a.client.do(commandContext(cmd), http.MethodGet, "/v1/loans", q, nil, false, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	list.Flags().StringVar(&borrower, "borrower", "", "only loans of this borrower")

	cmd.AddCommand(
		create,
		&cobra.Command{
			Use:   "repay <loan>",
			Short: "Repay a loan and release its collateral",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				loan, err := parseAddressArg("loan", args[0])
				if err != nil {
					return err
				}
				return a.call(cmd, http.MethodPost, "/v1/loans/"+loan.String()+"/repay", nil, true)
			},
		},
		liquidate,
		&cobra.Command{
			Use:   "get <loan>",
			Short: "Show a loan",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				loan, err := parseAddressArg("loan", args[0])
				if err != nil {
					return err
				}
				return a.call(cmd, http.MethodGet, "/v1/loans/"+loan.String(), nil, false)
			},
		},
		list,
	)
	return cmd
}
