package main

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"memelend/crypto"
)

func amountCmd(a *app, use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <amount>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmountArg(args[0])
			if err != nil {
				return err
			}
			return a.call(cmd, http.MethodPost, path, map[string]uint64{"amount": amount}, true)
		},
	}
}

func postCmd(a *app, use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.call(cmd, http.MethodPost, path, nil, true)
		},
	}
}

func getCmd(a *app, use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.call(cmd, http.MethodGet, path, nil, false)
		},
	}
}

func newStakeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stake",
		Short: "Stake the protocol token and collect SOL rewards",
	}
	cmd.AddCommand(
		amountCmd(a, "add", "Stake tokens", "/v1/staking/stake"),
		amountCmd(a, "remove", "Unstake tokens", "/v1/staking/unstake"),
		amountCmd(a, "deposit-rewards", "Deposit lamports into the current epoch", "/v1/staking/deposit"),
		postCmd(a, "claim", "Claim pending rewards", "/v1/staking/claim"),
		postCmd(a, "advance", "Close the ended epoch", "/v1/staking/advance"),
		getCmd(a, "pool", "Show the staking pool", "/v1/staking/pool"),
		&cobra.Command{
			Use:   "show <owner>",
			Short: "Show a staker's position and pending rewards",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				owner, err := parseAddressArg("owner", args[0])
				if err != nil {
					return err
				}
				return a.call(cmd, http.MethodGet, "/v1/staking/users/"+owner.String(), nil, false)
			},
		},
		&cobra.Command{
			Use:   "distribute [owner...]",
			Short: "Push last epoch's rewards to stakers",
			RunE: func(cmd *cobra.Command, args []string) error {
				owners := make([]crypto.Address, 0, len(args))
				for _, raw := range args {
					owner, err := parseAddressArg("owner", raw)
					if err != nil {
						return err
					}
					owners = append(owners, owner)
				}
				return a.call(cmd, http.MethodPost, "/v1/staking/distribute", map[string]any{"owners": owners}, true)
			},
		},
	)
	return cmd
}

func newProtocolCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "protocol",
		Short: "Inspect protocol state",
	}
	cmd.AddCommand(
		getCmd(a, "show", "Show the protocol singleton and treasury", "/v1/protocol"),
		getCmd(a, "tokens", "List whitelisted collateral tokens", "/v1/tokens"),
	)
	return cmd
}

func newFeesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fees",
		Short: "Inspect and sweep the creator fee receiver",
	}
	cmd.AddCommand(
		getCmd(a, "show", "Show the fee receiver", "/v1/fees"),
		postCmd(a, "distribute", "Split the receiver balance above its reserve", "/v1/fees/distribute"),
		amountCmd(a, "record", "Pay lamports into the receiver", "/v1/fees/record"),
	)
	return cmd
}

func newEventsCmd(a *app) *cobra.Command {
	var (
		kind  string
		after uint64
		limit int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query indexed protocol events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			if kind != "" {
				q.Set("type", kind)
			}
			if after > 0 {
				q.Set("after", strconv.FormatUint(after, 10))
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			var out any
			if err := a.client.do(commandContext(cmd), http.MethodGet, "/v1/events", q, nil, false, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&kind, "type", "", "event type, or a prefix ending in '.'")
	cmd.Flags().Uint64Var(&after, "after", 0, "return events after this sequence number")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum events to return")
	return cmd
}
