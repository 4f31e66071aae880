package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"memelend/cmd/internal/secret"
	"memelend/crypto"
	"memelend/native/lending"
	"memelend/native/staking"
	"memelend/services/lendingd/server"
)

func newAddressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Derive protocol addresses offline",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "seed <text>",
			Short: "Derive a deterministic address from a seed string",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), crypto.HashToAddress([]byte(args[0])))
				return nil
			},
		},
		&cobra.Command{
			Use:   "loan <borrower> <mint> <index>",
			Short: "Derive a loan record and its collateral vault",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				borrower, err := parseAddressArg("borrower", args[0])
				if err != nil {
					return err
				}
				mint, err := parseAddressArg("mint", args[1])
				if err != nil {
					return err
				}
				index, err := strconv.ParseUint(args[2], 10, 64)
				if err != nil {
					return fmt.Errorf("index: %w", err)
				}
				loan := lending.LoanAddress(borrower, mint, index)
				return printJSON(cmd.OutOrStdout(), map[string]crypto.Address{
					"loan":  loan,
					"vault": lending.VaultAddress(loan),
				})
			},
		},
		&cobra.Command{
			Use:   "stake <owner>",
			Short: "Derive the stake record of an owner",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				owner, err := parseAddressArg("owner", args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), staking.UserStakeAddress(staking.PoolAddress(), owner))
				return nil
			},
		},
		&cobra.Command{
			Use:   "new",
			Short: "Generate a wallet key pair",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				key, err := crypto.GeneratePrivateKey()
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"address":    key.Address().String(),
					"privateKey": key.Base58(),
				})
			},
		},
		&cobra.Command{
			Use:   "from-key",
			Short: "Print the address of a base58 private key read from LENDCTL_KEY or a prompt",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				raw, err := secret.NewSource("", keyEnv, "private key").Get()
				if err != nil {
					return err
				}
				key, err := crypto.PrivateKeyFromBase58(raw)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), key.Address())
				return nil
			},
		},
		&cobra.Command{
			Use:   "singletons",
			Short: "Print the protocol singleton addresses",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printJSON(cmd.OutOrStdout(), map[string]crypto.Address{
					"protocolState": lending.ProtocolStateAddress(),
					"treasury":      lending.TreasuryAddress(),
					"stakingPool":   staking.PoolAddress(),
					"rewardVault":   staking.RewardVaultAddress(),
				})
			},
		},
	)
	return cmd
}

type signOptions struct {
	subject   string
	scopes    []string
	ttl       time.Duration
	secretEnv string
	issuer    string
	audience  string
}

// newTokenCmd issues bearer tokens with the daemon's shared secret.
func newTokenCmd() *cobra.Command {
	opts := signOptions{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API bearer tokens",
	}
	sign := &cobra.Command{
		Use:   "sign",
		Short: "Sign a token for an address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			subject, err := parseAddressArg("subject", opts.subject)
			if err != nil {
				return err
			}
			key, err := secret.NewSource("", opts.secretEnv, "JWT secret").Get()
			if err != nil {
				return err
			}
			auth, err := server.NewAuthenticator([]byte(key), opts.issuer, opts.audience)
			if err != nil {
				return err
			}
			tok, err := auth.Sign(subject, opts.ttl, opts.scopes...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	sign.Flags().StringVar(&opts.subject, "subject", "", "address the token acts for")
	sign.Flags().StringSliceVar(&opts.scopes, "scope", nil, "scopes to grant (admin, liquidator)")
	sign.Flags().DurationVar(&opts.ttl, "ttl", time.Hour, "token lifetime")
	sign.Flags().StringVar(&opts.secretEnv, "secret-env", "LENDINGD_JWT_SECRET", "environment variable holding the signing secret")
	sign.Flags().StringVar(&opts.issuer, "issuer", "memelend", "issuer claim")
	sign.Flags().StringVar(&opts.audience, "audience", "", "audience claim")
	_ = sign.MarkFlagRequired("subject")
	cmd.AddCommand(sign)
	return cmd
}
