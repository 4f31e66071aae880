// Command lendctl drives a lendingd instance over its HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"memelend/cmd/internal/secret"
	"memelend/crypto"
)

const (
	defaultServer = "http://127.0.0.1:8645"
	serverEnv     = "LENDCTL_SERVER"
	tokenEnv      = "LENDCTL_TOKEN"
	keyEnv        = "LENDCTL_KEY"
)

type app struct {
	server string
	token  string
	client *client
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	server := os.Getenv(serverEnv)
	if server == "" {
		server = defaultServer
	}
	cmd := &cobra.Command{
		Use:          "lendctl",
		Short:        "Operate the memecoin lending protocol",
		SilenceUsage: true,
	}
	cmd.PersistentPreRun = func(*cobra.Command, []string) {
		a.client = newClient(a.server, secret.NewSource(a.token, tokenEnv, "API token").Get)
	}
	cmd.PersistentFlags().StringVar(&a.server, "server", server, "lendingd base URL (env "+serverEnv+")")
	cmd.PersistentFlags().StringVar(&a.token, "token", "", "bearer token (env "+tokenEnv+")")

	cmd.AddCommand(
		newAddressCmd(),
		newTokenCmd(),
		newLoanCmd(a),
		newStakeCmd(a),
		newProtocolCmd(a),
		newFeesCmd(a),
		newEventsCmd(a),
	)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// call performs one request and prints the decoded response.
func (a *app) call(cmd *cobra.Command, method, path string, body any, authed bool) error {
	var out json.RawMessage
	if err := a.client.do(commandContext(cmd), method, path, nil, body, authed, &out); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func parseAddressArg(name, raw string) (crypto.Address, error) {
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%s: %w", name, err)
	}
	return addr, nil
}

func parseAmountArg(raw string) (uint64, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount: %w", err)
	}
	return v, nil
}
