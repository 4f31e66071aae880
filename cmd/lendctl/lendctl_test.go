package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"memelend/crypto"
	"memelend/native/lending"
	"memelend/native/staking"
	"memelend/services/lendingd/server"
)

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]any
}

func fakeDaemon(t *testing.T, status int, reply any) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
		}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			require.NoError(t, json.Unmarshal(raw, &rec.body))
		}
		calls = append(calls, rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLoanRepaySendsBearerToken(t *testing.T) {
	srv, calls := fakeDaemon(t, http.StatusOK, map[string]any{"fee": 10})
	loan := crypto.HashToAddress([]byte("loan"))

	out, err := runCLI(t, "--server", srv.URL, "--token", "abc", "loan", "repay", loan.String())
	require.NoError(t, err)
	require.Contains(t, out, `"fee": 10`)

	require.Len(t, *calls, 1)
	got := (*calls)[0]
	require.Equal(t, http.MethodPost, got.method)
	require.Equal(t, "/v1/loans/"+loan.String()+"/repay", got.path)
	require.Equal(t, "Bearer abc", got.auth)
}

func TestTokenFromEnvironment(t *testing.T) {
	t.Setenv(tokenEnv, "env-token")
	srv, calls := fakeDaemon(t, http.StatusOK, map[string]any{})

	_, err := runCLI(t, "--server", srv.URL, "stake", "add", "500")
	require.NoError(t, err)
	got := (*calls)[0]
	require.Equal(t, "/v1/staking/stake", got.path)
	require.Equal(t, "Bearer env-token", got.auth)
	require.EqualValues(t, 500, got.body["amount"])
}

func TestPublicReadsSkipToken(t *testing.T) {
	t.Setenv(tokenEnv, "")
	srv, calls := fakeDaemon(t, http.StatusOK, []any{})
	borrower := crypto.HashToAddress([]byte("borrower"))

	_, err := runCLI(t, "--server", srv.URL, "loan", "list", "--borrower", borrower.String())
	require.NoError(t, err)
	got := (*calls)[0]
	require.Equal(t, "/v1/loans", got.path)
	require.Equal(t, "borrower="+borrower.String(), got.query)
	require.Empty(t, got.auth)
}

func TestLiquidateMinOutOnlyWhenSet(t *testing.T) {
	srv, calls := fakeDaemon(t, http.StatusOK, map[string]any{})
	loan := crypto.HashToAddress([]byte("loan"))

	_, err := runCLI(t, "--server", srv.URL, "--token", "t", "loan", "liquidate", loan.String())
	require.NoError(t, err)
	_, err = runCLI(t, "--server", srv.URL, "--token", "t", "loan", "liquidate", loan.String(), "--min-out", "77")
	require.NoError(t, err)

	require.Len(t, *calls, 2)
	_, present := (*calls)[0].body["minOut"]
	require.False(t, present)
	require.EqualValues(t, 77, (*calls)[1].body["minOut"])
}

func TestProblemBecomesAPIError(t *testing.T) {
	srv, _ := fakeDaemon(t, http.StatusUnprocessableEntity, server.Problem{
		Error:   "rejected",
		Message: "loan already repaid",
		Code:    lending.Code(lending.ErrLoanAlreadyRepaid),
	})
	loan := crypto.HashToAddress([]byte("loan"))

	_, err := runCLI(t, "--server", srv.URL, "--token", "t", "loan", "repay", loan.String())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	require.Equal(t, lending.Code(lending.ErrLoanAlreadyRepaid), apiErr.Problem.Code)
	require.Contains(t, err.Error(), "loan already repaid")
}

func TestEventsQuery(t *testing.T) {
	srv, calls := fakeDaemon(t, http.StatusOK, []any{})

	_, err := runCLI(t, "--server", srv.URL, "events", "--type", "lending.", "--after", "4", "--limit", "2")
	require.NoError(t, err)
	require.Equal(t, "after=4&limit=2&type=lending.", (*calls)[0].query)
}

func TestAddressDerivationMatchesEngine(t *testing.T) {
	owner := crypto.HashToAddress([]byte("owner"))
	out, err := runCLI(t, "address", "stake", owner.String())
	require.NoError(t, err)
	require.Equal(t, staking.UserStakeAddress(staking.PoolAddress(), owner).String(), strings.TrimSpace(out))

	mint := crypto.HashToAddress([]byte("mint"))
	out, err = runCLI(t, "address", "loan", owner.String(), mint.String(), "3")
	require.NoError(t, err)
	var derived map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &derived))
	loan := lending.LoanAddress(owner, mint, 3)
	require.Equal(t, loan.String(), derived["loan"])
	require.Equal(t, lending.VaultAddress(loan).String(), derived["vault"])
}

func TestAddressFromGeneratedKey(t *testing.T) {
	out, err := runCLI(t, "address", "new")
	require.NoError(t, err)
	var pair map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &pair))

	t.Setenv(keyEnv, pair["privateKey"])
	out, err = runCLI(t, "address", "from-key")
	require.NoError(t, err)
	require.Equal(t, pair["address"], strings.TrimSpace(out))
}

func TestTokenSignVerifiesAgainstServer(t *testing.T) {
	key := strings.Repeat("k", 32)
	t.Setenv("LENDINGD_JWT_SECRET", key)
	subject := crypto.HashToAddress([]byte("admin"))

	out, err := runCLI(t, "token", "sign", "--subject", subject.String(), "--scope", "admin")
	require.NoError(t, err)

	auth, err := server.NewAuthenticator([]byte(key), "memelend", "")
	require.NoError(t, err)
	id, err := auth.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	require.Equal(t, subject, id.Address)
	require.True(t, id.Has(server.ScopeAdmin))
}

func TestRejectsMalformedAddress(t *testing.T) {
	_, err := runCLI(t, "loan", "get", "not-an-address")
	require.ErrorContains(t, err, "loan:")
}
