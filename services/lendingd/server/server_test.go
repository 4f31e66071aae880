package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"nhooyr.io/websocket"

	"memelend/config"
	"memelend/core/events"
	"memelend/core/oracle"
	"memelend/core/types"
	"memelend/crypto"
	"memelend/native/lending"
	"memelend/services/lendingd/indexer"
	"memelend/services/lendingd/protocol"
	"memelend/storage"
)

var (
	admin     = crypto.HashToAddress([]byte("admin"))
	borrower  = crypto.HashToAddress([]byte("borrower"))
	newAdmin  = crypto.HashToAddress([]byte("next-admin"))
	memeMint  = crypto.HashToAddress([]byte("meme"))
	govMint   = crypto.HashToAddress([]byte("governance"))
	memePool  = crypto.HashToAddress([]byte("meme-raydium"))
	jwtSecret = []byte("0123456789abcdef0123456789abcdef")
)

const collateral uint64 = 1_000_000_000_000

type harness struct {
	t      *testing.T
	proto  *protocol.Protocol
	server *Server
	auth   *Authenticator
	hub    *Hub
	index  *indexer.Index
	now    int64
}

type harnessOption func(*Config)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{t: t, now: 1_700_000_000}

	db, err := indexer.Open("sqlite", "")
	require.NoError(t, err)
	h.index, err = indexer.New(db, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.index.Close() })
	h.hub = NewHub(nil)

	h.proto, err = protocol.New(storage.NewMemDB(), protocol.Options{
		Config:  config.Default(),
		Emitter: events.Fanout{h.index, h.hub},
		Now:     func() time.Time { return time.Unix(h.now, 0) },
	})
	require.NoError(t, err)
	require.NoError(t, h.proto.Bootstrap(config.Bootstrap{
		Admin:            admin,
		OperationsWallet: admin,
		BuybackWallet:    admin,
		TreasuryWallet:   admin,
		Liquidator:       admin,
		PriceAuthority:   admin,
		StakingMint:      govMint,
	}))
	layout := oracle.ConstantProductLayout{
		ReserveA: 100_000_000_000,
		ReserveB: 100_000_000_000_000,
		MintA:    crypto.NativeMint,
		MintB:    memeMint,
	}
	require.NoError(t, h.proto.Execute("admin", func(tx protocol.Tx) error {
		if err := tx.State.PutAccount(memePool, crypto.HashToAddress([]byte("amm-program")), layout.Encode()); err != nil {
			return err
		}
		for _, who := range []crypto.Address{admin, borrower} {
			if err := tx.State.CreditLamports(who, 1_000_000_000_000); err != nil {
				return err
			}
		}
		if err := tx.State.CreditLamports(memePool, 100_000_000_000); err != nil {
			return err
		}
		if err := tx.State.MintTokens(borrower, memeMint, 2*collateral); err != nil {
			return err
		}
		if _, err := tx.Lending.FundTreasury(admin, 500_000_000_000); err != nil {
			return err
		}
		_, err := tx.Lending.WhitelistToken(admin, lending.WhitelistRequest{
			Mint:        memeMint,
			Tier:        lending.TierGold,
			PoolAddress: memePool,
			PoolType:    oracle.PoolRaydium,
			MinLoan:     10_000_000,
			MaxLoan:     100_000_000_000,
		})
		return err
	}))

	h.auth, err = NewAuthenticator(jwtSecret, "memelend", "")
	require.NoError(t, err)
	cfg := Config{
		Protocol: h.proto,
		Index:    h.index,
		Hub:      h.hub,
		Auth:     h.auth,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h.server, err = New(cfg)
	require.NoError(t, err)
	return h
}

func (h *harness) token(who crypto.Address, scopes ...string) string {
	h.t.Helper()
	tok, err := h.auth.Sign(who, time.Hour, scopes...)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeInto[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (h *harness) borrow() loanView {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/v1/loans", h.token(borrower), createLoanRequest{
		Mint:       memeMint,
		Collateral: collateral,
		Duration:   lending.BaseLoanDuration,
	})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeInto[loanView](h.t, rec)
}

func TestPublicReads(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/v1/protocol", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ps := decodeInto[protocolView](t, rec)
	require.Equal(t, admin, ps.Admin)
	require.Equal(t, uint64(500_000_000_000), ps.TreasuryBalance)

	rec = h.do(http.MethodGet, "/v1/tokens/"+memeMint.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tok := decodeInto[tokenView](t, rec)
	require.Equal(t, memePool, tok.PoolAddress)
	require.Equal(t, "raydium", tok.PoolType)

	rec = h.do(http.MethodGet, "/v1/loans/"+crypto.HashToAddress([]byte("nope")).String(), "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, 6037, decodeInto[Problem](t, rec).Code)

	rec = h.do(http.MethodGet, "/v1/loans/not-an-address", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/v1/staking/pool", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, govMint, decodeInto[poolView](t, rec).StakingMint)
}

func TestWritesRequireBearerToken(t *testing.T) {
	h := newHarness(t)
	body := createLoanRequest{Mint: memeMint, Collateral: collateral, Duration: lending.BaseLoanDuration}

	rec := h.do(http.MethodPost, "/v1/loans", "", body)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/v1/loans", "not.a.jwt", body)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	other, err := NewAuthenticator([]byte("ffffffffffffffffffffffffffffffff"), "memelend", "")
	require.NoError(t, err)
	forged, err := other.Sign(borrower, time.Hour)
	require.NoError(t, err)
	rec = h.do(http.MethodPost, "/v1/loans", forged, body)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoanLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	loan := h.borrow()
	require.Equal(t, borrower, loan.Borrower)
	require.Equal(t, "active", loan.Status)
	require.NotZero(t, loan.Borrowed)

	rec := h.do(http.MethodGet, "/v1/loans?borrower="+borrower.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeInto[map[string][]loanView](t, rec)
	require.Len(t, listed["loans"], 1)

	// Only the borrower may repay.
	rec = h.do(http.MethodPost, "/v1/loans/"+loan.Address.String()+"/repay", h.token(admin), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodPost, "/v1/loans/"+loan.Address.String()+"/repay", h.token(borrower), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	repaid := decodeInto[repayResponse](t, rec)
	require.Equal(t, loan.Borrowed, repaid.Principal)
	require.Equal(t, "repaid", repaid.Loan.Status)
	require.Equal(t, repaid.Fee, repaid.TreasuryFee+repaid.StakingFee+repaid.OperationsFee)

	rec = h.do(http.MethodPost, "/v1/loans/"+loan.Address.String()+"/repay", h.token(borrower), nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.do(http.MethodGet, "/v1/events?type=lending.", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored := decodeInto[map[string][]indexer.Event](t, rec)
	var kinds []string
	for _, evt := range stored["events"] {
		kinds = append(kinds, evt.Type)
	}
	require.Contains(t, kinds, events.TypeLoanCreated)
	require.Contains(t, kinds, events.TypeLoanRepaid)
}

func TestLiquidationNeedsLiquidatorScope(t *testing.T) {
	h := newHarness(t)
	loan := h.borrow()
	h.now = loan.DueAt + 1
	path := "/v1/loans/" + loan.Address.String() + "/liquidate"

	rec := h.do(http.MethodPost, path, h.token(admin), liquidateRequest{})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodPost, path, h.token(borrower, ScopeLiquidator), liquidateRequest{})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, 6001, decodeInto[Problem](t, rec).Code)

	rec = h.do(http.MethodPost, path, h.token(admin, ScopeLiquidator), liquidateRequest{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeInto[liquidationResponse](t, rec)
	require.Equal(t, "liquidated_time", out.Reason)
	require.GreaterOrEqual(t, out.Proceeds, out.MinOut)

	rec = h.do(http.MethodGet, "/v1/loans", "", nil)
	require.Empty(t, decodeInto[map[string][]loanView](t, rec)["loans"])
}

func TestAdminRoutes(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/v1/admin/pause", h.token(admin), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	adminToken := h.token(admin, ScopeAdmin)
	rec = h.do(http.MethodPost, "/v1/admin/pause", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/v1/loans", h.token(borrower), createLoanRequest{
		Mint: memeMint, Collateral: collateral, Duration: lending.BaseLoanDuration,
	})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, 6000, decodeInto[Problem](t, rec).Code)

	rec = h.do(http.MethodPost, "/v1/admin/resume", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	h.borrow()

	rec = h.do(http.MethodPost, "/v1/admin/tokens/"+memeMint.String(), adminToken, map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.False(t, decodeInto[tokenView](t, rec).Enabled)

	rec = h.do(http.MethodPost, "/v1/admin/fees/split", adminToken, splitRequest{TreasuryBps: 5_000, StakingBps: 5_000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, uint64(5_000), decodeInto[receiverView](t, rec).StakingBps)
}

func TestAdminTransferAcceptedByPendingAdmin(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/v1/admin/admin-transfer/initiate", h.token(admin, ScopeAdmin), adminTransferRequest{Pending: newAdmin})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/v1/admin/admin-transfer/accept", h.token(newAdmin), nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, 6047, decodeInto[Problem](t, rec).Code)

	h.now += config.Default().Lending.AdminTransferDelay
	rec = h.do(http.MethodPost, "/v1/admin/admin-transfer/accept", h.token(newAdmin), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodGet, "/v1/protocol", "", nil)
	require.Equal(t, newAdmin, decodeInto[protocolView](t, rec).Admin)
}

func TestLedgerAdminRoutesAreOptIn(t *testing.T) {
	h := newHarness(t)
	target := crypto.HashToAddress([]byte("fresh"))
	rec := h.do(http.MethodPost, "/v1/admin/credit", h.token(admin, ScopeAdmin), creditRequest{Account: target, Amount: 5})
	require.Equal(t, http.StatusNotFound, rec.Code)

	h = newHarness(t, func(c *Config) { c.LedgerAdmin = true })
	rec = h.do(http.MethodPost, "/v1/admin/credit", h.token(admin, ScopeAdmin), creditRequest{Account: target, Amount: 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, uint64(5), decodeInto[map[string]uint64](t, rec)["balance"])

	rec = h.do(http.MethodPost, "/v1/admin/credit", h.token(admin, ScopeAdmin), creditRequest{Account: target, Mint: &memeMint, Amount: 7})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(7), decodeInto[map[string]uint64](t, rec)["balance"])
}

func TestStakingOverHTTP(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.proto.Execute("ledger", func(tx protocol.Tx) error {
		return tx.State.MintTokens(borrower, govMint, 1_000)
	}))

	rec := h.do(http.MethodPost, "/v1/staking/stake", h.token(borrower), amountRequest{Amount: 600})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, uint64(600), decodeInto[stakeView](t, rec).StakedAmount)

	rec = h.do(http.MethodPost, "/v1/staking/advance", h.token(admin), nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, "epoch has not ended")

	rec = h.do(http.MethodGet, "/v1/staking/users/"+borrower.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(600), decodeInto[stakeView](t, rec).StakedAmount)

	rec = h.do(http.MethodGet, "/v1/staking/users/"+admin.String(), "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimiterThrottlesPerClient(t *testing.T) {
	rl := NewRateLimiter(RateLimit{RequestsPerMinute: 1, Burst: 2})
	frozen := time.Unix(1_700_000_000, 0)
	rl.nowFn = func() time.Time { return frozen }
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	hit := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/protocol", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}
	require.Equal(t, http.StatusNoContent, hit("10.0.0.1:1000").Code)
	require.Equal(t, http.StatusNoContent, hit("10.0.0.1:1001").Code)
	rec := hit("10.0.0.1:1002")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
	require.Equal(t, http.StatusNoContent, hit("10.0.0.2:1000").Code)

	frozen = frozen.Add(visitorTTL + time.Minute)
	require.Equal(t, http.StatusNoContent, hit("10.0.0.3:1000").Code)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	require.Len(t, rl.visitors, 1, "idle visitors are swept")
}

func TestEventStream(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewHub(nil)
	auth, err := NewAuthenticator(jwtSecret, "", "")
	require.NoError(t, err)
	p, err := protocol.New(storage.NewMemDB(), protocol.Options{Config: config.Default()})
	require.NoError(t, err)
	srv, err := New(Config{Protocol: p, Hub: hub, Auth: auth})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events/ws?type=fees."
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Emit(events.StakeChanged{Owner: borrower, Amount: 1, Total: 1})
	hub.Emit(events.FeesReceived{From: borrower, Amount: 42, Timestamp: 7})

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var evt types.Event
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, events.TypeFeesReceived, evt.Type)
	require.Equal(t, "42", evt.Attributes["amount"])

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
