package lending

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"memelend/core/oracle"
	"memelend/crypto"
)

type tokenKey struct {
	account crypto.Address
	mint    crypto.Address
}

type mockState struct {
	protocol    *ProtocolState
	tokens      map[crypto.Address]*TokenConfig
	loans       map[crypto.Address]*Loan
	exposures   map[crypto.Address]*UserExposure
	lamports    map[crypto.Address]uint64
	balances    map[tokenKey]uint64
	authorities map[tokenKey]crypto.Address
}

func newMockState() *mockState {
	return &mockState{
		tokens:      make(map[crypto.Address]*TokenConfig),
		loans:       make(map[crypto.Address]*Loan),
		exposures:   make(map[crypto.Address]*UserExposure),
		lamports:    make(map[crypto.Address]uint64),
		balances:    make(map[tokenKey]uint64),
		authorities: make(map[tokenKey]crypto.Address),
	}
}

func (m *mockState) GetProtocolState() (*ProtocolState, bool, error) {
	if m.protocol == nil {
		return nil, false, nil
	}
	return m.protocol.Clone(), true, nil
}

func (m *mockState) PutProtocolState(state *ProtocolState) error {
	m.protocol = state.Clone()
	return nil
}

func (m *mockState) GetTokenConfig(mint crypto.Address) (*TokenConfig, bool, error) {
	cfg, ok := m.tokens[mint]
	if !ok {
		return nil, false, nil
	}
	return cfg.Clone(), true, nil
}

func (m *mockState) PutTokenConfig(cfg *TokenConfig) error {
	m.tokens[cfg.Mint] = cfg.Clone()
	return nil
}

func (m *mockState) GetLoan(addr crypto.Address) (*Loan, bool, error) {
	loan, ok := m.loans[addr]
	if !ok {
		return nil, false, nil
	}
	return loan.Clone(), true, nil
}

func (m *mockState) PutLoan(loan *Loan) error {
	m.loans[loan.Address] = loan.Clone()
	return nil
}

func (m *mockState) GetUserExposure(owner crypto.Address) (*UserExposure, bool, error) {
	exposure, ok := m.exposures[owner]
	if !ok {
		return nil, false, nil
	}
	return exposure.Clone(), true, nil
}

func (m *mockState) PutUserExposure(exposure *UserExposure) error {
	m.exposures[exposure.Owner] = exposure.Clone()
	return nil
}

func (m *mockState) Lamports(addr crypto.Address) (uint64, error) {
	return m.lamports[addr], nil
}

func (m *mockState) TransferLamports(from, to crypto.Address, amount uint64) error {
	if m.lamports[from] < amount {
		return fmt.Errorf("insufficient lamports in %s", from)
	}
	m.lamports[from] -= amount
	m.lamports[to] += amount
	return nil
}

func (m *mockState) TokenBalance(account, mint crypto.Address) (uint64, error) {
	return m.balances[tokenKey{account, mint}], nil
}

func (m *mockState) OpenTokenAccount(account, mint, authority crypto.Address) error {
	key := tokenKey{account, mint}
	if _, ok := m.authorities[key]; ok {
		return errors.New("token account exists")
	}
	m.authorities[key] = authority
	return nil
}

func (m *mockState) TransferTokens(mint, from, to crypto.Address, amount uint64, authority crypto.Address) error {
	src := tokenKey{from, mint}
	owner, ok := m.authorities[src]
	if !ok {
		owner = from
	}
	if owner != authority {
		return errors.New("authority mismatch")
	}
	if m.balances[src] < amount {
		return errors.New("insufficient tokens")
	}
	m.balances[src] -= amount
	m.balances[tokenKey{to, mint}] += amount
	return nil
}

func (m *mockState) CloseTokenAccount(account, mint, authority crypto.Address) error {
	key := tokenKey{account, mint}
	if m.authorities[key] != authority {
		return errors.New("authority mismatch")
	}
	delete(m.authorities, key)
	delete(m.balances, key)
	return nil
}

var (
	testAdmin      = crypto.HashToAddress([]byte("admin"))
	testLiquidator = crypto.HashToAddress([]byte("liquidator"))
	testBorrower   = crypto.HashToAddress([]byte("borrower"))
	testOps        = crypto.HashToAddress([]byte("operations"))
	testRewards    = crypto.HashToAddress([]byte("staking-rewards"))
	testMint       = crypto.HashToAddress([]byte("meme-mint"))
	testPool       = crypto.HashToAddress([]byte("meme-pool"))
)

// 100 SOL against 1e14 token units prices one unit at 1e6 (scale 1e9).
const (
	testTreasury     uint64 = 1_000_000_000_000
	testCollateral   uint64 = 1_000_000_000_000
	testBaseReserve  uint64 = 100_000_000_000
	testTokenReserve uint64 = 100_000_000_000_000
	testEntryPrice   uint64 = 1_000_000
	testStart        int64  = 1_700_000_000
)

type fixture struct {
	engine *Engine
	state  *mockState
	now    int64
	sink   *recordingSink
}

type recordingSink struct{ total uint64 }

func (r *recordingSink) RecordExternalRewards(amount uint64) error {
	r.total += amount
	return nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{state: newMockState(), now: testStart, sink: &recordingSink{}}
	f.engine = NewEngine(DefaultParams())
	f.engine.SetState(f.state)
	f.engine.SetNowFunc(func() time.Time { return time.Unix(f.now, 0) })
	f.engine.SetRewardSink(f.sink)
	if _, err := f.engine.Initialize(InitParams{
		Admin:                testAdmin,
		OperationsWallet:     testOps,
		StakingRewardVault:   testRewards,
		AuthorizedLiquidator: testLiquidator,
	}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	f.state.lamports[testAdmin] = testTreasury
	if _, err := f.engine.FundTreasury(testAdmin, testTreasury); err != nil {
		t.Fatalf("fund treasury: %v", err)
	}
	if _, err := f.engine.WhitelistToken(testAdmin, WhitelistRequest{
		Mint:        testMint,
		Tier:        TierGold,
		PoolAddress: testPool,
		PoolType:    oracle.PoolRaydium,
		MinLoan:     10_000_000,
		MaxLoan:     100_000_000_000,
	}); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	f.state.balances[tokenKey{testBorrower, testMint}] = testCollateral * 4
	return f
}

// pool returns a snapshot of the configured pool at the given reserves.
func (f *fixture) pool(base, token uint64) oracle.PoolAccount {
	layout := oracle.ConstantProductLayout{
		ReserveA: base,
		ReserveB: token,
		MintA:    crypto.NativeMint,
		MintB:    testMint,
	}
	return oracle.PoolAccount{Address: testPool, Data: layout.Encode(), ObservedAt: f.now}
}

func (f *fixture) defaultPool() oracle.PoolAccount {
	return f.pool(testBaseReserve, testTokenReserve)
}

// poolAtPrice builds reserves that price one collateral unit at price.
func (f *fixture) poolAtPrice(price uint64) oracle.PoolAccount {
	return f.pool(price*(testTokenReserve/oracle.PriceScale), testTokenReserve)
}

// fakeVenue sells by moving the escrow into the pool and paying out a fixed
// amount from the pool's lamports.
type fakeVenue struct {
	state  *mockState
	payout uint64
	during func() error
	calls  int
}

func (v *fakeVenue) Name() string { return "fake" }

func (v *fakeVenue) Sell(req SwapRequest) error {
	v.calls++
	if v.during != nil {
		if err := v.during(); err != nil {
			return err
		}
	}
	if err := req.Escrow.Release(testPool, req.Amount); err != nil {
		return err
	}
	v.state.lamports[testPool] += v.payout
	return v.state.TransferLamports(testPool, req.Recipient, v.payout)
}
