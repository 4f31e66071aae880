package staking

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"memelend/crypto"
)

type tokenKey struct {
	account crypto.Address
	mint    crypto.Address
}

type rawAccount struct {
	owner crypto.Address
	data  []byte
}

type mockState struct {
	pool        *Pool
	checkpoints map[uint64]*Checkpoint
	accounts    map[crypto.Address]rawAccount
	lamports    map[crypto.Address]uint64
	balances    map[tokenKey]uint64
	authorities map[tokenKey]crypto.Address
}

func newMockState() *mockState {
	return &mockState{
		checkpoints: make(map[uint64]*Checkpoint),
		accounts:    make(map[crypto.Address]rawAccount),
		lamports:    make(map[crypto.Address]uint64),
		balances:    make(map[tokenKey]uint64),
		authorities: make(map[tokenKey]crypto.Address),
	}
}

func (m *mockState) GetStakingPool() (*Pool, bool, error) {
	if m.pool == nil {
		return nil, false, nil
	}
	return m.pool.Clone(), true, nil
}

func (m *mockState) PutStakingPool(pool *Pool) error {
	m.pool = pool.Clone()
	return nil
}

func (m *mockState) GetEpochCheckpoint(epoch uint64) (*Checkpoint, bool, error) {
	cp, ok := m.checkpoints[epoch]
	if !ok {
		return nil, false, nil
	}
	clone := *cp
	return &clone, true, nil
}

func (m *mockState) PutEpochCheckpoint(cp *Checkpoint) error {
	clone := *cp
	m.checkpoints[cp.Epoch] = &clone
	return nil
}

func (m *mockState) GetAccount(addr crypto.Address) (crypto.Address, []byte, bool, error) {
	acct, ok := m.accounts[addr]
	if !ok {
		return crypto.Address{}, nil, false, nil
	}
	return acct.owner, bytes.Clone(acct.data), true, nil
}

func (m *mockState) PutAccount(addr, owner crypto.Address, data []byte) error {
	m.accounts[addr] = rawAccount{owner: owner, data: bytes.Clone(data)}
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

var (
	testAuthority = crypto.HashToAddress([]byte("staking-authority"))
	testMint      = crypto.HashToAddress([]byte("governance-mint"))
	testFunder    = crypto.HashToAddress([]byte("funder"))
	alice         = crypto.HashToAddress([]byte("alice"))
	bob           = crypto.HashToAddress([]byte("bob"))
	carol         = crypto.HashToAddress([]byte("carol"))
)

const (
	testStart    int64  = 1_700_000_000
	testDuration int64  = 300
	testFunds    uint64 = 1_000_000_000_000
)

type fixture struct {
	engine *Engine
	state  *mockState
	now    int64
}

func newFixture(t *testing.T, mode Mode, policy RolloverPolicy) *fixture {
	t.Helper()
	f := &fixture{state: newMockState(), now: testStart}
	f.engine = NewEngine()
	f.engine.SetState(f.state)
	f.engine.SetNowFunc(func() time.Time { return time.Unix(f.now, 0) })
	if _, err := f.engine.Initialize(InitParams{
		Authority:     testAuthority,
		StakingMint:   testMint,
		EpochDuration: testDuration,
		Mode:          mode,
		Rollover:      policy,
	}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	for _, who := range []crypto.Address{alice, bob, carol} {
		f.state.balances[tokenKey{who, testMint}] = testFunds
	}
	f.state.lamports[testFunder] = testFunds
	return f
}

func (f *fixture) pool(t *testing.T) *Pool {
	t.Helper()
	pool, ok, err := f.state.GetStakingPool()
	if err != nil || !ok {
		t.Fatalf("load pool: ok=%v err=%v", ok, err)
	}
	return pool
}

func (f *fixture) user(t *testing.T, owner crypto.Address) *UserStake {
	t.Helper()
	user, ok, err := f.engine.readUser(owner)
	if err != nil || !ok {
		t.Fatalf("load stake of %s: ok=%v err=%v", owner, ok, err)
	}
	return user
}

func (f *fixture) stake(t *testing.T, owner crypto.Address, amount uint64) {
	t.Helper()
	if _, err := f.engine.Stake(owner, amount); err != nil {
		t.Fatalf("stake %d: %v", amount, err)
	}
}

func (f *fixture) deposit(t *testing.T, amount uint64) {
	t.Helper()
	if _, err := f.engine.DepositRewards(testFunder, amount); err != nil {
		t.Fatalf("deposit %d: %v", amount, err)
	}
}

// nextEpoch moves the clock to the end of the current epoch and cranks.
func (f *fixture) nextEpoch(t *testing.T) {
	t.Helper()
	f.now = f.pool(t).EpochEnd()
	if _, err := f.engine.AdvanceEpoch(); err != nil {
		t.Fatalf("advance epoch: %v", err)
	}
}

func (f *fixture) pending(t *testing.T, owner crypto.Address) uint64 {
	t.Helper()
	amount, err := f.engine.PendingRewards(owner)
	if err != nil {
		t.Fatalf("pending rewards: %v", err)
	}
	return amount
}
