package oracle

import (
	"errors"
	"testing"

	"memelend/crypto"
)

var testMint = crypto.HashToAddress([]byte("meme-mint"))

func cpPool(reserveA, reserveB uint64, mintA, mintB crypto.Address) PoolAccount {
	layout := ConstantProductLayout{ReserveA: reserveA, ReserveB: reserveB, MintA: mintA, MintB: mintB}
	return PoolAccount{Address: crypto.HashToAddress([]byte("cp-pool")), Data: layout.Encode()}
}

func TestReadPriceConstantProductEitherSide(t *testing.T) {
	// 2 SOL of reserves against 1 token unit at scale 1e9.
	pool := cpPool(2_000_000_000, 1_000_000_000, crypto.NativeMint, testMint)
	price, err := ReadPrice(pool, PoolRaydium, testMint)
	if err != nil {
		t.Fatalf("read price: %v", err)
	}
	if price != 2_000_000_000 {
		t.Fatalf("unexpected price %d", price)
	}

	flipped := cpPool(1_000_000_000, 2_000_000_000, testMint, crypto.NativeMint)
	price, err = ReadPrice(flipped, PoolOrca, testMint)
	if err != nil {
		t.Fatalf("read flipped price: %v", err)
	}
	if price != 2_000_000_000 {
		t.Fatalf("unexpected flipped price %d", price)
	}
}

func TestReadPriceValidationOrder(t *testing.T) {
	other := crypto.HashToAddress([]byte("other-mint"))
	cases := []struct {
		name string
		pool PoolAccount
		kind PoolType
		want error
	}{
		{"short", PoolAccount{Data: make([]byte, 10)}, PoolRaydium, ErrInvalidPriceFeed},
		{"all zero", PoolAccount{Data: make([]byte, ConstantProductMinLength)}, PoolRaydium, ErrInvalidPriceFeed},
		{"zero reserve", cpPool(0, 5, crypto.NativeMint, testMint), PoolRaydium, ErrInvalidPriceFeed},
		{"mint mismatch", cpPool(5, 5, crypto.NativeMint, other), PoolRaydium, ErrPoolTypeMismatch},
		{"no native side", cpPool(5, 5, other, testMint), PoolRaydium, ErrInvalidPriceFeed},
		{"zero price", cpPool(1, 10_000_000_000, crypto.NativeMint, testMint), PoolRaydium, ErrZeroPrice},
		{"unknown kind", cpPool(5, 5, crypto.NativeMint, testMint), PoolType(9), ErrInvalidPoolType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadPrice(tc.pool, tc.kind, testMint); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestReadPriceBondingCurve(t *testing.T) {
	curve := BondingCurveLayout{VirtualTokenReserves: 1_000_000_000_000, VirtualBaseReserves: 30_000_000_000}
	pool := PoolAccount{Address: BondingCurveAddress(testMint), Data: curve.Encode()}
	price, err := ReadPrice(pool, PoolPumpfun, testMint)
	if err != nil {
		t.Fatalf("read curve: %v", err)
	}
	if price != 30_000_000 {
		t.Fatalf("unexpected curve price %d", price)
	}

	pool.Address = crypto.HashToAddress([]byte("not-the-curve"))
	if _, err := ReadPrice(pool, PoolPumpfun, testMint); !errors.Is(err, ErrPoolTypeMismatch) {
		t.Fatalf("expected mismatch for foreign curve, got %v", err)
	}
}

func TestReadPriceVaultPool(t *testing.T) {
	baseVault := crypto.HashToAddress([]byte("base-vault"))
	quoteVault := crypto.HashToAddress([]byte("quote-vault"))
	layout := VaultPoolLayout{BaseMint: testMint, QuoteMint: crypto.NativeMint, BaseVault: baseVault, QuoteVault: quoteVault, LpSupply: 1}
	pool := PoolAccount{
		Address:    crypto.HashToAddress([]byte("pumpswap")),
		Data:       layout.Encode(),
		BaseVault:  TokenAccount{Address: baseVault, Data: TokenAccountLayout{Mint: testMint, Amount: 4_000_000_000}.Encode()},
		QuoteVault: TokenAccount{Address: quoteVault, Data: TokenAccountLayout{Mint: crypto.NativeMint, Amount: 1_000_000_000}.Encode()},
	}
	price, err := ReadPrice(pool, PoolPumpSwap, testMint)
	if err != nil {
		t.Fatalf("read vault pool: %v", err)
	}
	if price != 250_000_000 {
		t.Fatalf("unexpected vault price %d", price)
	}

	pool.QuoteVault.Address = crypto.HashToAddress([]byte("spoofed"))
	if _, err := ReadPrice(pool, PoolPumpSwap, testMint); !errors.Is(err, ErrInvalidPriceFeed) {
		t.Fatalf("expected spoofed vault rejection, got %v", err)
	}
}

func TestParsePoolType(t *testing.T) {
	for v := uint8(0); v < 4; v++ {
		if _, err := ParsePoolType(v); err != nil {
			t.Fatalf("pool type %d rejected: %v", v, err)
		}
	}
	if _, err := ParsePoolType(4); !errors.Is(err, ErrInvalidPoolType) {
		t.Fatalf("expected invalid pool type, got %v", err)
	}
}
