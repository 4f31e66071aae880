package oracle

import (
	"encoding/binary"

	"memelend/crypto"
)

// Constant-product pool (Raydium/Orca AMM) offsets.
const (
	cpReserveAOffset = 128
	cpReserveBOffset = 136
	cpMintAOffset    = 400
	cpMintBOffset    = 432
	// ConstantProductMinLength is the smallest record the decoder accepts.
	ConstantProductMinLength = 464
)

// Bonding curve offsets. The record starts with an 8-byte discriminator.
const (
	bcVirtualTokenOffset = 8
	bcVirtualBaseOffset  = 16
	bcRealTokenOffset    = 24
	bcRealBaseOffset     = 32
	bcTotalSupplyOffset  = 40
	bcCompleteOffset     = 48
	// BondingCurvePriceLength covers the two virtual reserves.
	BondingCurvePriceLength = 24
	// BondingCurveFullLength covers every field including the completion flag.
	BondingCurveFullLength = 49
)

// Explicit-vault AMM (PumpSwap) offsets.
const (
	vpBaseMintOffset   = 43
	vpQuoteMintOffset  = 75
	vpLpMintOffset     = 107
	vpBaseVaultOffset  = 139
	vpQuoteVaultOffset = 171
	vpLpSupplyOffset   = 203
	// VaultPoolMinLength is the smallest pool record the decoder accepts.
	VaultPoolMinLength = 211
)

// Token account offsets (SPL layout).
const (
	taMintOffset   = 0
	taOwnerOffset  = 32
	taAmountOffset = 64
	// TokenAccountMinLength is the smallest token account the decoder accepts.
	TokenAccountMinLength = 72
)

// ConstantProductLayout holds the fields read from a constant-product pool.
type ConstantProductLayout struct {
	ReserveA uint64
	ReserveB uint64
	MintA    crypto.Address
	MintB    crypto.Address
}

// BondingCurveLayout holds the fields read from a bonding-curve account.
type BondingCurveLayout struct {
	VirtualTokenReserves uint64
	VirtualBaseReserves  uint64
	RealTokenReserves    uint64
	RealBaseReserves     uint64
	TokenTotalSupply     uint64
	Complete             bool
}

// VaultPoolLayout holds the fields read from an AMM that keeps its reserves
// in separate token accounts.
type VaultPoolLayout struct {
	BaseMint   crypto.Address
	QuoteMint  crypto.Address
	LpMint     crypto.Address
	BaseVault  crypto.Address
	QuoteVault crypto.Address
	LpSupply   uint64
}

// TokenAccountLayout holds the fields read from a token account.
type TokenAccountLayout struct {
	Mint   crypto.Address
	Owner  crypto.Address
	Amount uint64
}

func checkRecord(data []byte, minLen int) error {
	if len(data) < minLen {
		return ErrInvalidPriceFeed
	}
	for _, b := range data {
		if b != 0 {
			return nil
		}
	}
	return ErrInvalidPriceFeed
}

func readU64(data []byte, offset int) uint64 {
	return binary.LittleEndian.Uint64(data[offset : offset+8])
}

func readAddress(data []byte, offset int) crypto.Address {
	var addr crypto.Address
	copy(addr[:], data[offset:offset+crypto.AddressLength])
	return addr
}

// DecodeConstantProduct validates length and initialisation before reading.
func DecodeConstantProduct(data []byte) (ConstantProductLayout, error) {
	if err := checkRecord(data, ConstantProductMinLength); err != nil {
		return ConstantProductLayout{}, err
	}
	return ConstantProductLayout{
		ReserveA: readU64(data, cpReserveAOffset),
		ReserveB: readU64(data, cpReserveBOffset),
		MintA:    readAddress(data, cpMintAOffset),
		MintB:    readAddress(data, cpMintBOffset),
	}, nil
}

// DecodeBondingCurve reads the curve reserves. Records shorter than the full
// layout still price correctly; the trailing fields are left zero.
func DecodeBondingCurve(data []byte) (BondingCurveLayout, error) {
	if err := checkRecord(data, BondingCurvePriceLength); err != nil {
		return BondingCurveLayout{}, err
	}
	layout := BondingCurveLayout{
		VirtualTokenReserves: readU64(data, bcVirtualTokenOffset),
		VirtualBaseReserves:  readU64(data, bcVirtualBaseOffset),
	}
	if len(data) >= BondingCurveFullLength {
		layout.RealTokenReserves = readU64(data, bcRealTokenOffset)
		layout.RealBaseReserves = readU64(data, bcRealBaseOffset)
		layout.TokenTotalSupply = readU64(data, bcTotalSupplyOffset)
		layout.Complete = data[bcCompleteOffset] != 0
	}
	return layout, nil
}

func DecodeVaultPool(data []byte) (VaultPoolLayout, error) {
	if err := checkRecord(data, VaultPoolMinLength); err != nil {
		return VaultPoolLayout{}, err
	}
	return VaultPoolLayout{
		BaseMint:   readAddress(data, vpBaseMintOffset),
		QuoteMint:  readAddress(data, vpQuoteMintOffset),
		LpMint:     readAddress(data, vpLpMintOffset),
		BaseVault:  readAddress(data, vpBaseVaultOffset),
		QuoteVault: readAddress(data, vpQuoteVaultOffset),
		LpSupply:   readU64(data, vpLpSupplyOffset),
	}, nil
}

func DecodeTokenAccount(data []byte) (TokenAccountLayout, error) {
	if err := checkRecord(data, TokenAccountMinLength); err != nil {
		return TokenAccountLayout{}, err
	}
	return TokenAccountLayout{
		Mint:   readAddress(data, taMintOffset),
		Owner:  readAddress(data, taOwnerOffset),
		Amount: readU64(data, taAmountOffset),
	}, nil
}

// Encode renders the layout into a minimal record. Used by simulated venues
// and fixtures.
func (l ConstantProductLayout) Encode() []byte {
	data := make([]byte, ConstantProductMinLength)
	binary.LittleEndian.PutUint64(data[cpReserveAOffset:], l.ReserveA)
	binary.LittleEndian.PutUint64(data[cpReserveBOffset:], l.ReserveB)
	copy(data[cpMintAOffset:], l.MintA[:])
	copy(data[cpMintBOffset:], l.MintB[:])
	return data
}

func (l BondingCurveLayout) Encode() []byte {
	data := make([]byte, BondingCurveFullLength)
	copy(data[:8], curveDiscriminator[:])
	binary.LittleEndian.PutUint64(data[bcVirtualTokenOffset:], l.VirtualTokenReserves)
	binary.LittleEndian.PutUint64(data[bcVirtualBaseOffset:], l.VirtualBaseReserves)
	binary.LittleEndian.PutUint64(data[bcRealTokenOffset:], l.RealTokenReserves)
	binary.LittleEndian.PutUint64(data[bcRealBaseOffset:], l.RealBaseReserves)
	binary.LittleEndian.PutUint64(data[bcTotalSupplyOffset:], l.TokenTotalSupply)
	if l.Complete {
		data[bcCompleteOffset] = 1
	}
	return data
}

func (l VaultPoolLayout) Encode() []byte {
	data := make([]byte, VaultPoolMinLength)
	copy(data[:8], vaultPoolDiscriminator[:])
	copy(data[vpBaseMintOffset:], l.BaseMint[:])
	copy(data[vpQuoteMintOffset:], l.QuoteMint[:])
	copy(data[vpLpMintOffset:], l.LpMint[:])
	copy(data[vpBaseVaultOffset:], l.BaseVault[:])
	copy(data[vpQuoteVaultOffset:], l.QuoteVault[:])
	binary.LittleEndian.PutUint64(data[vpLpSupplyOffset:], l.LpSupply)
	return data
}

func (l TokenAccountLayout) Encode() []byte {
	data := make([]byte, TokenAccountMinLength)
	copy(data[taMintOffset:], l.Mint[:])
	copy(data[taOwnerOffset:], l.Owner[:])
	binary.LittleEndian.PutUint64(data[taAmountOffset:], l.Amount)
	return data
}

var (
	curveDiscriminator     = [8]byte{0x17, 0xb7, 0xf8, 0x37, 0x60, 0xd8, 0xac, 0x60}
	vaultPoolDiscriminator = [8]byte{0xf1, 0x9a, 0x6d, 0x04, 0x11, 0xb1, 0x6d, 0xbc}
)
