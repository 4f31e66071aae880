package staking

import (
	"encoding/binary"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"memelend/core/safemath"
	"memelend/crypto"
)

// UserStake record layout. All integers are little-endian.
const (
	offsetOwner             = 8
	offsetPool              = 40
	offsetStaked            = 72
	offsetStakeStartEpoch   = 80
	offsetLastRewardedEpoch = 88
	offsetTotalReceived     = 96
	offsetSnapshot          = 104
	offsetInitialized       = 120
	offsetLastClaimedEpoch  = 121
	offsetTotalClaimed      = 129
	offsetAccrued           = 137
	offsetPendingStake      = 145
	offsetPendingSince      = 153
	offsetMaturingStake     = 161
	offsetMaturingSince     = 169

	// UserStakeSize is the encoded length of a UserStake record.
	UserStakeSize = 177
)

// UserStakeDiscriminator tags UserStake records.
var UserStakeDiscriminator = discriminator("account:UserStake")

func discriminator(name string) [8]byte {
	var out [8]byte
	copy(out[:], ethcrypto.Keccak256([]byte(name)))
	return out
}

// EncodeUserStake serialises u into its fixed layout.
func EncodeUserStake(u *UserStake) ([]byte, error) {
	if u == nil {
		return nil, ErrInvalidAccountData
	}
	data := make([]byte, UserStakeSize)
	copy(data, UserStakeDiscriminator[:])
	copy(data[offsetOwner:], u.Owner[:])
	copy(data[offsetPool:], u.Pool[:])
	binary.LittleEndian.PutUint64(data[offsetStaked:], u.StakedAmount)
	binary.LittleEndian.PutUint64(data[offsetStakeStartEpoch:], u.StakeStartEpoch)
	binary.LittleEndian.PutUint64(data[offsetLastRewardedEpoch:], u.LastRewardedEpoch)
	binary.LittleEndian.PutUint64(data[offsetTotalReceived:], u.TotalReceived)
	if err := putU128(data[offsetSnapshot:offsetInitialized], u.RewardPerTokenSnapshot); err != nil {
		return nil, err
	}
	if u.SnapshotInitialized {
		data[offsetInitialized] = 1
	}
	binary.LittleEndian.PutUint64(data[offsetLastClaimedEpoch:], u.LastClaimedEpoch)
	binary.LittleEndian.PutUint64(data[offsetTotalClaimed:], u.TotalClaimed)
	binary.LittleEndian.PutUint64(data[offsetAccrued:], u.AccruedRewards)
	binary.LittleEndian.PutUint64(data[offsetPendingStake:], u.PendingStake)
	binary.LittleEndian.PutUint64(data[offsetPendingSince:], u.PendingSinceEpoch)
	binary.LittleEndian.PutUint64(data[offsetMaturingStake:], u.MaturingStake)
	binary.LittleEndian.PutUint64(data[offsetMaturingSince:], u.MaturingSinceEpoch)
	return data, nil
}

// DecodeUserStake parses a record, checking its length and discriminator.
func DecodeUserStake(data []byte) (*UserStake, error) {
	if len(data) < UserStakeSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidAccountData, len(data))
	}
	if [8]byte(data[:8]) != UserStakeDiscriminator {
		return nil, ErrDiscriminatorMismatch
	}
	if data[offsetInitialized] > 1 {
		return nil, fmt.Errorf("%w: initialised flag %d", ErrInvalidAccountData, data[offsetInitialized])
	}
	owner, err := crypto.AddressFromBytes(data[offsetOwner:offsetPool])
	if err != nil {
		return nil, err
	}
	pool, err := crypto.AddressFromBytes(data[offsetPool:offsetStaked])
	if err != nil {
		return nil, err
	}
	return &UserStake{
		Owner:                  owner,
		Pool:                   pool,
		StakedAmount:           binary.LittleEndian.Uint64(data[offsetStaked:]),
		StakeStartEpoch:        binary.LittleEndian.Uint64(data[offsetStakeStartEpoch:]),
		LastRewardedEpoch:      binary.LittleEndian.Uint64(data[offsetLastRewardedEpoch:]),
		TotalReceived:          binary.LittleEndian.Uint64(data[offsetTotalReceived:]),
		RewardPerTokenSnapshot: readU128(data[offsetSnapshot:offsetInitialized]),
		SnapshotInitialized:    data[offsetInitialized] == 1,
		LastClaimedEpoch:       binary.LittleEndian.Uint64(data[offsetLastClaimedEpoch:]),
		TotalClaimed:           binary.LittleEndian.Uint64(data[offsetTotalClaimed:]),
		AccruedRewards:         binary.LittleEndian.Uint64(data[offsetAccrued:]),
		PendingStake:           binary.LittleEndian.Uint64(data[offsetPendingStake:]),
		PendingSinceEpoch:      binary.LittleEndian.Uint64(data[offsetPendingSince:]),
		MaturingStake:          binary.LittleEndian.Uint64(data[offsetMaturingStake:]),
		MaturingSinceEpoch:     binary.LittleEndian.Uint64(data[offsetMaturingSince:]),
	}, nil
}

// putU128 writes v as 16 little-endian bytes.
func putU128(dst []byte, v *uint256.Int) error {
	if v == nil {
		v = new(uint256.Int)
	}
	if v.Gt(safemath.U128Max) {
		return safemath.ErrOverflow
	}
	be := v.Bytes32()
	for i := 0; i < 16; i++ {
		dst[i] = be[31-i]
	}
	return nil
}

func readU128(src []byte) *uint256.Int {
	var be [16]byte
	for i := 0; i < 16; i++ {
		be[15-i] = src[i]
	}
	return new(uint256.Int).SetBytes(be[:])
}
