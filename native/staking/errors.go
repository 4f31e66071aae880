package staking

import (
	"errors"

	"memelend/core/safemath"
	nativecommon "memelend/native/common"
)

var (
	errNilState = errors.New("staking: state not configured")

	ErrNotInitialized            = errors.New("staking: pool not initialised")
	ErrAlreadyInitialized        = errors.New("staking: pool already initialised")
	ErrUnauthorized              = errors.New("staking: unauthorized")
	ErrStakingPaused             = errors.New("staking: pool is paused")
	ErrStakingNotPaused          = errors.New("staking: pool must be paused")
	ErrInvalidAmount             = errors.New("staking: amount must be positive")
	ErrInsufficientBalance       = errors.New("staking: insufficient balance")
	ErrInsufficientStake         = errors.New("staking: insufficient stake balance")
	ErrStakeNotFound             = errors.New("staking: stake record not found")
	ErrNoRewards                 = errors.New("staking: no rewards to claim")
	ErrInsufficientRewardBalance = errors.New("staking: insufficient reward balance")
	ErrNoEligibleStakers         = errors.New("staking: no eligible stake for the last epoch")
	ErrEpochNotEnded             = errors.New("staking: epoch has not ended")
	ErrInvalidEpochDuration      = errors.New("staking: epoch duration out of range")
	ErrWrongMode                 = errors.New("staking: operation not available in this distribution mode")
	ErrInvalidMode               = errors.New("staking: unknown distribution mode")
	ErrInvalidPolicy             = errors.New("staking: unknown rollover policy")
	ErrEmptyBatch                = errors.New("staking: distribution batch is empty")
	ErrBatchTooLarge             = errors.New("staking: distribution batch too large")

	// Record authentication.
	ErrInvalidAccountOwner   = errors.New("staking: record not owned by the protocol")
	ErrInvalidAccountData    = errors.New("staking: malformed stake record")
	ErrDiscriminatorMismatch = errors.New("staking: record type mismatch")
	ErrAddressMismatch       = errors.New("staking: record address does not match owner and pool")
	ErrOwnerMismatch         = errors.New("staking: record owner does not match wallet")
	ErrMissingCheckpoint     = errors.New("staking: epoch checkpoint missing")
)

// Code maps an error to the stable numeric code surfaced to callers. Unknown
// errors map to 0.
func Code(err error) int {
	if err == nil {
		return 0
	}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return 0
}

var errorCodes = []struct {
	err  error
	code int
}{
	{nativecommon.ErrModulePaused, 6000},
	{ErrUnauthorized, 6001},
	{safemath.ErrOverflow, 6013},
	{safemath.ErrUnderflow, 6014},
	{safemath.ErrDivisionByZero, 6015},
	{ErrInvalidAmount, 6036},
	{ErrStakingPaused, 6038},
	{ErrNoRewards, 6039},
	{ErrInsufficientRewardBalance, 6040},
	{ErrInsufficientStake, 6041},
	{ErrStakeNotFound, 6041},
	{ErrStakingNotPaused, 6049},
	{ErrAlreadyInitialized, 6060},
	{ErrNotInitialized, 6061},
	{ErrInsufficientBalance, 6070},
	{ErrNoEligibleStakers, 6071},
	{ErrEpochNotEnded, 6072},
	{ErrInvalidEpochDuration, 6073},
	{ErrWrongMode, 6074},
	{ErrInvalidMode, 6075},
	{ErrInvalidPolicy, 6075},
	{ErrEmptyBatch, 6076},
	{ErrBatchTooLarge, 6076},
	{ErrInvalidAccountOwner, 6077},
	{ErrInvalidAccountData, 6078},
	{ErrDiscriminatorMismatch, 6078},
	{ErrAddressMismatch, 6079},
	{ErrOwnerMismatch, 6080},
	{ErrMissingCheckpoint, 6081},
}
