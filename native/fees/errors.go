package fees

import (
	"errors"

	"memelend/core/safemath"
	nativecommon "memelend/native/common"
)

var (
	errNilState = errors.New("fees: state not configured")

	ErrNotInitialized      = errors.New("fees: receiver not initialised")
	ErrAlreadyInitialized  = errors.New("fees: receiver already initialised")
	ErrUnauthorized        = errors.New("fees: unauthorized")
	ErrInvalidFeeSplit     = errors.New("fees: split must total 10000 bps")
	ErrNothingToDistribute = errors.New("fees: receiver balance at or below reserve")
	ErrInvalidAmount       = errors.New("fees: amount must be positive")
	ErrInvalidWallet       = errors.New("fees: wallet required")
)

// Code maps an error to its numeric code. Unknown errors map to 0.
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
	{ErrNothingToDistribute, 6018},
	{ErrInvalidAmount, 6036},
	{ErrInvalidFeeSplit, 6055},
	{ErrAlreadyInitialized, 6060},
	{ErrNotInitialized, 6061},
	{ErrInvalidWallet, 6090},
}
