package lending

import (
	"errors"

	"memelend/core/oracle"
	"memelend/core/safemath"
	nativecommon "memelend/native/common"
)

var (
	errNilState = errors.New("lending engine: state not configured")

	// Authorization.
	ErrProtocolPaused          = errors.New("lending engine: protocol is paused")
	ErrProtocolNotPaused       = errors.New("lending engine: protocol must be paused")
	ErrUnauthorized            = errors.New("lending engine: unauthorized")
	ErrInvalidAdminAddress     = errors.New("lending engine: invalid admin address")
	ErrInvalidLiquidator       = errors.New("lending engine: invalid liquidator address")
	ErrInvalidPriceAuthority   = errors.New("lending engine: invalid price authority")
	ErrAdminTransferTooEarly   = errors.New("lending engine: admin transfer timelock not expired")
	ErrNoPendingAdminTransfer  = errors.New("lending engine: no pending admin transfer")
	ErrAlreadyInitialized      = errors.New("lending engine: protocol already initialised")
	ErrNotInitialized          = errors.New("lending engine: protocol not initialised")
	ErrInvalidWalletAddress    = errors.New("lending engine: invalid wallet address")

	// Input validation.
	ErrInvalidTokenTier        = errors.New("lending engine: invalid token tier")
	ErrInvalidPoolAddress      = errors.New("lending engine: invalid pool address")
	ErrInvalidLoanAmount       = errors.New("lending engine: invalid loan amount bounds")
	ErrInvalidAmount           = errors.New("lending engine: amount must be positive")
	ErrDurationTooShort        = errors.New("lending engine: loan duration below minimum")
	ErrDurationTooLong         = errors.New("lending engine: loan duration above maximum")
	ErrInvalidFeeSplit         = errors.New("lending engine: fee splits must sum to 10000")
	ErrInvalidLtv              = errors.New("lending engine: ltv outside allowed band")
	ErrTokenAlreadyWhitelisted = errors.New("lending engine: token already whitelisted")

	// Economic and state invariants.
	ErrTokenNotWhitelisted      = errors.New("lending engine: token is not whitelisted")
	ErrTokenDisabled            = errors.New("lending engine: token is disabled")
	ErrCollateralValueTooLow    = errors.New("lending engine: collateral value below minimum")
	ErrLoanAmountTooLow         = errors.New("lending engine: loan amount below minimum")
	ErrLoanAmountTooHigh        = errors.New("lending engine: loan amount above maximum")
	ErrInsufficientTreasury     = errors.New("lending engine: insufficient treasury balance")
	ErrSingleLoanTooLarge       = errors.New("lending engine: single loan exceeds treasury share")
	ErrTokenExposureTooHigh     = errors.New("lending engine: token exposure limit exceeded")
	ErrUserExposureTooHigh      = errors.New("lending engine: user exposure limit exceeded")
	ErrInsufficientBalance      = errors.New("lending engine: insufficient balance")
	ErrInsufficientCollateral   = errors.New("lending engine: insufficient collateral balance")
	ErrLoanNotFound             = errors.New("lending engine: loan not found")
	ErrLoanAlreadyRepaid        = errors.New("lending engine: loan already repaid")
	ErrLoanLiquidated           = errors.New("lending engine: loan has been liquidated")
	ErrNotBorrower              = errors.New("lending engine: caller is not the borrower")
	ErrLoanNotLiquidatable      = errors.New("lending engine: loan is not liquidatable")
	ErrSlippageTooHigh          = errors.New("lending engine: minimum output below tolerated slippage")
	ErrSlippageExceeded         = errors.New("lending engine: swap proceeds below minimum output")
	ErrVenueUnavailable         = errors.New("lending engine: no swap venue for pool type")
	ErrEscrowMismatch           = errors.New("lending engine: escrow balance does not match loan")
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
	{ErrProtocolPaused, 6000},
	{nativecommon.ErrModulePaused, 6000},
	{ErrUnauthorized, 6001},
	{ErrNotBorrower, 6001},
	{ErrInvalidTokenTier, 6002},
	{ErrTokenNotWhitelisted, 6003},
	{ErrTokenDisabled, 6004},
	{ErrLoanAmountTooLow, 6005},
	{ErrLoanAmountTooHigh, 6006},
	{ErrInsufficientCollateral, 6007},
	{ErrLoanAlreadyRepaid, 6008},
	{ErrLoanLiquidated, 6009},
	{ErrLoanNotLiquidatable, 6010},
	{oracle.ErrInvalidPriceFeed, 6011},
	{oracle.ErrStalePrice, 6012},
	{safemath.ErrOverflow, 6013},
	{safemath.ErrUnderflow, 6014},
	{safemath.ErrDivisionByZero, 6015},
	{ErrInvalidLtv, 6017},
	{ErrInsufficientTreasury, 6018},
	{oracle.ErrPriceDeviation, 6021},
	{ErrInvalidPoolAddress, 6022},
	{ErrTokenAlreadyWhitelisted, 6023},
	{ErrInvalidAdminAddress, 6024},
	{ErrInsufficientBalance, 6027},
	{ErrInvalidFeeSplit, 6028},
	{oracle.ErrPoolTypeMismatch, 6029},
	{oracle.ErrZeroPrice, 6030},
	{ErrDurationTooShort, 6031},
	{ErrDurationTooLong, 6032},
	{oracle.ErrInvalidPoolType, 6033},
	{ErrInvalidLoanAmount, 6034},
	{ErrInvalidAmount, 6034},
	{nativecommon.ErrReentrancy, 6035},
	{ErrLoanNotFound, 6037},
	{ErrSlippageExceeded, 6042},
	{ErrAdminTransferTooEarly, 6047},
	{ErrNoPendingAdminTransfer, 6048},
	{ErrProtocolNotPaused, 6049},
	{ErrCollateralValueTooLow, 6050},
	{ErrSlippageTooHigh, 6051},
	{ErrTokenExposureTooHigh, 6052},
	{ErrUserExposureTooHigh, 6053},
	{ErrSingleLoanTooLarge, 6054},
	{ErrInvalidLiquidator, 6057},
	{ErrInvalidPriceAuthority, 6058},
	{ErrVenueUnavailable, 6059},
	{ErrAlreadyInitialized, 6060},
	{ErrNotInitialized, 6061},
	{ErrInvalidWalletAddress, 6062},
	{ErrEscrowMismatch, 6063},
}
