package events

import (
	"encoding/hex"

	"memelend/core/types"
	"memelend/crypto"
)

// TypeSwapExecuted is emitted by a venue after it settles a collateral sale.
const TypeSwapExecuted = "swap.executed"

// SwapExecuted captures one venue settlement.
type SwapExecuted struct {
	Venue       string
	Pool        crypto.Address
	Mint        crypto.Address
	AmountIn    uint64
	AmountOut   uint64
	MinOut      uint64
	Instruction []byte
}

// EventType satisfies the Event interface.
func (SwapExecuted) EventType() string { return TypeSwapExecuted }

// Event converts the structured payload into a broadcastable event.
func (e SwapExecuted) Event() *types.Event {
	evt := types.NewEvent(TypeSwapExecuted).
		With("venue", e.Venue).
		With("pool", e.Pool.String()).
		With("mint", e.Mint.String()).
		WithUint("amountIn", e.AmountIn).
		WithUint("amountOut", e.AmountOut).
		WithUint("minOut", e.MinOut)
	if len(e.Instruction) > 0 {
		evt.With("instruction", hex.EncodeToString(e.Instruction))
	}
	return evt
}
