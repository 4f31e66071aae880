package state

import (
	"fmt"

	"memelend/core/safemath"
	"memelend/crypto"
)

func (m *Manager) writeTokenSupply(mint crypto.Address, total uint64) error {
	if total == 0 {
		return m.delete(addressKey(supplyPrefix, mint))
	}
	return m.writeRLP(addressKey(supplyPrefix, mint), total)
}

// TokenSupply returns the amount of mint issued through MintTokens. Missing
// entries default to zero.
func (m *Manager) TokenSupply(mint crypto.Address) (uint64, error) {
	var total uint64
	if _, err := m.loadRLP(addressKey(supplyPrefix, mint), &total); err != nil {
		return 0, err
	}
	return total, nil
}

// AdjustTokenSupply applies a signed delta to the stored supply of mint and
// returns the updated total.
func (m *Manager) AdjustTokenSupply(mint crypto.Address, delta int64) (uint64, error) {
	current, err := m.TokenSupply(mint)
	if err != nil {
		return 0, err
	}
	var updated uint64
	if delta >= 0 {
		if updated, err = safemath.Add(current, uint64(delta)); err != nil {
			return 0, err
		}
	} else {
		dec := uint64(-delta)
		if dec > current {
			return 0, fmt.Errorf("token %s supply underflow", mint)
		}
		updated = current - dec
	}
	if err := m.writeTokenSupply(mint, updated); err != nil {
		return 0, err
	}
	return updated, nil
}
