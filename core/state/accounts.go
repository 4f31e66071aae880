package state

import (
	"bytes"

	"memelend/crypto"
)

// rawAccount is a program-owned record stored as opaque bytes.
type rawAccount struct {
	Owner crypto.Address
	Data  []byte
}

// GetAccount returns the owning program and data of a raw record.
func (m *Manager) GetAccount(addr crypto.Address) (crypto.Address, []byte, bool, error) {
	acct := new(rawAccount)
	ok, err := m.loadRLP(addressKey(accountPrefix, addr), acct)
	if err != nil || !ok {
		return crypto.Address{}, nil, false, err
	}
	return acct.Owner, acct.Data, true, nil
}

// PutAccount stores data under addr on behalf of owner.
func (m *Manager) PutAccount(addr, owner crypto.Address, data []byte) error {
	return m.writeRLP(addressKey(accountPrefix, addr), &rawAccount{Owner: owner, Data: bytes.Clone(data)})
}

// AccountsOwnedBy lists the raw records owned by program in address order.
func (m *Manager) AccountsOwnedBy(program crypto.Address) ([]crypto.Address, error) {
	var (
		out     []crypto.Address
		iterErr error
	)
	err := m.iterate(accountPrefix, func(key, value []byte) bool {
		acct := new(rawAccount)
		if iterErr = decodeRLP(value, acct); iterErr != nil {
			return false
		}
		if acct.Owner != program {
			return true
		}
		var addr crypto.Address
		copy(addr[:], key[len(accountPrefix):])
		out = append(out, addr)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, iterErr
}
