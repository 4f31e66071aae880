// Package keeper tracks active loans off the hot path and reports the ones
// that have become liquidatable. It never submits transactions itself.
package keeper

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"memelend/core/events"
	"memelend/crypto"
)

const defaultTreeDegree = 16

// Entry is the subset of a loan the keeper needs to decide liquidation.
type Entry struct {
	Loan             crypto.Address
	Borrower         crypto.Address
	Mint             crypto.Address
	DueAt            int64
	LiquidationPrice uint64
}

// Less orders entries by due time, then by loan address.
func (e Entry) Less(other Entry) bool {
	if e.DueAt != other.DueAt {
		return e.DueAt < other.DueAt
	}
	return bytes.Compare(e.Loan[:], other.Loan[:]) < 0
}

var _ btree.LessFunc[Entry] = Entry.Less

// Index keeps active loans ordered by due time. It implements events.Emitter
// so it can be attached to the engine's event fanout.
type Index struct {
	mu     sync.RWMutex
	byDue  *btree.BTreeG[Entry]
	byLoan map[crypto.Address]Entry
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		byDue:  btree.NewG(defaultTreeDegree, Entry.Less),
		byLoan: make(map[crypto.Address]Entry),
	}
}

// Track adds or replaces a loan.
func (i *Index) Track(entry Entry) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if prev, ok := i.byLoan[entry.Loan]; ok {
		i.byDue.Delete(prev)
	}
	i.byLoan[entry.Loan] = entry
	i.byDue.ReplaceOrInsert(entry)
}

// Forget drops a loan. Unknown loans are ignored.
func (i *Index) Forget(loan crypto.Address) {
	i.mu.Lock()
	defer i.mu.Unlock()
	prev, ok := i.byLoan[loan]
	if !ok {
		return
	}
	delete(i.byLoan, loan)
	i.byDue.Delete(prev)
}

// Len reports the number of tracked loans.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.byLoan)
}

// Emit updates the index from lending events.
func (i *Index) Emit(evt events.Event) {
	switch e := evt.(type) {
	case events.LoanCreated:
		i.Track(Entry{
			Loan:             e.Loan,
			Borrower:         e.Borrower,
			Mint:             e.Mint,
			DueAt:            e.DueAt,
			LiquidationPrice: e.LiquidationPrice,
		})
	case events.LoanRepaid:
		i.Forget(e.Loan)
	case events.LoanLiquidated:
		i.Forget(e.Loan)
	}
}

// Due returns the loans whose due time is strictly before now, earliest first.
func (i *Index) Due(now int64) []Entry {
	i.mu.RLock()
	defer i.mu.RUnlock()
	var out []Entry
	i.byDue.Ascend(func(item Entry) bool {
		if item.DueAt >= now {
			return false
		}
		out = append(out, item)
		return true
	})
	return out
}

// Snapshot returns every tracked loan in due order.
func (i *Index) Snapshot() []Entry {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]Entry, 0, i.byDue.Len())
	i.byDue.Ascend(func(item Entry) bool {
		out = append(out, item)
		return true
	})
	return out
}
