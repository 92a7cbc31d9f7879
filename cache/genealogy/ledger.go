package genealogy

import (
	"context"
	"sync"
)

// Ledger keeps the commission amounts credited to each member, in minor units
type Ledger struct {
	lock    sync.RWMutex
	amounts map[uint64]int64
}

// NewLedger godoc
func NewLedger() *Ledger {
	return &Ledger{amounts: make(map[uint64]int64)}
}

// Credit adds an amount to the member's own commissions
func (ledger *Ledger) Credit(memberID uint64, amount int64) {
	ledger.lock.Lock()
	ledger.amounts[memberID] += amount
	ledger.lock.Unlock()
}

// CommissionTotals returns a copy of the own commission total of every member
func (ledger *Ledger) CommissionTotals(ctx context.Context) (map[uint64]int64, error) {
	ledger.lock.RLock()
	defer ledger.lock.RUnlock()
	totals := make(map[uint64]int64, len(ledger.amounts))
	for id, amount := range ledger.amounts {
		totals[id] = amount
	}
	return totals, nil
}
