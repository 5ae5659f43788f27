package mempool

import (
	"sync"
	"time"

	"emochain/core/block"
)

// ExpiredTx is the archive record for a transaction that left the pool
// without being included: timed out or displaced at capacity. The archive
// tracks resubmission lineage so a wallet retrying the same payment can be
// correlated with its earlier attempts.
type ExpiredTx struct {
	TxID              string             `json:"txId"`
	Tx                *block.Transaction `json:"tx,omitempty"`
	ExpiredAt         time.Time          `json:"expiredAt"`
	Reason            string             `json:"reason"` // "timeout" or "displaced"
	ResubmitCount     int                `json:"resubmitCount"`
	ResubmissionTxIDs []string           `json:"resubmissionTxIds,omitempty"`
	LastError         string             `json:"lastError,omitempty"`
}

// ExpiredTxPool is the in-memory archive of expired transactions.
type ExpiredTxPool struct {
	pool map[string]ExpiredTx
	lock sync.RWMutex
}

func NewExpiredTxPool() *ExpiredTxPool {
	return &ExpiredTxPool{
		pool: make(map[string]ExpiredTx),
	}
}

// AddExpiredTx adds or replaces an archive record.
func (e *ExpiredTxPool) AddExpiredTx(tx ExpiredTx) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.pool[tx.TxID] = tx
}

// GetExpiredTx retrieves an archive record by transaction ID.
func (e *ExpiredTxPool) GetExpiredTx(txID string) (ExpiredTx, bool) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	tx, ok := e.pool[txID]
	return tx, ok
}

// ListExpiredTxs returns all archive records.
func (e *ExpiredTxPool) ListExpiredTxs() []ExpiredTx {
	e.lock.RLock()
	defer e.lock.RUnlock()
	txs := make([]ExpiredTx, 0, len(e.pool))
	for _, tx := range e.pool {
		txs = append(txs, tx)
	}
	return txs
}

// RecordResubmission links a new transaction ID to an expired one and
// bumps its resubmit counter.
func (e *ExpiredTxPool) RecordResubmission(expiredID, newTxID string) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	rec, ok := e.pool[expiredID]
	if !ok {
		return false
	}
	rec.ResubmitCount++
	rec.ResubmissionTxIDs = append(rec.ResubmissionTxIDs, newTxID)
	e.pool[expiredID] = rec
	return true
}

// RecordFailure stores the latest failure reason for an expired
// transaction, for diagnosis of repeat offenders.
func (e *ExpiredTxPool) RecordFailure(txID, message string) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	rec, ok := e.pool[txID]
	if !ok {
		return false
	}
	rec.LastError = message
	e.pool[txID] = rec
	return true
}
