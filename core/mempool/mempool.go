package mempool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"emochain/core/block"
)

// ErrDuplicateTx rejects a transaction already pending in the pool.
// Content-identical resubmissions are a no-op by design; the sender keeps
// its original position in the inclusion order.
var ErrDuplicateTx = errors.New("transaction already in mempool")

// Mempool holds pending transactions between submission and block
// inclusion, in FIFO order. At capacity the oldest pending transaction is
// evicted into the expired pool rather than rejecting the new one.
type Mempool struct {
	mu          sync.Mutex
	txs         map[string]*block.Transaction // tx ID -> transaction
	order       []string                      // FIFO inclusion order
	maxTxs      int
	ExpiredPool *ExpiredTxPool
}

// NewMempool creates a pool bounded to maxTxs pending transactions.
func NewMempool(maxTxs int) *Mempool {
	return &Mempool{
		txs:         make(map[string]*block.Transaction),
		order:       make([]string, 0),
		maxTxs:      maxTxs,
		ExpiredPool: NewExpiredTxPool(),
	}
}

// AddTx validates a transaction and admits it to the pool. Invalid
// transactions never enter; duplicates return ErrDuplicateTx. When the
// pool is full the oldest transaction is displaced into the expired pool.
func (mp *Mempool) AddTx(tx *block.Transaction) error {
	if err := tx.IsValid(); err != nil {
		return fmt.Errorf("mempool admission: %w", err)
	}
	id := tx.ID()

	mp.mu.Lock()
	defer mp.mu.Unlock()
	if _, exists := mp.txs[id]; exists {
		return ErrDuplicateTx
	}
	if len(mp.txs) >= mp.maxTxs && len(mp.order) > 0 {
		oldest := mp.order[0]
		mp.archiveLocked(oldest, "displaced")
		delete(mp.txs, oldest)
		mp.order = mp.order[1:]
	}
	mp.txs[id] = tx
	mp.order = append(mp.order, id)
	return nil
}

// RemoveIncluded drops every transaction of an accepted block from the
// pool in one pass.
func (mp *Mempool) RemoveIncluded(txs []*block.Transaction) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	for _, tx := range txs {
		mp.removeLocked(tx.ID())
	}
}

func (mp *Mempool) removeLocked(txID string) {
	if _, exists := mp.txs[txID]; !exists {
		return
	}
	delete(mp.txs, txID)
	for i, id := range mp.order {
		if id == txID {
			mp.order = append(mp.order[:i], mp.order[i+1:]...)
			break
		}
	}
}

// Evict removes a pending transaction and archives it with the given
// reason. Reports false when the transaction is not pending.
func (mp *Mempool) Evict(txID, reason string) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if _, exists := mp.txs[txID]; !exists {
		return false
	}
	mp.archiveLocked(txID, reason)
	mp.removeLocked(txID)
	return true
}

// GetTx returns a pending transaction by ID.
func (mp *Mempool) GetTx(txID string) (*block.Transaction, bool) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	tx, ok := mp.txs[txID]
	return tx, ok
}

// PendingTxs returns all pending transactions in inclusion order.
func (mp *Mempool) PendingTxs() []*block.Transaction {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	txs := make([]*block.Transaction, 0, len(mp.txs))
	for _, id := range mp.order {
		txs = append(txs, mp.txs[id])
	}
	return txs
}

// BatchTxs returns up to max transactions in inclusion order without
// removing them. The producer calls RemoveIncluded only after the block is
// accepted, so a failed mining round leaves the pool untouched.
func (mp *Mempool) BatchTxs(max int) []*block.Transaction {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	n := len(mp.order)
	if max < n {
		n = max
	}
	txs := make([]*block.Transaction, 0, n)
	for _, id := range mp.order[:n] {
		txs = append(txs, mp.txs[id])
	}
	return txs
}

// Len reports the pending transaction count.
func (mp *Mempool) Len() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return len(mp.txs)
}

// PurgeExpired moves transactions older than maxAge into the expired pool
// and returns how many were purged.
func (mp *Mempool) PurgeExpired(maxAge time.Duration) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	now := time.Now()
	purged := 0
	newOrder := make([]string, 0, len(mp.order))
	for _, id := range mp.order {
		tx := mp.txs[id]
		if now.Sub(tx.Timestamp) > maxAge {
			mp.archiveLocked(id, "timeout")
			delete(mp.txs, id)
			purged++
		} else {
			newOrder = append(newOrder, id)
		}
	}
	mp.order = newOrder
	return purged
}

// archiveLocked records a transaction in the expired pool, preserving
// resubmission history if the same ID expired before.
func (mp *Mempool) archiveLocked(txID, reason string) {
	if mp.ExpiredPool == nil {
		return
	}
	tx := mp.txs[txID]
	if existing, ok := mp.ExpiredPool.GetExpiredTx(txID); ok {
		existing.ExpiredAt = time.Now()
		existing.Reason = reason
		mp.ExpiredPool.AddExpiredTx(existing)
		return
	}
	mp.ExpiredPool.AddExpiredTx(ExpiredTx{
		TxID:      txID,
		Tx:        tx,
		ExpiredAt: time.Now(),
		Reason:    reason,
	})
}
