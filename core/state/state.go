package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"emochain/core/audit"
	"emochain/core/block"
	"emochain/core/storage"
	"emochain/types/ids"
)

var (
	// ErrInsufficientFunds rejects a block containing a transfer the
	// sender cannot cover. The whole block is refused; partial
	// application never happens.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNonSequentialBlock rejects application out of height order.
	ErrNonSequentialBlock = errors.New("block does not extend ledger head")
)

// Persisted state keys.
const (
	balancesKey = "state:balances"
	headKey     = "state:chain_head"
	heightKey   = "state:chain_height"
)

// Ledger is the account balance state derived from the chain. Transfers
// move funds between addresses; protocol rewards mint new supply. Fees
// leave the sender with the transfer and come back to the proposer inside
// the block's mining reward, so per block the net supply change is exactly
// base plus consensus bonus.
type Ledger struct {
	mu       sync.RWMutex
	db       storage.StateBackend
	audit    audit.Logger
	balances map[string]int64
	head     ids.ID
	height   uint64
	hasHead  bool
}

// ApplyReceipt reports the outcome of applying one block to the ledger.
type ApplyReceipt struct {
	BlockHash string   `json:"blockHash"`
	Status    string   `json:"status"` // "committed" or "failed"
	Timestamp string   `json:"timestamp"`
	Errors    []string `json:"errors,omitempty"`
}

// NewLedger creates a ledger over the given state backend. Pass audit.Nop
// when no audit sink is configured.
func NewLedger(db storage.StateBackend, auditLog audit.Logger) *Ledger {
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	return &Ledger{
		db:       db,
		audit:    auditLog,
		balances: make(map[string]int64),
	}
}

// Load restores persisted balances and the head pointer. A fresh database
// leaves the ledger empty with no head.
func (l *Ledger) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if data, err := l.db.Get(balancesKey); err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, &l.balances); err != nil {
			return fmt.Errorf("decode balances: %w", err)
		}
	}
	if data, err := l.db.Get(headKey); err == nil && len(data) == len(l.head) {
		copy(l.head[:], data)
		l.hasHead = true
	}
	if data, err := l.db.Get(heightKey); err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, &l.height); err != nil {
			return fmt.Errorf("decode height: %w", err)
		}
	}
	return nil
}

// ApplyBlock applies an accepted block's transactions to the balances and
// advances the head. The block is dry-run first; any failure leaves the
// ledger untouched and returns a failed receipt.
func (l *Ledger) ApplyBlock(b *block.Block, updatedBy string) (ApplyReceipt, error) {
	receipt := ApplyReceipt{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if b == nil {
		receipt.Status = "failed"
		receipt.Errors = append(receipt.Errors, "nil_block")
		return receipt, errors.New("block is nil")
	}
	receipt.BlockHash = b.Hash.String()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hasHead {
		if b.Index != l.height+1 {
			receipt.Status = "failed"
			receipt.Errors = append(receipt.Errors, "non_sequential")
			l.logCommit(b, "failure", "out of order")
			return receipt, fmt.Errorf("%w: block %d after height %d", ErrNonSequentialBlock, b.Index, l.height)
		}
	} else if b.Index != 0 {
		receipt.Status = "failed"
		receipt.Errors = append(receipt.Errors, "missing_genesis")
		l.logCommit(b, "failure", "ledger has no genesis")
		return receipt, fmt.Errorf("%w: block %d on empty ledger", ErrNonSequentialBlock, b.Index)
	}

	// Dry-run on a delta map so a mid-block failure cannot leave the
	// balances half-applied.
	delta := make(map[string]int64)
	current := func(addr string) int64 {
		if d, ok := delta[addr]; ok {
			return d
		}
		return l.balances[addr]
	}
	for _, tx := range b.Transactions {
		switch tx.Type {
		case block.TxTransfer:
			need := tx.Amount + tx.Fee
			if current(tx.From) < need {
				receipt.Status = "failed"
				receipt.Errors = append(receipt.Errors, "insufficient_funds")
				l.logCommit(b, "failure", fmt.Sprintf("tx %s overdraws %s", tx.ID(), tx.From))
				return receipt, fmt.Errorf("%w: %s needs %d, has %d", ErrInsufficientFunds, tx.From, need, current(tx.From))
			}
			delta[tx.From] = current(tx.From) - need
			delta[tx.To] = current(tx.To) + tx.Amount
		case block.TxMiningReward, block.TxValidationReward:
			delta[tx.To] = current(tx.To) + tx.Amount
		}
	}

	for addr, bal := range delta {
		l.balances[addr] = bal
	}
	l.head = b.Hash
	l.height = b.Index
	l.hasHead = true
	if err := l.persistLocked(); err != nil {
		receipt.Status = "failed"
		receipt.Errors = append(receipt.Errors, "db_write_error")
		l.logCommit(b, "failure", err.Error())
		return receipt, err
	}

	receipt.Status = "committed"
	l.logCommit(b, "success", "committed by "+updatedBy)
	return receipt, nil
}

func (l *Ledger) logCommit(b *block.Block, result, reason string) {
	l.audit.LogEvent(audit.Event{
		Timestamp: time.Now().UTC(),
		EventType: "BlockCommit",
		EntityID:  b.Hash.String(),
		Result:    result,
		Reason:    reason,
		Metadata:  map[string]string{"height": fmt.Sprintf("%d", b.Index)},
	})
}

func (l *Ledger) persistLocked() error {
	balData, err := json.Marshal(l.balances)
	if err != nil {
		return err
	}
	if err := l.db.Put(balancesKey, balData); err != nil {
		return err
	}
	if err := l.db.Put(headKey, l.head[:]); err != nil {
		return err
	}
	heightData, _ := json.Marshal(l.height)
	return l.db.Put(heightKey, heightData)
}

// Balance returns an address's spendable balance, zero for unknown
// addresses.
func (l *Ledger) Balance(addr string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[addr]
}

// FilterCoverable dry-runs the batch in order against current balances and
// splits it into transactions the senders can fund and those they cannot.
// Credits received earlier in the batch count, matching ApplyBlock, so the
// kept set is exactly what a block built from it would commit. The producer
// uses this to evict transactions that would poison a whole block.
func (l *Ledger) FilterCoverable(txs []*block.Transaction) (keep, rejected []*block.Transaction) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	delta := make(map[string]int64)
	current := func(addr string) int64 {
		if d, ok := delta[addr]; ok {
			return d
		}
		return l.balances[addr]
	}
	for _, tx := range txs {
		switch tx.Type {
		case block.TxTransfer:
			need := tx.Amount + tx.Fee
			if current(tx.From) < need {
				rejected = append(rejected, tx)
				continue
			}
			delta[tx.From] = current(tx.From) - need
			delta[tx.To] = current(tx.To) + tx.Amount
		case block.TxMiningReward, block.TxValidationReward:
			delta[tx.To] = current(tx.To) + tx.Amount
		}
		keep = append(keep, tx)
	}
	return keep, rejected
}

// CanCover reports whether addr can fund a spend of amount plus fee,
// checked by the mempool before admission.
func (l *Ledger) CanCover(addr string, amount, fee int64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[addr] >= amount+fee
}

// Balances returns a copy of every non-zero balance.
func (l *Ledger) Balances() map[string]int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]int64, len(l.balances))
	for addr, bal := range l.balances {
		out[addr] = bal
	}
	return out
}

// Head returns the last applied block hash and height.
func (l *Ledger) Head() (ids.ID, uint64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.head, l.height, l.hasHead
}
