package chain

import (
	"errors"
	"fmt"
	"sync"

	"emochain/core/block"
	"emochain/core/state"
	"emochain/core/storage"
	"emochain/core/validator"
	"emochain/types/ids"
)

var (
	// ErrNoGenesis means the chain was opened before a genesis block was
	// written.
	ErrNoGenesis = errors.New("storage has no genesis block")

	// ErrIndexMismatch rejects a block whose height does not extend the
	// tip by exactly one.
	ErrIndexMismatch = errors.New("block index does not extend chain height")

	// ErrDifficultyMismatch rejects a block declaring a difficulty other
	// than the one fixed at genesis. Without this pin a proposer could
	// self-declare difficulty 1 and Validate would happily check the
	// weaker target.
	ErrDifficultyMismatch = errors.New("block difficulty does not match chain difficulty")

	// ErrDuplicateTxInBlock rejects a block listing the same transaction
	// more than once.
	ErrDuplicateTxInBlock = errors.New("transaction appears twice in block")

	// ErrReplayedTx rejects a block re-including a transaction that an
	// earlier accepted block already carries. One signature authorizes
	// one spend.
	ErrReplayedTx = errors.New("transaction already mined into the chain")
)

// Chain is the single-branch acceptance gate: blocks enter through
// AppendBlock or AcceptRemote, pass full validation against the current
// tip, are applied to the ledger, and persist. There is no fork choice; a
// block that does not extend the tip is rejected and resync is the peer
// layer's problem.
type Chain struct {
	mu         sync.Mutex
	store      *storage.Storage
	ledger     *state.Ledger
	tip        *block.Block
	difficulty int
}

// NewChain opens the chain at the stored tip and replays any blocks the
// ledger has not seen yet, so a crash between block persistence and ledger
// persistence heals on restart.
func NewChain(store *storage.Storage, ledger *state.Ledger) (*Chain, error) {
	tip, err := store.TipBlock()
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoGenesis
	}
	if err != nil {
		return nil, err
	}
	if err := ledger.Load(); err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	// The genesis block fixes the difficulty every later block must
	// declare and satisfy.
	gen, err := store.GetGenesisBlock()
	if err != nil {
		return nil, fmt.Errorf("load genesis: %w", err)
	}
	c := &Chain{store: store, ledger: ledger, tip: tip, difficulty: gen.Difficulty}
	if err := c.replayLedger(); err != nil {
		return nil, fmt.Errorf("replay ledger: %w", err)
	}
	return c, nil
}

// replayLedger applies stored blocks the ledger is missing, in height
// order. A fresh ledger replays the whole chain.
func (c *Chain) replayLedger() error {
	next := uint64(0)
	if _, height, ok := c.ledger.Head(); ok {
		next = height + 1
	}
	for h := next; h <= c.tip.Index; h++ {
		b, err := c.store.GetBlockByHeight(h)
		if err != nil {
			return err
		}
		if _, err := c.ledger.ApplyBlock(b, "replay"); err != nil {
			return err
		}
	}
	return nil
}

// Tip returns a copy of the current tip block.
func (c *Chain) Tip() block.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.tip
}

// Height returns the current chain height.
func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tip.Index
}

// Difficulty returns the mining difficulty fixed at genesis.
func (c *Chain) Difficulty() int {
	return c.difficulty
}

// AppendBlock runs the acceptance gate against the current tip:
// height continuity, the genesis-pinned difficulty, the block's own
// validity checks, per-transaction validity with duplicate and replay
// rejection, then ledger application. An accepted block is persisted and
// becomes the new tip; any failure marks the block rejected and leaves
// chain state untouched.
func (c *Chain) AppendBlock(b *block.Block, expectedProposer *validator.Validator) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b.Index != c.tip.Index+1 {
		b.Status = block.StatusRejected
		return fmt.Errorf("%w: block %d on tip %d", ErrIndexMismatch, b.Index, c.tip.Index)
	}
	if b.Difficulty != c.difficulty {
		b.Status = block.StatusRejected
		return fmt.Errorf("%w: block %d declares %d, chain runs %d", ErrDifficultyMismatch, b.Index, b.Difficulty, c.difficulty)
	}
	if err := b.Validate(c.tip.Hash, expectedProposer); err != nil {
		b.Status = block.StatusRejected
		return err
	}
	inBlock := make(map[string]struct{}, len(b.Transactions))
	for _, tx := range b.Transactions {
		if err := tx.IsValid(); err != nil {
			b.Status = block.StatusRejected
			return fmt.Errorf("block %d carries invalid transaction %s: %w", b.Index, tx.ID(), err)
		}
		id := tx.ID()
		if _, dup := inBlock[id]; dup {
			b.Status = block.StatusRejected
			return fmt.Errorf("%w: %s in block %d", ErrDuplicateTxInBlock, id, b.Index)
		}
		inBlock[id] = struct{}{}
		minedAt, seen, err := c.store.TxSeenAt(id)
		if err != nil {
			b.Status = block.StatusRejected
			return fmt.Errorf("transaction index lookup for %s: %w", id, err)
		}
		if seen {
			b.Status = block.StatusRejected
			return fmt.Errorf("%w: %s at height %d", ErrReplayedTx, id, minedAt)
		}
	}
	if err := c.store.SaveBlock(b); err != nil {
		return fmt.Errorf("persist block %d: %w", b.Index, err)
	}
	if _, err := c.ledger.ApplyBlock(b, b.ValidatorAddress); err != nil {
		// The stored tail is ahead of the ledger now; drop it so the
		// chain and ledger stay consistent.
		b.Status = block.StatusRejected
		if truncErr := c.store.TruncateAbove(c.tip.Index); truncErr != nil {
			return fmt.Errorf("ledger rejected block %d (%v) and truncate failed: %w", b.Index, err, truncErr)
		}
		return err
	}
	b.Status = block.StatusAccepted
	c.tip = b
	return nil
}

// AcceptRemote is the entry point for blocks delivered as raw bytes by the
// peer layer: deserialize, then run the same acceptance gate as local
// production.
func (c *Chain) AcceptRemote(data []byte, expectedProposer *validator.Validator) (*block.Block, error) {
	b, err := block.Deserialize(data)
	if err != nil {
		return nil, err
	}
	if err := c.AppendBlock(b, expectedProposer); err != nil {
		return b, err
	}
	return b, nil
}

// BlockByHeight loads an accepted block by height.
func (c *Chain) BlockByHeight(height uint64) (*block.Block, error) {
	return c.store.GetBlockByHeight(height)
}

// BlockByID loads an accepted block by hash.
func (c *Chain) BlockByID(id ids.ID) (*block.Block, error) {
	return c.store.GetBlock(id)
}

// Genesis loads the block at height 0.
func (c *Chain) Genesis() (*block.Block, error) {
	return c.store.GetGenesisBlock()
}
