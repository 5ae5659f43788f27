package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"

	"emochain/core/block"
	"emochain/types/ids"
)

// Key layout:
//
//	block:<hex hash>      -> encrypted serialized block
//	height:<20-digit dec> -> raw block hash (index for O(1) height lookup)
//	txseen:<tx id>        -> big-endian height of the including block
//	tip                   -> raw hash of the highest accepted block
//
// Heights are zero-padded so lexicographic key order matches numeric
// order and prefix iteration walks the chain in height order.
const (
	blockKeyPrefix  = "block:"
	heightKeyPrefix = "height:"
	txSeenKeyPrefix = "txseen:"
	tipKey          = "tip"
)

// ErrNotFound is returned for missing blocks, heights, or an unset tip.
var ErrNotFound = errors.New("not found in storage")

// StateBackend abstracts the persistent key-value store for chain state.
type StateBackend interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
}

// Storage persists accepted blocks in LevelDB, encrypted at rest.
type Storage struct {
	db *leveldb.DB
}

func NewStorage(path string) (*Storage, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// Get retrieves a raw value by key.
func (s *Storage) Get(key string) ([]byte, error) {
	data, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}

// Put stores a raw key-value pair.
func (s *Storage) Put(key string, value []byte) error {
	return s.db.Put([]byte(key), value, nil)
}

// Delete removes a raw key.
func (s *Storage) Delete(key string) error {
	return s.db.Delete([]byte(key), nil)
}

func blockKey(id ids.ID) []byte {
	return []byte(blockKeyPrefix + id.String())
}

func heightKey(height uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", heightKeyPrefix, height))
}

func txSeenKey(txID string) []byte {
	return []byte(txSeenKeyPrefix + txID)
}

// SaveBlock writes an accepted block, its height index entry, its
// transaction index entries, and the tip pointer in one batch, so a crash
// never leaves them out of step.
func (s *Storage) SaveBlock(b *block.Block) error {
	data, err := b.Serialize()
	if err != nil {
		return fmt.Errorf("serialize block %d: %w", b.Index, err)
	}
	enc, err := Encrypt(data)
	if err != nil {
		return fmt.Errorf("encrypt block %d: %w", b.Index, err)
	}
	batch := new(leveldb.Batch)
	batch.Put(blockKey(b.Hash), enc)
	batch.Put(heightKey(b.Index), b.Hash[:])
	for _, tx := range b.Transactions {
		height := make([]byte, 8)
		binary.BigEndian.PutUint64(height, b.Index)
		batch.Put(txSeenKey(tx.ID()), height)
	}
	batch.Put([]byte(tipKey), b.Hash[:])
	return s.db.Write(batch, nil)
}

// TxSeenAt reports whether a transaction was already mined into an
// accepted block, and at which height. The chain checks it before ledger
// application so a signed transfer can never be charged twice.
func (s *Storage) TxSeenAt(txID string) (uint64, bool, error) {
	raw, err := s.db.Get(txSeenKey(txID), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(raw) != 8 {
		return 0, false, fmt.Errorf("corrupt transaction index entry for %s", txID)
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

// GetBlock loads and decrypts a block by hash.
func (s *Storage) GetBlock(id ids.ID) (*block.Block, error) {
	enc, err := s.db.Get(blockKey(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("%w: block %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	data, err := Decrypt(enc)
	if err != nil {
		return nil, fmt.Errorf("decrypt block %s: %w", id, err)
	}
	return block.Deserialize(data)
}

// GetBlockIDByHeight resolves a height to the stored block hash.
func (s *Storage) GetBlockIDByHeight(height uint64) (ids.ID, error) {
	raw, err := s.db.Get(heightKey(height), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return ids.Empty, fmt.Errorf("%w: height %d", ErrNotFound, height)
	}
	if err != nil {
		return ids.Empty, err
	}
	var id ids.ID
	copy(id[:], raw)
	return id, nil
}

// GetBlockByHeight loads a block through the height index.
func (s *Storage) GetBlockByHeight(height uint64) (*block.Block, error) {
	id, err := s.GetBlockIDByHeight(height)
	if err != nil {
		return nil, err
	}
	return s.GetBlock(id)
}

// TipID returns the hash of the highest accepted block.
func (s *Storage) TipID() (ids.ID, error) {
	raw, err := s.db.Get([]byte(tipKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return ids.Empty, fmt.Errorf("%w: chain tip", ErrNotFound)
	}
	if err != nil {
		return ids.Empty, err
	}
	var id ids.ID
	copy(id[:], raw)
	return id, nil
}

// TipBlock loads the highest accepted block.
func (s *Storage) TipBlock() (*block.Block, error) {
	id, err := s.TipID()
	if err != nil {
		return nil, err
	}
	return s.GetBlock(id)
}

// HasGenesisBlock reports whether height 0 has been written.
func (s *Storage) HasGenesisBlock() (bool, error) {
	_, err := s.db.Get(heightKey(0), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetGenesisBlock loads the block at height 0.
func (s *Storage) GetGenesisBlock() (*block.Block, error) {
	return s.GetBlockByHeight(0)
}

// BlockSummary is the list-view projection served by the API.
type BlockSummary struct {
	Hash      ids.ID `json:"hash"`
	Index     uint64 `json:"index"`
	Timestamp string `json:"timestamp"`
	TxCount   int    `json:"txCount"`
	Validator string `json:"validatorAddress"`
}

// ListRecentBlocks walks the height index backwards and returns up to max
// summaries, newest first.
func (s *Storage) ListRecentBlocks(max int) ([]BlockSummary, error) {
	iter := s.HeightIterator()
	defer iter.Release()

	var summaries []BlockSummary
	for ok := iter.Last(); ok && len(summaries) < max; ok = iter.Prev() {
		var id ids.ID
		copy(id[:], iter.Value())
		b, err := s.GetBlock(id)
		if err != nil {
			continue // skip unreadable entries, the scan surfaces them
		}
		summaries = append(summaries, BlockSummary{
			Hash:      b.Hash,
			Index:     b.Index,
			Timestamp: b.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
			TxCount:   len(b.Transactions),
			Validator: b.ValidatorAddress,
		})
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// ChainHeight returns the tip height and whether any block exists.
func (s *Storage) ChainHeight() (uint64, bool, error) {
	tip, err := s.TipBlock()
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return tip.Index, true, nil
}

// TruncateAbove deletes every block above the given height and repoints
// the tip. The integrity scan uses it to drop a corrupt tail; normal
// operation never removes blocks.
func (s *Storage) TruncateAbove(height uint64) error {
	tipHeight, ok, err := s.ChainHeight()
	if err != nil {
		return err
	}
	if !ok || tipHeight <= height {
		return nil
	}
	batch := new(leveldb.Batch)
	for h := height + 1; h <= tipHeight; h++ {
		id, err := s.GetBlockIDByHeight(h)
		if err != nil {
			continue
		}
		// Free the transaction index entries so a rolled-back transfer
		// can be mined again. An unreadable block cannot surrender its
		// transaction IDs; the scan surfaces it.
		if b, err := s.GetBlock(id); err == nil {
			for _, tx := range b.Transactions {
				batch.Delete(txSeenKey(tx.ID()))
			}
		}
		batch.Delete(blockKey(id))
		batch.Delete(heightKey(h))
	}
	keep, err := s.GetBlockIDByHeight(height)
	if err != nil {
		return err
	}
	batch.Put([]byte(tipKey), keep[:])
	return s.db.Write(batch, nil)
}

// Iterator exposes a raw iterator over the whole keyspace, used by the
// ban-list bookkeeping.
func (s *Storage) Iterator() iterator.Iterator {
	return s.db.NewIterator(nil, nil)
}

// HeightIterator iterates the height index in ascending height order.
func (s *Storage) HeightIterator() iterator.Iterator {
	return s.db.NewIterator(util.BytesPrefix([]byte(heightKeyPrefix)), nil)
}
