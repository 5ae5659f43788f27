package block

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"emochain/core/validator"
	"emochain/types/ids"
)

// Status tracks a block through its lifecycle: assembled -> mining ->
// mined -> validated -> accepted, with mining_failed and rejected as the
// failure exits. Accepted and rejected are terminal.
type Status string

const (
	StatusAssembled    Status = "assembled"
	StatusMining       Status = "mining"
	StatusMined        Status = "mined"
	StatusMiningFailed Status = "mining_failed"
	StatusValidated    Status = "validated"
	StatusAccepted     Status = "accepted"
	StatusRejected     Status = "rejected"
)

// Typed rejection reasons, checked in Validate order. External layers log
// and alert on these; none of them is ever folded into a bare false.
var (
	ErrMerkleMismatch       = errors.New("merkle root does not match transactions")
	ErrBlockTampered        = errors.New("block hash does not match contents")
	ErrInsufficientWork     = errors.New("block hash does not satisfy difficulty")
	ErrChainLinkMismatch    = errors.New("previous hash does not match chain tip")
	ErrUnauthorizedProposer = errors.New("proposer was not selected for this height")
)

const (
	// MinDifficulty and MaxDifficulty bound the leading-zero-hex-digit
	// difficulty. Light mining is a pacing mechanism here, not security.
	MinDifficulty = 1
	MaxDifficulty = 4

	// MaxMineAttempts bounds the nonce search; exhausting it reports
	// ErrInsufficientWork instead of spinning forever.
	MaxMineAttempts = 1 << 22
)

// Block binds an ordered transaction set to its Merkle root, the proposer
// elected for its height, and a light proof-of-work. Immutable once
// accepted; a failing block is rejected, not repaired.
type Block struct {
	Index            uint64         `json:"index"`
	Timestamp        time.Time      `json:"timestamp"`
	Transactions     []*Transaction `json:"transactions"`
	PrevHash         ids.ID         `json:"prevHash"`
	MerkleRoot       ids.ID         `json:"merkleRoot"`
	ValidatorID      string         `json:"validatorId"`
	ValidatorAddress string         `json:"validatorAddress"`
	EmotionalScore   float64        `json:"emotionalScore"`
	ConsensusScore   float64        `json:"consensusScore"`
	Authenticity     float64        `json:"authenticity"`
	Difficulty       int            `json:"difficulty"`
	Nonce            uint64         `json:"nonce"`
	Hash             ids.ID         `json:"hash"`
	Status           Status         `json:"status,omitempty"`
}

// NewBlock assembles a block skeleton: the Merkle root is computed
// immediately and the included transactions are sealed against re-signing.
func NewBlock(index uint64, txs []*Transaction, prevHash ids.ID, v *validator.Validator, consensusScore float64, difficulty int) *Block {
	if difficulty < MinDifficulty {
		difficulty = MinDifficulty
	}
	if difficulty > MaxDifficulty {
		difficulty = MaxDifficulty
	}
	b := &Block{
		Index:          index,
		Timestamp:      time.Now().UTC(),
		Transactions:   txs,
		PrevHash:       prevHash,
		MerkleRoot:     NewMerkleTree(txs).Root(),
		ConsensusScore: consensusScore,
		Difficulty:     difficulty,
		Status:         StatusAssembled,
	}
	if v != nil {
		b.ValidatorID = v.ID
		b.ValidatorAddress = v.Address
		b.EmotionalScore = v.EmotionalScore
		b.Authenticity = v.Authenticity
	}
	for _, tx := range txs {
		tx.Seal()
	}
	return b
}

// ComputeHash digests the header fields, nonce included. Transactions are
// covered through the Merkle root; Status is lifecycle metadata and stays
// outside the hash.
func (b *Block) ComputeHash() ids.ID {
	header := struct {
		Index            uint64
		Timestamp        time.Time
		PrevHash         ids.ID
		MerkleRoot       ids.ID
		ValidatorID      string
		ValidatorAddress string
		EmotionalScore   float64
		ConsensusScore   float64
		Authenticity     float64
		Difficulty       int
		Nonce            uint64
	}{
		b.Index, b.Timestamp, b.PrevHash, b.MerkleRoot, b.ValidatorID,
		b.ValidatorAddress, b.EmotionalScore, b.ConsensusScore,
		b.Authenticity, b.Difficulty, b.Nonce,
	}
	data, _ := json.Marshal(header)
	return ids.NewID(data)
}

// meetsDifficulty checks the leading-zero-hex-digit predicate.
func meetsDifficulty(hash ids.ID, difficulty int) bool {
	s := hash.String()
	if difficulty > len(s) {
		difficulty = len(s)
	}
	for i := 0; i < difficulty; i++ {
		if s[i] != '0' {
			return false
		}
	}
	return true
}

// Mine searches nonces from the current value until the hash satisfies the
// difficulty predicate or the attempt ceiling is reached. On exhaustion it
// reports ErrInsufficientWork; the caller may retry from a new nonce range
// or yield the slot.
func (b *Block) Mine() error {
	b.Status = StatusMining
	start := b.Nonce
	for i := uint64(0); i < MaxMineAttempts; i++ {
		b.Nonce = start + i
		hash := b.ComputeHash()
		if meetsDifficulty(hash, b.Difficulty) {
			b.Hash = hash
			b.Status = StatusMined
			return nil
		}
	}
	b.Status = StatusMiningFailed
	return fmt.Errorf("%w: exhausted %d attempts at difficulty %d", ErrInsufficientWork, MaxMineAttempts, b.Difficulty)
}

// Validate runs the acceptance checks in fixed order and returns the first
// typed failure: merkle integrity, hash tamper, difficulty, chain link,
// proposer authorization. expectedProposer is the validator the
// deterministic draw elected for this height; nil skips the proposer check
// (genesis only).
func (b *Block) Validate(prevHash ids.ID, expectedProposer *validator.Validator) error {
	if NewMerkleTree(b.Transactions).Root() != b.MerkleRoot {
		return fmt.Errorf("%w: block %d", ErrMerkleMismatch, b.Index)
	}
	if b.ComputeHash() != b.Hash {
		return fmt.Errorf("%w: block %d", ErrBlockTampered, b.Index)
	}
	if !meetsDifficulty(b.Hash, b.Difficulty) {
		return fmt.Errorf("%w: block %d needs %d leading zero digits", ErrInsufficientWork, b.Index, b.Difficulty)
	}
	if b.PrevHash != prevHash {
		return fmt.Errorf("%w: block %d links %s, tip is %s", ErrChainLinkMismatch, b.Index, b.PrevHash, prevHash)
	}
	if expectedProposer != nil && b.ValidatorID != expectedProposer.ID {
		return fmt.Errorf("%w: block %d proposed by %s, elected %s", ErrUnauthorizedProposer, b.Index, b.ValidatorID, expectedProposer.ID)
	}
	b.Status = StatusValidated
	return nil
}

// Serialize encodes the block as JSON for storage and peer delivery.
func (b *Block) Serialize() ([]byte, error) {
	return json.Marshal(b)
}

// Deserialize decodes a block from raw bytes. This is the entry point for
// remotely delivered blocks; the transactions come back sealed and the
// caller is expected to run Validate before accepting.
func Deserialize(data []byte) (*Block, error) {
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	for _, tx := range b.Transactions {
		tx.Seal()
	}
	return &b, nil
}

// Size is the serialized byte length, exposed for telemetry.
func (b *Block) Size() int {
	data, err := b.Serialize()
	if err != nil {
		return 0
	}
	return len(data)
}
