package block

import (
	"errors"
	"strings"
	"testing"

	"emochain/core"
	"emochain/core/biometric"
	"emochain/core/validator"
	"emochain/types/ids"
)

// proposerFixture yields an eligible validator with emotional score 92:
// heart rate 70 bands to 100, stress 20 inverts to 80, focus 88,
// authenticity 1.0 scales to 100, quarter-weighted.
func proposerFixture(t *testing.T) *validator.Validator {
	t.Helper()
	kp, err := core.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate proposer key: %v", err)
	}
	reading := biometric.NewReading(70, 20, 88, 1.0)
	v := validator.NewValidator("val-proposer", kp.Address(), 1000, &reading)
	if v.EmotionalScore != 92 {
		t.Fatalf("fixture drift: expected emotional score 92, got %v", v.EmotionalScore)
	}
	return v
}

func minedBlockFixture(t *testing.T, difficulty int) (*Block, []*Transaction, ids.ID, *validator.Validator) {
	t.Helper()
	txs := make([]*Transaction, 3)
	for i := range txs {
		txs[i], _ = signedTransfer(t, int64(25*(i+1)), 1)
	}
	prev := ids.NewID([]byte("genesis"))
	v := proposerFixture(t)
	b := NewBlock(1, txs, prev, v, 88.0, difficulty)
	if err := b.Mine(); err != nil {
		t.Fatalf("mine: %v", err)
	}
	return b, txs, prev, v
}

func TestMineAndValidate(t *testing.T) {
	b, txs, prev, v := minedBlockFixture(t, 2)

	if b.Status != StatusMined {
		t.Fatalf("expected status %q after mining, got %q", StatusMined, b.Status)
	}
	if !strings.HasPrefix(b.Hash.String(), "00") {
		t.Fatalf("expected two leading zero digits, got %s", b.Hash)
	}
	if err := b.Validate(prev, v); err != nil {
		t.Fatalf("expected mined block to validate, got %v", err)
	}
	if b.Status != StatusValidated {
		t.Fatalf("expected status %q, got %q", StatusValidated, b.Status)
	}

	// Post-mining tamper with an included transaction must surface as a
	// Merkle mismatch, before any other check.
	txs[1].Amount += 1
	if err := b.Validate(prev, v); !errors.Is(err, ErrMerkleMismatch) {
		t.Fatalf("expected ErrMerkleMismatch, got %v", err)
	}
}

func TestHeaderTamperDetected(t *testing.T) {
	b, _, prev, v := minedBlockFixture(t, 1)
	b.EmotionalScore = 99.9
	if err := b.Validate(prev, v); !errors.Is(err, ErrBlockTampered) {
		t.Fatalf("expected ErrBlockTampered, got %v", err)
	}
}

func TestInsufficientWorkRejected(t *testing.T) {
	txs := []*Transaction{transferFixture(10)}
	prev := ids.NewID([]byte("genesis"))
	v := proposerFixture(t)
	b := NewBlock(1, txs, prev, v, 80.0, 2)

	// A proposer lying about work: hash is self-consistent but does not
	// clear the difficulty bar.
	for {
		if !meetsDifficulty(b.ComputeHash(), b.Difficulty) {
			break
		}
		b.Nonce++
	}
	b.Hash = b.ComputeHash()
	if err := b.Validate(prev, v); !errors.Is(err, ErrInsufficientWork) {
		t.Fatalf("expected ErrInsufficientWork, got %v", err)
	}
}

func TestChainLinkMismatch(t *testing.T) {
	b, _, _, v := minedBlockFixture(t, 1)
	otherTip := ids.NewID([]byte("some other tip"))
	if err := b.Validate(otherTip, v); !errors.Is(err, ErrChainLinkMismatch) {
		t.Fatalf("expected ErrChainLinkMismatch, got %v", err)
	}
}

func TestUnauthorizedProposer(t *testing.T) {
	b, _, prev, _ := minedBlockFixture(t, 1)
	reading := biometric.NewReading(72, 15, 90, 0.98)
	elected := validator.NewValidator("val-elected", "emo1other", 500, &reading)
	if err := b.Validate(prev, elected); !errors.Is(err, ErrUnauthorizedProposer) {
		t.Fatalf("expected ErrUnauthorizedProposer, got %v", err)
	}
}

func TestGenesisSkipsProposerCheck(t *testing.T) {
	prev := ids.Empty
	b := NewBlock(0, nil, prev, nil, 0, 1)
	if err := b.Mine(); err != nil {
		t.Fatalf("mine genesis: %v", err)
	}
	if err := b.Validate(prev, nil); err != nil {
		t.Fatalf("expected genesis-style block to validate, got %v", err)
	}
}

func TestDifficultyClamped(t *testing.T) {
	b := NewBlock(1, nil, ids.Empty, nil, 0, 0)
	if b.Difficulty != MinDifficulty {
		t.Errorf("expected difficulty clamped up to %d, got %d", MinDifficulty, b.Difficulty)
	}
	b = NewBlock(1, nil, ids.Empty, nil, 0, 99)
	if b.Difficulty != MaxDifficulty {
		t.Errorf("expected difficulty clamped down to %d, got %d", MaxDifficulty, b.Difficulty)
	}
}

func TestEmptyBlockUsesSentinelRoot(t *testing.T) {
	b := NewBlock(3, nil, ids.NewID([]byte("tip")), nil, 0, 1)
	if b.MerkleRoot != ids.NewID(nil) {
		t.Fatalf("expected sentinel merkle root, got %s", b.MerkleRoot)
	}
}

func TestNewBlockSealsTransactions(t *testing.T) {
	tx, sender := signedTransfer(t, 10, 0)
	NewBlock(1, []*Transaction{tx}, ids.Empty, nil, 0, 1)
	if !tx.Sealed() {
		t.Fatal("expected included transaction to be sealed")
	}
	if err := tx.Sign(sender); !errors.Is(err, ErrTxSealed) {
		t.Fatalf("expected ErrTxSealed, got %v", err)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	b, _, prev, v := minedBlockFixture(t, 2)
	data, err := b.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	out, err := Deserialize(data)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if out.Hash != b.Hash {
		t.Fatalf("expected hash %s after round trip, got %s", b.Hash, out.Hash)
	}
	if len(out.Transactions) != len(b.Transactions) {
		t.Fatalf("expected %d transactions, got %d", len(b.Transactions), len(out.Transactions))
	}
	for i, tx := range out.Transactions {
		if !tx.Sealed() {
			t.Fatalf("expected transaction %d to come back sealed", i)
		}
	}
	if err := out.Validate(prev, v); err != nil {
		t.Fatalf("expected deserialized block to validate, got %v", err)
	}
}

func TestDeserializeGarbage(t *testing.T) {
	if _, err := Deserialize([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed block bytes")
	}
}

func TestBlockSize(t *testing.T) {
	b, _, _, _ := minedBlockFixture(t, 1)
	if b.Size() <= 0 {
		t.Fatal("expected positive serialized size")
	}
}
