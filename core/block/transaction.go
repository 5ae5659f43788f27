package block

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"emochain/core"
	"emochain/core/biometric"
	"emochain/types/ids"
)

// TxType discriminates the three transaction kinds the chain accepts.
type TxType string

const (
	TxTransfer         TxType = "transfer"
	TxMiningReward     TxType = "mining_reward"
	TxValidationReward TxType = "validation_reward"
)

// NetworkAddress is the synthetic sender of protocol-issued rewards. It is
// not a spendable wallet; reward transactions carry no signature.
const NetworkAddress = "network"

var (
	// ErrSignatureInvalid marks a transaction whose signature does not
	// verify against the declared sender key. Rejected, never retried.
	ErrSignatureInvalid = errors.New("transaction signature invalid")

	// ErrRewardBreakdown marks a reward whose base/bonus/fees fields do
	// not sum to the transaction amount.
	ErrRewardBreakdown = errors.New("reward breakdown does not sum to amount")

	// ErrTxSealed is returned when signing a transaction that is already
	// included in a block.
	ErrTxSealed = errors.New("transaction already sealed into a block")
)

// RewardBreakdown itemizes a mining reward. The construction-time invariant
// Base+ConsensusBonus+Fees == Amount is enforced, not just documented.
type RewardBreakdown struct {
	Base           int64 `json:"base"`
	ConsensusBonus int64 `json:"consensusBonus"`
	Fees           int64 `json:"fees"`
}

// Transaction is a signed value-transfer or protocol reward. Amounts are
// int64 base units. The ID is always computed from content, never stored.
type Transaction struct {
	Type         TxType             `json:"type"`
	From         string             `json:"from"`
	To           string             `json:"to"`
	Amount       int64              `json:"amount"`
	Fee          int64              `json:"fee"`
	Nonce        string             `json:"nonce"` // uuid, keeps identical transfers distinct
	SenderPubKey []byte             `json:"senderPubKey,omitempty"`
	Attestation  *biometric.Reading `json:"biometricAttestation,omitempty"`
	Breakdown    *RewardBreakdown   `json:"rewardBreakdown,omitempty"`

	// Reward-only context: the proposer scores this reward was granted for.
	EmotionalScore float64 `json:"emotionalScore,omitempty"`
	ConsensusScore float64 `json:"consensusScore,omitempty"`

	Signature []byte    `json:"signature,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// sealed is in-memory lifecycle state, set when a block includes the
	// transaction. Deserialized blocks re-seal their transactions.
	sealed bool
}

// NewTransfer builds an unsigned value transfer. The attestation snapshot
// is optional; when present it is validated with the rest of the fields.
func NewTransfer(from, to string, amount, fee int64, attestation *biometric.Reading) *Transaction {
	return &Transaction{
		Type:        TxTransfer,
		From:        from,
		To:          to,
		Amount:      amount,
		Fee:         fee,
		Nonce:       uuid.NewString(),
		Attestation: attestation,
		Timestamp:   time.Now().UTC(),
	}
}

// NewMiningReward builds the proposer payout for a mined block. Errors if
// the breakdown does not sum to the amount.
func NewMiningReward(to string, amount int64, breakdown RewardBreakdown) (*Transaction, error) {
	if breakdown.Base+breakdown.ConsensusBonus+breakdown.Fees != amount {
		return nil, fmt.Errorf("%w: %d+%d+%d != %d", ErrRewardBreakdown,
			breakdown.Base, breakdown.ConsensusBonus, breakdown.Fees, amount)
	}
	return &Transaction{
		Type:      TxMiningReward,
		From:      NetworkAddress,
		To:        to,
		Amount:    amount,
		Nonce:     uuid.NewString(),
		Breakdown: &breakdown,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewValidationReward builds the payout for validation work, carrying the
// scores it was granted for.
func NewValidationReward(to string, amount int64, emotionalScore, consensusScore float64) *Transaction {
	return &Transaction{
		Type:           TxValidationReward,
		From:           NetworkAddress,
		To:             to,
		Amount:         amount,
		Nonce:          uuid.NewString(),
		EmotionalScore: emotionalScore,
		ConsensusScore: consensusScore,
		Timestamp:      time.Now().UTC(),
	}
}

// signingPayload is the canonical serialization of everything except the
// signature itself, via the usual anonymous-header idiom.
func (tx *Transaction) signingPayload() []byte {
	payload := struct {
		Type           TxType
		From           string
		To             string
		Amount         int64
		Fee            int64
		Nonce          string
		SenderPubKey   []byte
		Attestation    *biometric.Reading
		Breakdown      *RewardBreakdown
		EmotionalScore float64
		ConsensusScore float64
		Timestamp      time.Time
	}{
		tx.Type, tx.From, tx.To, tx.Amount, tx.Fee, tx.Nonce, tx.SenderPubKey,
		tx.Attestation, tx.Breakdown, tx.EmotionalScore, tx.ConsensusScore, tx.Timestamp,
	}
	data, _ := json.Marshal(payload)
	return data
}

// Sign attaches the sender's signature. Re-signing is allowed until the
// transaction is sealed into a block; after that it is an error.
func (tx *Transaction) Sign(kp *core.KeyPair) error {
	if tx.sealed {
		return ErrTxSealed
	}
	if kp.Address() != tx.From {
		return fmt.Errorf("signing key controls %s, transaction is from %s", kp.Address(), tx.From)
	}
	tx.SenderPubKey = kp.PublicKey()
	tx.Signature = kp.Sign(tx.signingPayload())
	return nil
}

// VerifySignature recomputes the canonical payload, checks that the
// declared public key derives the From address, and verifies the
// signature. Fails closed on any malformed input.
func (tx *Transaction) VerifySignature() bool {
	if len(tx.Signature) == 0 || len(tx.SenderPubKey) == 0 {
		return false
	}
	derived, err := core.AddressFromPublicKey(tx.SenderPubKey)
	if err != nil || derived != tx.From {
		return false
	}
	ok, err := core.Verify(tx.signingPayload(), tx.Signature, tx.SenderPubKey)
	return err == nil && ok
}

// IsValid checks the whole transaction and returns the typed reason for
// the first failure. Reward types need no wallet signature but must come
// from the network address with intact breakdown/score fields.
func (tx *Transaction) IsValid() error {
	if tx.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", tx.Amount)
	}
	if tx.Fee < 0 {
		return fmt.Errorf("fee cannot be negative, got %d", tx.Fee)
	}
	switch tx.Type {
	case TxTransfer:
		if tx.From == tx.To {
			return fmt.Errorf("transfer from %s to itself", tx.From)
		}
		if !tx.VerifySignature() {
			return ErrSignatureInvalid
		}
	case TxMiningReward:
		if tx.From != NetworkAddress {
			return fmt.Errorf("mining reward must come from %q, got %q", NetworkAddress, tx.From)
		}
		if tx.Breakdown == nil {
			return fmt.Errorf("%w: breakdown missing", ErrRewardBreakdown)
		}
		if tx.Breakdown.Base+tx.Breakdown.ConsensusBonus+tx.Breakdown.Fees != tx.Amount {
			return fmt.Errorf("%w: %d+%d+%d != %d", ErrRewardBreakdown,
				tx.Breakdown.Base, tx.Breakdown.ConsensusBonus, tx.Breakdown.Fees, tx.Amount)
		}
	case TxValidationReward:
		if tx.From != NetworkAddress {
			return fmt.Errorf("validation reward must come from %q, got %q", NetworkAddress, tx.From)
		}
		if tx.EmotionalScore < 0 || tx.EmotionalScore > 100 {
			return fmt.Errorf("emotional score %v outside [0,100]", tx.EmotionalScore)
		}
		if tx.ConsensusScore < 0 || tx.ConsensusScore > 100 {
			return fmt.Errorf("consensus score %v outside [0,100]", tx.ConsensusScore)
		}
	default:
		return fmt.Errorf("unknown transaction type %q", tx.Type)
	}
	if tx.Attestation != nil {
		if err := biometric.VerifyReading(*tx.Attestation); err != nil {
			return err
		}
	}
	return nil
}

// CalculateHash is the content hash over the canonical encoding of all
// fields, signature included. It doubles as the Merkle leaf.
func (tx *Transaction) CalculateHash() ids.ID {
	content := struct {
		Type           TxType
		From           string
		To             string
		Amount         int64
		Fee            int64
		Nonce          string
		SenderPubKey   []byte
		Attestation    *biometric.Reading
		Breakdown      *RewardBreakdown
		EmotionalScore float64
		ConsensusScore float64
		Signature      []byte
		Timestamp      time.Time
	}{
		tx.Type, tx.From, tx.To, tx.Amount, tx.Fee, tx.Nonce, tx.SenderPubKey,
		tx.Attestation, tx.Breakdown, tx.EmotionalScore, tx.ConsensusScore,
		tx.Signature, tx.Timestamp,
	}
	data, _ := json.Marshal(content)
	return ids.NewID(data)
}

// ID is the hex form of the content hash, used as the mempool key.
func (tx *Transaction) ID() string {
	return tx.CalculateHash().String()
}

// Seal marks the transaction as included in a block. Sealed transactions
// refuse further signing.
func (tx *Transaction) Seal() {
	tx.sealed = true
}

// Sealed reports whether the transaction has been included in a block.
func (tx *Transaction) Sealed() bool {
	return tx.sealed
}
