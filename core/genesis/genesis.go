package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"emochain/core/block"
	"emochain/core/storage"
	"emochain/core/validator"
	"emochain/types/ids"
)

// SignatureThreshold is the minimum number of ceremony signatures required
// before a genesis block may be created.
const SignatureThreshold = 2

// DefaultDifficulty applies when the config omits one.
const DefaultDifficulty = 1

// ErrCeremonyIncomplete rejects a config with too few ceremony signatures.
var ErrCeremonyIncomplete = errors.New("genesis ceremony incomplete")

// LoadGenesisConfig loads and parses the genesis config file.
func LoadGenesisConfig(path string) (*GenesisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read genesis config: %w", err)
	}
	var config GenesisConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("could not parse genesis config: %w", err)
	}
	return &config, nil
}

// allocationTx materializes one initial balance grant. Every field is a
// pure function of the config so all ceremony participants derive the
// byte-identical genesis block.
func allocationTx(a Allocation, at time.Time) *block.Transaction {
	return &block.Transaction{
		Type:      block.TxMiningReward,
		From:      block.NetworkAddress,
		To:        a.Address,
		Amount:    a.Amount,
		Nonce:     "genesis:" + a.Address,
		Breakdown: &block.RewardBreakdown{Base: a.Amount},
		Timestamp: at,
	}
}

// CreateGenesisBlockFromConfig builds and mines the genesis block. The
// block timestamp and every allocation transaction come from the config,
// never the wall clock, so the genesis hash is reproducible.
func CreateGenesisBlockFromConfig(cfg *GenesisConfig) (*block.Block, error) {
	fmt.Printf("[GENESIS] %d ceremony signatures, threshold %d\n", len(cfg.Signatures), SignatureThreshold)
	if len(cfg.Signatures) < SignatureThreshold {
		AppendAuditEvent(AuditEvent{
			Timestamp: time.Now().UTC(),
			EventType: "signature_check",
			Details: mustMarshalJSON(map[string]interface{}{
				"signatures": cfg.Signatures,
				"threshold":  SignatureThreshold,
				"result":     "failed",
			}),
		})
		return nil, fmt.Errorf("%w: %d signatures, need %d", ErrCeremonyIncomplete, len(cfg.Signatures), SignatureThreshold)
	}
	AppendAuditEvent(AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: "signature_check",
		Details: mustMarshalJSON(map[string]interface{}{
			"signatures": cfg.Signatures,
			"threshold":  SignatureThreshold,
			"result":     "passed",
		}),
	})
	AppendAuditEvent(AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: "validator_set",
		Details:   mustMarshalJSON(map[string]interface{}{"validators": cfg.InitialValidators}),
	})
	AppendAuditEvent(AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: "initial_params",
		Details:   mustMarshalJSON(map[string]interface{}{"params": cfg.InitialParams}),
	})

	txs := make([]*block.Transaction, 0, len(cfg.Allocations))
	for _, a := range cfg.Allocations {
		txs = append(txs, allocationTx(a, cfg.GenesisTime))
	}

	difficulty := cfg.Difficulty
	if difficulty == 0 {
		difficulty = DefaultDifficulty
	}
	b := block.NewBlock(0, txs, ids.Empty, nil, 0, difficulty)
	b.Timestamp = cfg.GenesisTime
	if err := b.Mine(); err != nil {
		return nil, fmt.Errorf("mine genesis block: %w", err)
	}
	fmt.Printf("[GENESIS] created genesis block %s for chain %s\n", b.Hash, cfg.ChainID)

	AppendAuditEvent(AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: "block_created",
		Details: mustMarshalJSON(map[string]interface{}{
			"blockHash": b.Hash.String(),
			"chainId":   cfg.ChainID,
			"timestamp": b.Timestamp,
		}),
	})
	if root, err := ComputeAuditLogRoot(); err == nil {
		fmt.Printf("[GENESIS] ceremony audit log root: %s\n", root)
	} else {
		fmt.Printf("[GENESIS] ERROR computing audit log root: %v\n", err)
	}
	return b, nil
}

// EnsureGenesis loads the stored genesis block, or creates, validates, and
// persists one from the config. The bool reports whether a new block was
// written.
func EnsureGenesis(store *storage.Storage, cfg *GenesisConfig) (*block.Block, bool, error) {
	has, err := store.HasGenesisBlock()
	if err != nil {
		return nil, false, err
	}
	if has {
		b, err := store.GetGenesisBlock()
		return b, false, err
	}
	b, err := CreateGenesisBlockFromConfig(cfg)
	if err != nil {
		return nil, false, err
	}
	if err := b.Validate(ids.Empty, nil); err != nil {
		return nil, false, fmt.Errorf("genesis block failed validation: %w", err)
	}
	if err := store.SaveBlock(b); err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// SeedValidators registers the genesis validator set. They remain outside
// the proposer draw until their first genuine reading arrives.
func SeedValidators(reg *validator.Registry, cfg *GenesisConfig) error {
	for _, vc := range cfg.InitialValidators {
		v := validator.NewValidator(vc.ID, vc.Address, vc.Stake, nil)
		if err := reg.Register(v); err != nil {
			return fmt.Errorf("seed validator %s: %w", vc.ID, err)
		}
	}
	return nil
}
