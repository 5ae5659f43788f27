package genesis

import "time"

// ValidatorConfig is one validator entry in the genesis config. Validators
// start registered but ineligible; they enter the draw once their first
// genuine biometric reading arrives.
type ValidatorConfig struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Stake   int64  `json:"stake"`
}

// Allocation is an initial balance grant, materialized as a protocol
// reward transaction inside the genesis block.
type Allocation struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

// InitialParams holds chain parameters fixed at genesis.
type InitialParams struct {
	ProtocolVersion   string `json:"protocolVersion"`
	BlockTime         int    `json:"blockTime,omitempty"`    // seconds between production attempts
	MaxBlockTxs       int    `json:"maxBlockTxs,omitempty"`  // transactions per block
	MempoolMax        int    `json:"mempoolMax,omitempty"`   // pending transaction cap
	ConfirmationDepth int    `json:"confirmationDepth,omitempty"`
}

// GenesisConfig is the full genesis configuration schema. Signatures are
// the ceremony participants' endorsements; block creation refuses to run
// below the threshold.
type GenesisConfig struct {
	Signatures        []string          `json:"signatures"`
	ChainID           string            `json:"chainId"`
	GenesisTime       time.Time         `json:"genesisTime"`
	Difficulty        int               `json:"difficulty,omitempty"`
	InitialValidators []ValidatorConfig `json:"initialValidators"`
	Allocations       []Allocation      `json:"allocations,omitempty"`
	InitialParams     InitialParams     `json:"initialParams"`
}
