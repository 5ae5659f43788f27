package block

import "math"

// Reward policy constants. The consensus bonus pays one base unit per whole
// point of network consensus score, on top of the flat base subsidy.
const (
	MiningRewardBase       int64 = 50
	ConsensusBonusPerPoint int64 = 1
	ValidationRewardBase   int64 = 5
)

// BuildMiningReward assembles the proposer payout for a block: base subsidy
// plus consensus bonus plus the fees collected from the included
// transactions. The breakdown invariant holds by construction.
func BuildMiningReward(to string, consensusScore float64, collectedFees int64) (*Transaction, error) {
	bonus := int64(math.Round(consensusScore)) * ConsensusBonusPerPoint
	breakdown := RewardBreakdown{
		Base:           MiningRewardBase,
		ConsensusBonus: bonus,
		Fees:           collectedFees,
	}
	return NewMiningReward(to, breakdown.Base+breakdown.ConsensusBonus+breakdown.Fees, breakdown)
}

// SumFees totals the fees of a transaction set, the fee side of the mining
// reward breakdown.
func SumFees(txs []*Transaction) int64 {
	var total int64
	for _, tx := range txs {
		total += tx.Fee
	}
	return total
}
