package block

import (
	"emochain/types/ids"
)

// ProofStep is one sibling on the path from a leaf to the root. Right
// records which side the sibling hashes on.
type ProofStep struct {
	Hash  ids.ID `json:"hash"`
	Right bool   `json:"right"`
}

// MerkleProof is the ordered sibling path for one leaf. Replaying it with
// VerifyProof is independent of how the tree was built.
type MerkleProof struct {
	Leaf     ids.ID      `json:"leaf"`
	Siblings []ProofStep `json:"siblings"`
}

// MerkleTree is the integrity tree over an ordered transaction set. Leaves
// are transaction content hashes; an odd node at any level pairs with a
// duplicate of itself. The tree keeps the transactions it was built from so
// VerifyTree can detect post-construction tampering.
type MerkleTree struct {
	txs    []*Transaction
	leaves []ids.ID
	levels [][]ids.ID // levels[0] == leaves, last level is the root
}

// sentinelLeaf roots the empty transaction set: the hash of an empty byte
// string, so empty-block validation stays uniform.
func sentinelLeaf() ids.ID {
	return ids.NewID(nil)
}

// NewMerkleTree builds the tree bottom-up from tx.CalculateHash() leaves.
func NewMerkleTree(txs []*Transaction) *MerkleTree {
	leaves := make([]ids.ID, 0, len(txs))
	for _, tx := range txs {
		leaves = append(leaves, tx.CalculateHash())
	}
	if len(leaves) == 0 {
		leaves = []ids.ID{sentinelLeaf()}
	}
	return &MerkleTree{
		txs:    txs,
		leaves: leaves,
		levels: buildLevels(leaves),
	}
}

func buildLevels(leaves []ids.ID) [][]ids.ID {
	levels := [][]ids.ID{leaves}
	current := leaves
	for len(current) > 1 {
		next := make([]ids.ID, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			left := current[i]
			right := left // duplicate-last keeps the tree binary
			if i+1 < len(current) {
				right = current[i+1]
			}
			next = append(next, hashPair(left, right))
		}
		levels = append(levels, next)
		current = next
	}
	return levels
}

func hashPair(left, right ids.ID) ids.ID {
	combined := make([]byte, 0, len(left)+len(right))
	combined = append(combined, left[:]...)
	combined = append(combined, right[:]...)
	return ids.NewID(combined)
}

// Root returns the tree root. A single-transaction tree's root is that
// transaction's own hash with no internal hashing step.
func (t *MerkleTree) Root() ids.ID {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// Proof returns the sibling path for a leaf hash, or (nil, false) when the
// leaf is not part of the tree.
func (t *MerkleTree) Proof(leaf ids.ID) (*MerkleProof, bool) {
	index := -1
	for i, l := range t.leaves {
		if l == leaf {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, false
	}

	proof := &MerkleProof{Leaf: leaf}
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := index ^ 1
		if sibling >= len(level) {
			sibling = index // odd node hashes with itself
		}
		proof.Siblings = append(proof.Siblings, ProofStep{
			Hash:  level[sibling],
			Right: index%2 == 0,
		})
		index /= 2
	}
	return proof, true
}

// VerifyProof replays the sibling path and compares the result with the
// expected root. Pure function; safe to call concurrently.
func VerifyProof(proof *MerkleProof, root ids.ID) bool {
	if proof == nil {
		return false
	}
	current := proof.Leaf
	for _, step := range proof.Siblings {
		if step.Right {
			current = hashPair(current, step.Hash)
		} else {
			current = hashPair(step.Hash, current)
		}
	}
	return current == root
}

// VerifyTree recomputes leaf hashes from the underlying transactions and
// rebuilds the tree, comparing against the stored root. Returns false when
// any transaction was mutated after construction. Used after
// deserialization as a self check.
func (t *MerkleTree) VerifyTree() bool {
	if len(t.txs) == 0 {
		return t.Root() == sentinelLeaf()
	}
	for i, tx := range t.txs {
		if tx.CalculateHash() != t.leaves[i] {
			return false
		}
	}
	rebuilt := buildLevels(t.leaves)
	return rebuilt[len(rebuilt)-1][0] == t.Root()
}
