package forester

// UpdateInputs are the private and public inputs of a batch update
// (nullify) proof.
type UpdateInputs struct {
	PublicInputHash     Hash     `json:"publicInputHash"`
	OldRoot             Hash     `json:"oldRoot"`
	NewRoot             Hash     `json:"newRoot"`
	LeavesHashchainHash Hash     `json:"leavesHashchainHash"`
	TxHashes            []Hash   `json:"txHashes"`
	Leaves              []Hash   `json:"leaves"`
	OldLeaves           []Hash   `json:"oldLeaves"`
	MerkleProofs        [][]Hash `json:"newMerkleProofs"`
	PathIndices         []uint64 `json:"pathIndices"`
	Height              uint32   `json:"height"`
	BatchSize           uint64   `json:"batchSize"`
}

// AppendInputs are the inputs of a batch append proof. A non zero old leaf
// was nullified before it was appended and is kept.
type AppendInputs struct {
	PublicInputHash     Hash     `json:"publicInputHash"`
	OldRoot             Hash     `json:"oldRoot"`
	NewRoot             Hash     `json:"newRoot"`
	LeavesHashchainHash Hash     `json:"leavesHashchainHash"`
	StartIndex          uint64   `json:"startIndex"`
	OldLeaves           []Hash   `json:"oldLeaves"`
	Leaves              []Hash   `json:"leaves"`
	MerkleProofs        [][]Hash `json:"merkleProofs"`
	Height              uint32   `json:"height"`
	BatchSize           uint64   `json:"batchSize"`
}

// AddressAppendInputs are the inputs of a batch address append proof.
// Low element proofs are taken against the tree as left by the previous
// element of the batch.
type AddressAppendInputs struct {
	PublicInputHash       Hash     `json:"publicInputHash"`
	OldRoot               Hash     `json:"oldRoot"`
	NewRoot               Hash     `json:"newRoot"`
	HashchainHash         Hash     `json:"hashchainHash"`
	StartIndex            uint64   `json:"startIndex"`
	LowElementValues      []Hash   `json:"lowElementValues"`
	LowElementIndices     []uint64 `json:"lowElementIndices"`
	LowElementNextIndices []uint64 `json:"lowElementNextIndices"`
	LowElementNextValues  []Hash   `json:"lowElementNextValues"`
	LowElementProofs      [][]Hash `json:"lowElementProofs"`
	NewElementValues      []Hash   `json:"newElementValues"`
	NewElementProofs      [][]Hash `json:"newElementProofs"`
	TreeHeight            uint32   `json:"treeHeight"`
	BatchSize             uint64   `json:"batchSize"`
}
