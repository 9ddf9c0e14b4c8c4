package domain

// OperationKind names a token manager instruction as it appears in the
// program log ("Instruction: <Kind>").
type OperationKind string

// Operation kinds.
const (
	OperationInitToken      OperationKind = "InitToken"
	OperationMintTokens     OperationKind = "MintTokens"
	OperationTransferTokens OperationKind = "TransferTokens"
	OperationBurnTokens     OperationKind = "BurnTokens"
)

// Valid reports whether k is one of the four program instructions.
func (k OperationKind) Valid() bool {
	switch k {
	case OperationInitToken, OperationMintTokens, OperationTransferTokens, OperationBurnTokens:
		return true
	}
	return false
}

// ChangesSupply reports whether a successful operation of kind k moves the
// mint supply (or creates the mint).
func (k OperationKind) ChangesSupply() bool {
	return k == OperationInitToken || k == OperationMintTokens || k == OperationBurnTokens
}

// Operation is one invocation of the token manager journaled from a
// confirmed transaction. Corresponds to operations table in PostgreSQL.
type Operation struct {
	OperationID string        // PK, idhash of signature|index
	Signature   string        // transaction signature
	Index       int           // ordinal of the program invocation within the transaction
	Slot        int64         // slot the transaction landed in
	BlockTime   int64         // block time in ms, 0 when unknown
	ProgramID   string        // token manager program
	Mint        string        // program mint PDA
	Kind        OperationKind // instruction name
	Quantity    uint64        // base units, 0 for InitToken
	Success     bool          // invocation returned success
	Error       *string       // error code name or runtime error (nullable)
	CreatedAt   int64         // record creation timestamp (ms)
}
