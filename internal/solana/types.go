package solana

// Commitment levels accepted by the RPC.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}

// Blockhash from getLatestBlockhash.
type Blockhash struct {
	Blockhash            string
	LastValidBlockHeight uint64
}

// SignatureStatus from getSignatureStatuses.
type SignatureStatus struct {
	Slot               int64
	Confirmations      *uint64
	Err                interface{}
	ConfirmationStatus string
}

// Reached reports whether the status satisfies commitment.
func (s *SignatureStatus) Reached(commitment string) bool {
	if s == nil {
		return false
	}
	rank := map[string]int{CommitmentProcessed: 1, CommitmentConfirmed: 2, CommitmentFinalized: 3}
	return rank[s.ConfirmationStatus] >= rank[commitment]
}
