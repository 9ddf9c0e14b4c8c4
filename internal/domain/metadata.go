package domain

// TokenMetadata is the Metaplex metadata of the program's mint, read once
// after a successful InitToken. Corresponds to token_metadata table in PostgreSQL.
type TokenMetadata struct {
	Mint            string // PK, mint address
	ProgramID       string // token manager that created the mint
	Name            string
	Symbol          string
	URI             string
	Decimals        int
	UpdateAuthority string
	Signature       string // InitToken transaction
	Slot            int64
	FetchedAt       int64 // when metadata was fetched (ms)
	CreatedAt       int64 // record creation timestamp (ms)
}
