package domain

// SupplySnapshot is the mint supply read after a supply-changing operation.
// Corresponds to supply_snapshots table in ClickHouse.
type SupplySnapshot struct {
	Mint      string
	Slot      int64
	Signature string // operation that triggered the snapshot
	Supply    uint64 // base units
	Decimals  int
	TakenAt   int64 // Unix timestamp in milliseconds
}
