package storage

import "context"

// JournalProgress is the newest transaction the journal has fully processed
// for a program.
type JournalProgress struct {
	ProgramID string
	Slot      int64  // slot of the transaction
	Signature string // transaction signature
}

// JournalProgressStore persists the journal checkpoint so a restarted
// watcher backfills only what it missed.
type JournalProgressStore interface {
	// GetLastProcessed returns the checkpoint of a program.
	// Returns ErrNotFound if no progress has been saved yet.
	GetLastProcessed(ctx context.Context, programID string) (*JournalProgress, error)

	// SetLastProcessed saves the checkpoint. A checkpoint with a lower slot
	// than the stored one is ignored.
	SetLastProcessed(ctx context.Context, progress *JournalProgress) error
}
