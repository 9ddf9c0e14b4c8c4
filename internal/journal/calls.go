package journal

import "solana-token-manager/internal/solana"

// programCalls returns the data of every instruction addressed to programID
// in execution order: each top-level instruction followed by the inner
// instructions it issued. ok is false when tx carries no message, as for a
// transaction rebuilt from a log notification.
func programCalls(tx *solana.Transaction, programID string) (calls [][]byte, ok bool) {
	if tx.Message == nil {
		return nil, false
	}
	keys := tx.Message.AccountKeys

	inner := make(map[int][]solana.CompiledInstruction)
	if tx.Meta != nil {
		for _, ii := range tx.Meta.InnerInstructions {
			inner[ii.Index] = append(inner[ii.Index], ii.Instructions...)
		}
	}

	add := func(ix solana.CompiledInstruction) {
		if ix.ProgramIDIndex >= 0 && ix.ProgramIDIndex < len(keys) && keys[ix.ProgramIDIndex] == programID {
			calls = append(calls, ix.Data)
		}
	}
	for i, ix := range tx.Message.Instructions {
		add(ix)
		for _, in := range inner[i] {
			add(in)
		}
	}
	return calls, true
}
