package journal

import (
	"fmt"
	"strings"

	"solana-token-manager/internal/domain"
	"solana-token-manager/internal/program"
)

const (
	logPrefix         = "Program log: "
	instructionPrefix = "Instruction: "
	errorCodeMarker   = "Error Code: "
)

// Invocation is one run of the token manager found in a transaction's logs.
type Invocation struct {
	Index    int // ordinal among the program's invocations in the transaction
	Depth    int // 1 for a top-level instruction, >1 when reached through CPI
	Kind     domain.OperationKind
	Quantity uint64
	Success  bool
	Error    *string

	// Complete is false when the logs end before the invocation does,
	// which happens when the cluster truncates a long log.
	Complete bool
}

// ParseLogs extracts the invocations of programID from a transaction log.
// Only "Program log:" lines emitted while programID is the innermost running
// program are attributed to it, so the Token program's own
// "Instruction: MintTo" inside a CPI is ignored. Invocations are returned in
// log order.
func ParseLogs(programID string, logs []string) []*Invocation {
	var (
		stack   []string
		frames  []*Invocation // parallel to stack, nil for other programs
		results []*Invocation
	)

	for _, line := range logs {
		switch {
		case strings.HasPrefix(line, logPrefix):
			if len(stack) == 0 || stack[len(stack)-1] != programID {
				continue
			}
			if inv := frames[len(frames)-1]; inv != nil {
				applyLog(inv, strings.TrimPrefix(line, logPrefix))
			}

		case strings.HasPrefix(line, "Program "):
			id, rest, ok := strings.Cut(strings.TrimPrefix(line, "Program "), " ")
			if !ok {
				continue
			}
			switch {
			case strings.HasPrefix(rest, "invoke ["):
				stack = append(stack, id)
				if id != programID {
					frames = append(frames, nil)
					continue
				}
				inv := &Invocation{Index: len(results), Depth: len(stack)}
				frames = append(frames, inv)
				results = append(results, inv)

			case rest == "success":
				if inv := pop(&stack, &frames, id); inv != nil {
					inv.Success = true
					inv.Complete = true
				}

			case strings.HasPrefix(rest, "failed: "):
				if inv := pop(&stack, &frames, id); inv != nil {
					inv.Complete = true
					if inv.Error == nil {
						msg := strings.TrimPrefix(rest, "failed: ")
						inv.Error = &msg
					}
				}
			}
		}
	}

	return results
}

// pop removes the innermost frame when it belongs to id and returns the
// token manager invocation it held, if any.
func pop(stack *[]string, frames *[]*Invocation, id string) *Invocation {
	n := len(*stack)
	if n == 0 || (*stack)[n-1] != id {
		return nil
	}
	inv := (*frames)[n-1]
	*stack = (*stack)[:n-1]
	*frames = (*frames)[:n-1]
	return inv
}

func applyLog(inv *Invocation, msg string) {
	if name, ok := strings.CutPrefix(msg, instructionPrefix); ok {
		inv.Kind = domain.OperationKind(name)
		return
	}

	var qty uint64
	switch {
	case parseQuantity(msg, program.LogTransferred, &qty),
		parseQuantity(msg, program.LogBurned, &qty):
		inv.Quantity = qty
		return
	}

	if i := strings.Index(msg, errorCodeMarker); i >= 0 && strings.HasPrefix(msg, "AnchorError") {
		name, _, _ := strings.Cut(msg[i+len(errorCodeMarker):], ".")
		inv.Error = &name
	}
}

func parseQuantity(msg, format string, qty *uint64) bool {
	prefix, _, _ := strings.Cut(format, "%d")
	if !strings.HasPrefix(msg, prefix) {
		return false
	}
	n, err := fmt.Sscanf(msg, format, qty)
	return err == nil && n == 1
}
