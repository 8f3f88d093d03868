package specrun

import (
	"github.com/ethereum-optimism/infra/op-specrun/types"
)

// Helper function to convert bool to int
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// getResultString returns a marked string representing the status
func getResultString(status types.Status) string {
	switch status {
	case types.StatusPass:
		return "✓ pass"
	case types.StatusError:
		return "! error"
	default:
		return "✗ fail"
	}
}
