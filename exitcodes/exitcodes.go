// Package exitcodes defines the standard exit codes used by op-specrun.
package exitcodes

// Exit code constants used by op-specrun:
//
// * Success (0): every specification passed
// * SpecFailure (1): one or more specifications failed or could not be discovered
// * RuntimeErr (2): configuration errors, unguarded assertion panics and other runtime failures
const (
	Success     = 0 // All specifications pass
	SpecFailure = 1 // Specification failures
	RuntimeErr  = 2 // Runtime errors
)
