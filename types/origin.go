package types

import "github.com/ethereum-optimism/infra/op-specrun/spec"

// MemberKind represents the kind of member a specification was found on
type MemberKind string

// String implements the Stringer interface for MemberKind
func (k MemberKind) String() string {
	return string(k)
}

// MemberKind enum values
const (
	MemberMethod  MemberKind = "method"
	MemberField   MemberKind = "field"
	MemberFactory MemberKind = "factory"
)

// Origin identifies the member a specification was discovered on.
type Origin struct {
	Type   string // Declaring type, empty for registered factories
	Member string
	Kind   MemberKind
}

// ID returns the qualified origin used for plan matching, e.g. "ledger.AccountSpecs.Deposits".
func (o Origin) ID() string {
	if o.Type == "" {
		return o.Member
	}
	return o.Type + "." + o.Member
}

// Identifier returns the member name, used when a specification has no name.
func (o Origin) Identifier() string {
	return o.Member
}

// SpecificationToRun wraps a discovered specification with its origin.
type SpecificationToRun struct {
	Specification *spec.Specification
	Origin        Origin
	Runnable      bool
	Reason        string // Why discovery could not produce a runnable specification
	Err           error  // Error raised during discovery
}

// Runnable creates a runnable entry.
func Runnable(s *spec.Specification, origin Origin) SpecificationToRun {
	return SpecificationToRun{
		Specification: s,
		Origin:        origin,
		Runnable:      true,
	}
}

// NotRunnable creates an entry for a member whose specifications could not be obtained.
func NotRunnable(origin Origin, reason string, err error) SpecificationToRun {
	return SpecificationToRun{
		Origin: origin,
		Reason: reason,
		Err:    err,
	}
}

// Name resolves the display name: the specification name if set, else the origin member.
func (s SpecificationToRun) Name() string {
	if s.Specification != nil && s.Specification.Name != "" {
		return s.Specification.Name
	}
	return s.Origin.Identifier()
}
