package resolver

import (
	"fmt"
	"strings"
)

// Policy decides whether a chain rooted in a concrete class method counts as
// an override.
type Policy int

const (
	// PolicyVirtual treats any overridden ancestor slot as a prototype,
	// concrete or not.
	PolicyVirtual Policy = iota
	// PolicyContract only accepts abstract class methods and interface
	// methods as prototypes.
	PolicyContract
)

func (p Policy) String() string {
	switch p {
	case PolicyVirtual:
		return "virtual"
	case PolicyContract:
		return "contract"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy accepts the configuration spelling of a policy; empty means
// PolicyVirtual.
func ParsePolicy(raw string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "virtual":
		return PolicyVirtual, nil
	case "contract":
		return PolicyContract, nil
	default:
		return PolicyVirtual, fmt.Errorf("unknown override policy %q (want virtual or contract)", raw)
	}
}
