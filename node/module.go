package node

import (
	"context"
	"fmt"

	"github.com/dunitrust/dunitrust/accounts/keystore"
)

// Priority controls whether a module's absence is fatal to the runtime
// (spec.md §4.8 "Module contract").
type Priority int

const (
	// Required modules must register within the registration window or
	// the runtime aborts with ExitRegistrationTimeout.
	Required Priority = iota
	// OptionalDefaultOn modules run unless explicitly disabled in config.
	OptionalDefaultOn
	// OptionalDefaultOff modules only run when explicitly enabled in config.
	OptionalDefaultOff
)

func (p Priority) String() string {
	switch p {
	case Required:
		return "required"
	case OptionalDefaultOn:
		return "optional(default-on)"
	case OptionalDefaultOff:
		return "optional(default-off)"
	default:
		return "unknown"
	}
}

// RequiredKeys tells the runtime which keypairs to inject into a module's
// Start/ExecSubcommand call (spec.md §4.8).
type RequiredKeys int

const (
	KeysNone RequiredKeys = iota
	KeysMember
	KeysNetwork
	KeysAll
)

// Meta is the immutable per-process context every module receives. It is
// never mutated after the node starts (spec.md §5 "Configuration and
// protocol parameters: immutable after process start; freely shared by
// value").
type Meta struct {
	Currency string
	Profile  string // data directory for this currency's profile
}

// Keys bundles the keypair(s) a module asked for via RequiredKeys. Fields
// the module did not request are left nil/zero.
type Keys struct {
	Member  *keystore.KeyPair
	Network *keystore.KeyPair
}

// fromKeypairs projects a loaded Keypairs down to what want asks for.
func fromKeypairs(kp *keystore.Keypairs, want RequiredKeys) Keys {
	var k Keys
	if kp == nil {
		return k
	}
	if want == KeysMember || want == KeysAll {
		k.Member = kp.Member
	}
	if want == KeysNetwork || want == KeysAll {
		k.Network = &kp.Network
	}
	return k
}

// StartError wraps an error returned by Module.Start with the failing
// module's name; Node.Run returns it (with ExitInvariant) so callers can
// recover the module via errors.As. A registration timeout is reported as
// a plain error listing the missing modules, not as a StartError.
type StartError struct {
	Module string
	Err    error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("node: module %q failed to start: %v", e.Module, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// Module is the contract every registered worker satisfies (spec.md §4.8
// "Module contract"). A module runs on its own goroutine for the life of
// the process; it must never block the router or any other module.
type Module interface {
	Name() string
	Priority() Priority
	RequiredKeys() RequiredKeys

	// HaveSubcommand reports whether this module owns at least one CLI
	// subcommand, checked before the router starts.
	HaveSubcommand() bool
	// ExecSubcommand runs a module-owned CLI subcommand in-process,
	// outside of the router's lifecycle, and may return an updated user
	// configuration to persist.
	ExecSubcommand(meta Meta, keys Keys, conf, userConf any, opts []string) (any, error)

	// Start runs the module's own logic on the calling goroutine. It
	// must call sendToRouter <- RegisterModule{...} within the
	// registration window (RegistrationWindow) or the runtime aborts.
	// Start returns when ctx is cancelled (graceful Shutdown) or on a
	// fatal module error.
	Start(ctx context.Context, meta Meta, keys Keys, conf any, sendToRouter chan<- Message) error
}
