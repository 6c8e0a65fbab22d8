// Package scriptoracle defines the external script-verification hook the
// chain package calls into for every spent input. Script interpretation
// itself (opcode execution, signature checking) is out of scope (spec.md
// §1 Non-goals); this package only pins down the boundary the consensus
// engine talks to.
package scriptoracle

import "github.com/coreward/fullnode/wire"

// Oracle verifies that scriptSig correctly satisfies pkScript for the
// given input of tx. inputIndex selects which TxIn's signature hash
// applies. Implementations are free to reject everything (a stub, for
// tests exercising chain logic without real signatures) or to run a full
// interpreter; the chain package only depends on this interface.
type Oracle interface {
	Verify(tx *wire.MsgTx, inputIndex int, pkScript []byte) error
}

// AcceptAll is an Oracle that approves every input unconditionally. It
// exists for tests and for running the chain engine against
// already-trusted data (e.g. replaying a known-good chain) where script
// execution is deliberately skipped.
type AcceptAll struct{}

// Verify always succeeds.
func (AcceptAll) Verify(tx *wire.MsgTx, inputIndex int, pkScript []byte) error {
	return nil
}
