package chain

import "fmt"

// VerificationErrorKind classifies why a candidate block failed
// consensus validation, so callers can react differently to, say, a
// checkpoint mismatch (almost certainly a hostile or buggy peer) versus
// a missing input (possibly just an orphan arriving out of order).
type VerificationErrorKind int

const (
	ErrKindUnknown VerificationErrorKind = iota
	ErrKindCheckpoint
	ErrKindTimestamp
	ErrKindDifficulty
	ErrKindCoinbase
	ErrKindDoubleSpend
	ErrKindImmatureCoinbase
	ErrKindScript
	ErrKindValueOverflow
	ErrKindSigOps
	ErrKindBadPoW
	ErrKindBadMerkle
	ErrKindDuplicateTransaction
)

func (k VerificationErrorKind) String() string {
	switch k {
	case ErrKindCheckpoint:
		return "checkpoint"
	case ErrKindTimestamp:
		return "timestamp"
	case ErrKindDifficulty:
		return "difficulty"
	case ErrKindCoinbase:
		return "coinbase"
	case ErrKindDoubleSpend:
		return "double-spend"
	case ErrKindImmatureCoinbase:
		return "immature-coinbase"
	case ErrKindScript:
		return "script"
	case ErrKindValueOverflow:
		return "value-overflow"
	case ErrKindSigOps:
		return "sigops"
	case ErrKindBadPoW:
		return "bad-pow"
	case ErrKindBadMerkle:
		return "bad-merkle"
	case ErrKindDuplicateTransaction:
		return "duplicate-transaction"
	default:
		return "unknown"
	}
}

// VerificationError is returned by Add when a candidate block fails
// consensus validation (spec.md §7). Kind lets a caller distinguish
// failure categories without parsing the message; Err carries the
// underlying cause when one exists (e.g. the oracle's script error).
type VerificationError struct {
	Kind VerificationErrorKind
	Msg  string
	Err  error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chain: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("chain: %s: %s", e.Kind, e.Msg)
}

func (e *VerificationError) Unwrap() error { return e.Err }

func verifyErrf(kind VerificationErrorKind, format string, args ...any) *VerificationError {
	return &VerificationError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func verifyErrWrap(kind VerificationErrorKind, err error, format string, args ...any) *VerificationError {
	return &VerificationError{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// kindFromChainModel translates a chainmodel.BlockVerificationError's
// string Kind onto the caller-switchable VerificationErrorKind enum.
func kindFromChainModel(kind string) VerificationErrorKind {
	switch kind {
	case "BadPoW":
		return ErrKindBadPoW
	case "BadMerkle":
		return ErrKindBadMerkle
	case "BadTimestamp":
		return ErrKindTimestamp
	case "DuplicateTransaction":
		return ErrKindDuplicateTransaction
	case "ValueOverflow":
		return ErrKindValueOverflow
	default:
		return ErrKindUnknown
	}
}
