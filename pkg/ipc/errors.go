package ipc

import "errors"

// ErrorKind classifies a daemon failure into one of the ten kinds spec §7
// enumerates, so a caller (kanshictl, or app's own reload path) can branch
// on what went wrong instead of pattern-matching an error string.
type ErrorKind string

const (
	KindConfigSyntax              ErrorKind = "config_syntax"
	KindConfigIO                  ErrorKind = "config_io"
	KindEnvironmentMissing        ErrorKind = "environment_missing"
	KindCompositorProtocolMissing ErrorKind = "compositor_protocol_missing"
	KindWireTransport             ErrorKind = "wire_transport"
	KindTransactionFailed         ErrorKind = "transaction_failed"
	KindTransactionCancelled      ErrorKind = "transaction_cancelled"
	KindRPCTransport              ErrorKind = "rpc_transport"
	KindUnknownForcedProfile      ErrorKind = "unknown_forced_profile"
	KindHookSpawnFailure          ErrorKind = "hook_spawn_failure"
)

// KindError tags an error with the spec §7 kind its caller should report it
// under. Reload and SetProfile replies carry this across the RPC wire; it
// is also attached at a few points outside the RPC path purely for log
// context (e.g. a fatal wire-transport error logged out of the event loop).
type KindError struct {
	Kind ErrorKind
	Err  error
}

func NewKindError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: kind, Err: err}
}

func (e *KindError) Error() string { return e.Err.Error() }
func (e *KindError) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind tagged on err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind, true
	}
	return "", false
}
