package scbox

import "errors"

// Sentinel errors per the error taxonomy: configuration errors are fatal,
// connection errors trigger the reconnect protocol, the rest are logged and
// the walk continues with the next entry.
var (
	ErrConfigNotFound  = errors.New("scbox: scb.config not found in any ancestor directory")
	ErrConfigInvalid   = errors.New("scbox: scb.config is not valid JSON")
	ErrOptionsInvalid  = errors.New("scbox: scb.options is not valid JSON")
	ErrConnection      = errors.New("scbox: connection to remote store failed or probe failed")
	ErrIntegrity       = errors.New("scbox: downloaded file size does not match remote size")
	ErrNotFound        = errors.New("scbox: remote path not found")
	ErrNotADirectory   = errors.New("scbox: remote path is not a directory")
	ErrRetriesExceeded = errors.New("scbox: max retries exceeded, abandoning operation")
	ErrInvalidOp       = errors.New("scbox: operation must be one of u, d, s")
)

// connErr wraps an underlying transport failure as connection-class so the
// reconciler can recognize it with errors.Is(err, ErrConnection) regardless of
// the concrete transport error type underneath.
type connErr struct{ cause error }

func (e *connErr) Error() string { return "scbox: connection error: " + e.cause.Error() }
func (e *connErr) Unwrap() error { return e.cause }
func (e *connErr) Is(target error) bool { return target == ErrConnection }

func wrapConn(err error) error {
	if err == nil {
		return nil
	}
	return &connErr{cause: err}
}

// isConnectionClass reports whether err should trigger the reconnect protocol
// rather than a per-entry skip-and-continue.
func isConnectionClass(err error) bool {
	return errors.Is(err, ErrConnection)
}
