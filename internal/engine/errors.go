// ABOUTME: Engine error values
// ABOUTME: Sentinel errors and SourceError for datasource failures
package engine

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/aptest/pkg/audio/decode"
)

// Sentinel errors for engine commands
var (
	ErrInvalidState      = errors.New("command not valid in current state")
	ErrNoDatasource      = errors.New("no datasource set")
	ErrDestroyed         = errors.New("engine destroyed")
	ErrUninitialized     = errors.New("engine subsystem not initialized")
	ErrUnsupportedScheme = errors.New("unsupported datasource scheme")
	ErrNotSeekable       = decode.ErrNotSeekable
	ErrFormatRejected    = errors.New("format rejected by sink")
)

// SourceError wraps datasource failures with the operation and URL
type SourceError struct {
	Op  string // Operation that failed
	URL string // Datasource URL
	Err error  // Underlying error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
