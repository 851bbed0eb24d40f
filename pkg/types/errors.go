// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Navigation failures are fatal to a run; row, download,
// and conversion failures are recorded on the affected record.
var (
	ErrInvalidCriteria       = errors.New("invalid search criteria")
	ErrVerificationExhausted = errors.New("verification attempts exhausted")
	ErrPortalUnreachable     = errors.New("portal unreachable")
	ErrFormFieldMissing      = errors.New("search form field missing")
	ErrRowParse              = errors.New("result row parse error")
	ErrDownloadFailed        = errors.New("document download failed")
	ErrConversionFailed      = errors.New("document conversion failed")
)

// StageError reports a fatal navigation failure together with the session
// state in which it happened.
type StageError struct {
	State SessionState
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
