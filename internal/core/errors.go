package core

import "errors"

// Sentinel error kinds surfaced by the core (§7). Wrap with fmt.Errorf's
// %w and compare with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation error")
	ErrNoFilingsFound       = errors.New("no filings found")
	ErrProviderFailure      = errors.New("provider failure")
	ErrStateCorrupt         = errors.New("pipeline state corrupt")
	ErrUniquenessViolation  = errors.New("uniqueness violation")
	ErrCancelled            = errors.New("cancelled")
	ErrUnsupportedFormat    = errors.New("unsupported document format")
)

// ErrStateMissing is a specific flavor of ErrStateCorrupt: status.json is
// absent when a pipeline run or status read needs it (§4.2).
var ErrStateMissing = errors.Join(ErrStateCorrupt, errors.New("status.json missing"))
