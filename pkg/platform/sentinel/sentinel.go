package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into
// domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: row absent, or soft-deleted and therefore invisible
// - ErrConflict: uniqueness violation (duplicate student number, university name)
// - ErrHasDependents: deletion blocked while dependent rows exist
// - ErrExpired: token or signed URL past its expiry
// - ErrUnavailable: backing store or upstream temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrHasDependents = errors.New("has dependents")
	ErrExpired       = errors.New("expired")
	ErrUnavailable   = errors.New("unavailable")
)
