package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, lockers and other
// infrastructure layers return these (optionally wrapped) so services can
// translate them into domain errors.
//
//   - ErrNotFound: record does not exist in the store
//   - ErrLockTimeout: per-item exclusion could not be obtained before the deadline
//   - ErrUnavailable: backing service unreachable or rejected the request
//
// For validation and lifecycle errors use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrLockTimeout = errors.New("lock wait timed out")
	ErrUnavailable = errors.New("unavailable")
)
