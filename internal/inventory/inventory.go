// Package inventory is the reservation service: items with a fixed capacity,
// time-bounded reservations against them, and the engine that keeps both
// consistent.
//
// The subpackages hold the pieces; this file pins the engine to the contracts
// the HTTP handler and the expiry sweeper depend on.
package inventory

import (
	"stash/internal/inventory/engine"
	"stash/internal/inventory/handler"
	"stash/internal/inventory/sweeper"
)

var (
	_ handler.Service = (*engine.Engine)(nil)
	_ sweeper.Engine  = (*engine.Engine)(nil)
)
