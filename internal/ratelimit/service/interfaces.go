package service

import (
	"palisade/internal/ratelimit/ports"
)

// Type aliases for interfaces from ports package.
// This allows external packages to use these types without importing ports directly.
type (
	CounterStore    = ports.CounterStore
	SecurityAuditor = ports.SecurityAuditor
)
