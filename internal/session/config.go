package session

import "time"

// Defaults tuned for a browser-facing ordering application: sessions idle
// out after half an hour, live at most a day, and rotate tokens hourly.
const (
	DefaultIdleTimeout           = 30 * time.Minute
	DefaultWarningLead           = 5 * time.Minute
	DefaultMaxDuration           = 24 * time.Hour
	DefaultRotationInterval      = time.Hour
	DefaultIdleCheckInterval     = time.Minute
	DefaultRotationCheckInterval = 5 * time.Minute
)

// Config carries the timing knobs for a Manager. A zero Config behaves like
// DefaultConfig.
type Config struct {
	// IdleTimeout expires a session after this long without activity.
	IdleTimeout time.Duration
	// WarningLead is how far before expiry the warning callback fires.
	WarningLead time.Duration
	// MaxDuration is the ceiling on total session lifetime, measured from
	// creation. Extensions never push expiry past it.
	MaxDuration time.Duration
	// RotationInterval is the token age at which rotation is attempted.
	RotationInterval time.Duration
	// IdleCheckInterval is how often the idle and ceiling checks run.
	IdleCheckInterval time.Duration
	// RotationCheckInterval is how often the rotation check runs.
	RotationCheckInterval time.Duration
}

// DefaultConfig returns the built-in timing presets.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:           DefaultIdleTimeout,
		WarningLead:           DefaultWarningLead,
		MaxDuration:           DefaultMaxDuration,
		RotationInterval:      DefaultRotationInterval,
		IdleCheckInterval:     DefaultIdleCheckInterval,
		RotationCheckInterval: DefaultRotationCheckInterval,
	}
}

// withDefaults fills unset fields so partial configs stay usable.
func (c Config) withDefaults() Config {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.WarningLead <= 0 {
		c.WarningLead = DefaultWarningLead
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.RotationInterval <= 0 {
		c.RotationInterval = DefaultRotationInterval
	}
	if c.IdleCheckInterval <= 0 {
		c.IdleCheckInterval = DefaultIdleCheckInterval
	}
	if c.RotationCheckInterval <= 0 {
		c.RotationCheckInterval = DefaultRotationCheckInterval
	}
	return c
}
