// Package config holds the per-class rate limit presets.
package config

import (
	"time"

	"palisade/internal/ratelimit/models"
)

// Limit is the budget for one endpoint class: at most Requests per Window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Config maps endpoint classes to their limits. Classes absent from the map
// are denied by the service, so a misconfigured deployment fails closed
// rather than unlimited.
type Config struct {
	limits map[models.EndpointClass]Limit
}

// DefaultConfig returns the built-in presets.
func DefaultConfig() *Config {
	return &Config{
		limits: map[models.EndpointClass]Limit{
			models.ClassAuth:      {Requests: 5, Window: 15 * time.Minute},
			models.ClassAPI:       {Requests: 60, Window: time.Minute},
			models.ClassSensitive: {Requests: 10, Window: time.Minute},
			models.ClassPublic:    {Requests: 100, Window: time.Minute},
			models.ClassOrder:     {Requests: 5, Window: time.Minute},
		},
	}
}

// GetLimit returns the limit for a class. The ok result is false when the
// class has no configured limit.
func (c *Config) GetLimit(class models.EndpointClass) (requests int, window time.Duration, ok bool) {
	l, ok := c.limits[class]
	if !ok {
		return 0, 0, false
	}
	return l.Requests, l.Window, true
}

// SetLimit overrides the limit for a class. Non-positive values are ignored
// so a bad override cannot zero out a preset.
func (c *Config) SetLimit(class models.EndpointClass, requests int, window time.Duration) {
	if !class.IsValid() || requests <= 0 || window <= 0 {
		return
	}
	if c.limits == nil {
		c.limits = make(map[models.EndpointClass]Limit)
	}
	c.limits[class] = Limit{Requests: requests, Window: window}
}

// Classes returns the classes that have a configured limit.
func (c *Config) Classes() []models.EndpointClass {
	classes := make([]models.EndpointClass, 0, len(c.limits))
	for class := range c.limits {
		classes = append(classes, class)
	}
	return classes
}
