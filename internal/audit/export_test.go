package audit

import "time"

// Test-only accessors so white-box assertions in the audit_test package can
// read janitor tuning without re-opening the import cycle through mocks.
func JanitorRetention(j *Janitor) time.Duration { return j.retention }
func JanitorInterval(j *Janitor) time.Duration  { return j.interval }
