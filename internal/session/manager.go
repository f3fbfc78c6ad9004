package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/sentinel"
)

// Manager drives the lifecycle of exactly one session. All state mutation
// funnels through its mutex, and the periodic checks run sequentially on
// the Run goroutine, so the manager is the sole writer of its record copy.
//
// Lifecycle: Uninitialized -> Active -> (Warned) -> Expired. Expired is
// terminal; a second expiry attempt is a no-op.
type Manager struct {
	cfg        Config
	store      Store
	refresher  Refresher
	terminator Terminator
	logger     *slog.Logger
	auditor    SecurityAuditor
	metrics    *Metrics
	clock      Clock

	onWarningCb func(remaining time.Duration)
	onExpiryCb  func(reason ExpiryReason)

	mu      sync.Mutex
	state   State
	record  *Record
	ceiling time.Time
	stopped bool
	done    chan struct{}
	resched chan struct{}
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithSecurityAuditor(auditor SecurityAuditor) Option {
	return func(m *Manager) {
		m.auditor = auditor
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

func WithClock(clock Clock) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

func WithRefresher(refresher Refresher) Option {
	return func(m *Manager) {
		m.refresher = refresher
	}
}

func WithTerminator(terminator Terminator) Option {
	return func(m *Manager) {
		m.terminator = terminator
	}
}

// OnWarning registers the callback fired once per scheduled expiry,
// WarningLead before it, with the remaining time.
func OnWarning(fn func(remaining time.Duration)) Option {
	return func(m *Manager) {
		m.onWarningCb = fn
	}
}

// OnExpiry registers the callback fired exactly once when the session
// expires, with the reason.
func OnExpiry(fn func(reason ExpiryReason)) Option {
	return func(m *Manager) {
		m.onExpiryCb = fn
	}
}

func NewManager(store Store, cfg Config, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}

	m := &Manager{
		cfg:     cfg.withDefaults(),
		store:   store,
		clock:   systemClock{},
		state:   StateUninitialized,
		done:    make(chan struct{}),
		resched: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.refresher == nil {
		m.refresher = NewStoreRefresher(store)
	}
	if m.terminator == nil {
		m.terminator = NewStoreTerminator(store)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return m, nil
}

// Start loads the durable record and enters Active. It does not begin the
// periodic checks; run those with Run on a separate goroutine.
func (m *Manager) Start(ctx context.Context, sessionID id.SessionID) error {
	record, err := m.store.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	if record.Status != StatusActive {
		return dErrors.New(dErrors.CodeConflict, "session is revoked")
	}

	m.mu.Lock()
	if m.state != StateUninitialized {
		m.mu.Unlock()
		return dErrors.New(dErrors.CodeInvariantViolation, "manager already started")
	}
	m.state = StateActive
	m.record = record.Clone()
	m.ceiling = record.CreatedAt.Add(m.cfg.MaxDuration)
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "session manager started",
		"session_id", sessionID,
		"user_id", record.UserID,
		"expires_at", record.ExpiresAt,
	)
	return nil
}

// Run executes the periodic checks until the session expires, Stop is
// called, or ctx is cancelled. Start must have succeeded first.
func (m *Manager) Run(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateActive && m.state != StateWarned {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	idleTicker := time.NewTicker(m.cfg.IdleCheckInterval)
	defer idleTicker.Stop()
	rotationTicker := time.NewTicker(m.cfg.RotationCheckInterval)
	defer rotationTicker.Stop()
	warning := time.NewTimer(m.untilWarning())
	defer warning.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-m.done:
			return
		case <-idleTicker.C:
			m.checkExpiry(ctx, m.clock.Now())
		case <-rotationTicker.C:
			m.checkRotation(ctx, m.clock.Now())
		case <-warning.C:
			m.checkWarning(ctx, m.clock.Now())
		case <-m.resched:
			if !warning.Stop() {
				select {
				case <-warning.C:
				default:
				}
			}
			warning.Reset(m.untilWarning())
		}
	}
}

// Touch records user activity. It never moves expiry.
func (m *Manager) Touch(ctx context.Context) {
	m.mu.Lock()
	if m.stopped || (m.state != StateActive && m.state != StateWarned) {
		m.mu.Unlock()
		return
	}
	now := m.clock.Now()
	m.record.LastActivityAt = now
	sessionID := m.record.ID
	m.mu.Unlock()

	// Persistence is best effort; the in-memory copy already carries the
	// activity for the idle check.
	if err := m.store.Touch(ctx, sessionID, now); err != nil {
		m.logger.WarnContext(ctx, "failed to persist session activity",
			"session_id", sessionID,
			"error", err,
		)
	}
}

// Extend pulls expiry to now plus one idle window, never past the ceiling
// fixed at creation, and re-arms the warning. An extension racing an
// in-flight expiry loses: the expired state stands.
func (m *Manager) Extend(ctx context.Context) (time.Time, error) {
	m.mu.Lock()
	switch {
	case m.state == StateUninitialized:
		m.mu.Unlock()
		return time.Time{}, dErrors.New(dErrors.CodeInvariantViolation, "manager not started")
	case m.state == StateExpired:
		m.mu.Unlock()
		return time.Time{}, dErrors.New(dErrors.CodeConflict, "session already expired")
	case m.stopped:
		m.mu.Unlock()
		return time.Time{}, dErrors.New(dErrors.CodeConflict, "session manager stopped")
	}
	now := m.clock.Now()
	expiresAt := now.Add(m.cfg.IdleTimeout)
	if expiresAt.After(m.ceiling) {
		expiresAt = m.ceiling
	}
	sessionID := m.record.ID
	m.mu.Unlock()

	if err := m.store.Extend(ctx, sessionID, expiresAt); err != nil {
		return time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to extend session")
	}

	m.mu.Lock()
	if m.stopped || m.state == StateExpired {
		m.mu.Unlock()
		return time.Time{}, dErrors.New(dErrors.CodeConflict, "session already expired")
	}
	m.record.ExpiresAt = expiresAt
	if m.state == StateWarned {
		m.state = StateActive
	}
	m.mu.Unlock()

	m.signalReschedule()
	if m.metrics != nil {
		m.metrics.RecordExtension()
	}
	m.logger.InfoContext(ctx, "session extended",
		"session_id", sessionID,
		"expires_at", expiresAt,
	)
	return expiresAt, nil
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := Snapshot{State: m.state}
	if m.record != nil {
		snapshot.SessionID = m.record.ID
		snapshot.UserID = m.record.UserID
		snapshot.DeviceID = m.record.DeviceID
		snapshot.CreatedAt = m.record.CreatedAt
		snapshot.LastActivityAt = m.record.LastActivityAt
		snapshot.ExpiresAt = m.record.ExpiresAt
		snapshot.TokenRefreshedAt = m.record.TokenRefreshedAt
	}
	return snapshot
}

// Stop halts the checks and detaches the callbacks without expiring the
// session. Safe to call more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.onWarningCb = nil
	m.onExpiryCb = nil
	m.closeDoneLocked()
	m.mu.Unlock()
}

// checkExpiry applies the idle and ceiling checks. Idle wins when both have
// passed on the same tick.
func (m *Manager) checkExpiry(ctx context.Context, now time.Time) {
	m.mu.Lock()
	if m.stopped || (m.state != StateActive && m.state != StateWarned) {
		m.mu.Unlock()
		return
	}
	idleFor := now.Sub(m.record.LastActivityAt)
	pastExpiry := !now.Before(m.record.ExpiresAt)
	m.mu.Unlock()

	switch {
	case idleFor >= m.cfg.IdleTimeout:
		m.expire(ctx, ReasonIdleTimeout)
	case pastExpiry:
		m.expire(ctx, ReasonMaxDuration)
	}
}

// checkRotation refreshes the session token once it crosses the rotation
// interval. The refresh call runs outside the mutex; Run serializes the
// checks themselves, so only request-path operations contend.
func (m *Manager) checkRotation(ctx context.Context, now time.Time) {
	m.mu.Lock()
	if m.stopped || (m.state != StateActive && m.state != StateWarned) {
		m.mu.Unlock()
		return
	}
	if now.Sub(m.record.TokenRefreshedAt) < m.cfg.RotationInterval {
		m.mu.Unlock()
		return
	}
	sessionID := m.record.ID
	m.mu.Unlock()

	refreshed, err := m.refresher.Refresh(ctx, sessionID)
	if err != nil {
		reason := classifyRefreshError(err)
		if m.metrics != nil {
			m.metrics.RecordRotation("failed")
		}
		m.logger.WarnContext(ctx, "session token refresh failed",
			"session_id", sessionID,
			"reason", string(reason),
			"error", err,
		)
		m.expire(ctx, reason)
		return
	}

	m.mu.Lock()
	if m.state == StateActive || m.state == StateWarned {
		m.record.TokenRefreshedAt = refreshed.TokenRefreshedAt
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordRotation("ok")
	}
	m.logger.DebugContext(ctx, "session token rotated", "session_id", sessionID)
}

// checkWarning fires the pre-expiry warning once per scheduled expiry.
func (m *Manager) checkWarning(ctx context.Context, now time.Time) {
	m.mu.Lock()
	if m.stopped || m.state != StateActive {
		m.mu.Unlock()
		return
	}
	remaining := m.record.ExpiresAt.Sub(now)
	if remaining <= 0 || now.Before(m.record.ExpiresAt.Add(-m.cfg.WarningLead)) {
		m.mu.Unlock()
		return
	}
	m.state = StateWarned
	callback := m.onWarningCb
	sessionID := m.record.ID
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordWarning()
	}
	m.logger.InfoContext(ctx, "session expiry warning",
		"session_id", sessionID,
		"remaining", remaining,
	)
	if callback != nil {
		callback(remaining)
	}
}

// expire finalizes the session exactly once: terminal state, external
// sign-out, audit, metrics, caller callback. Callbacks run outside the
// mutex.
func (m *Manager) expire(ctx context.Context, reason ExpiryReason) {
	m.mu.Lock()
	if m.stopped || (m.state != StateActive && m.state != StateWarned) {
		m.mu.Unlock()
		return
	}
	m.state = StateExpired
	record := m.record.Clone()
	callback := m.onExpiryCb
	m.onExpiryCb = nil
	m.onWarningCb = nil
	m.closeDoneLocked()
	m.mu.Unlock()

	if err := m.terminator.SignOut(ctx, record.ID); err != nil {
		m.logger.ErrorContext(ctx, "session sign-out failed",
			"session_id", record.ID,
			"error", err,
		)
	}

	if m.metrics != nil {
		m.metrics.RecordExpired(string(reason))
	}
	if m.auditor != nil {
		m.auditor.LogAuth(ctx, "session_expired",
			"session_id", record.ID.String(),
			"user_id", record.UserID.String(),
			"reason", string(reason),
			"device", record.DeviceLabel,
		)
	}
	m.logger.InfoContext(ctx, "session expired",
		"session_id", record.ID,
		"user_id", record.UserID,
		"reason", string(reason),
	)
	if callback != nil {
		callback(reason)
	}
}

// untilWarning is the wait before the warning timer should fire next.
func (m *Manager) untilWarning() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record == nil {
		return m.cfg.MaxDuration
	}
	wait := m.record.ExpiresAt.Add(-m.cfg.WarningLead).Sub(m.clock.Now())
	if wait < 0 {
		return 0
	}
	return wait
}

func (m *Manager) signalReschedule() {
	select {
	case m.resched <- struct{}{}:
	default:
	}
}

func (m *Manager) closeDoneLocked() {
	if !m.stopped {
		m.stopped = true
		close(m.done)
	}
}

// classifyRefreshError maps refresh failures onto expiry reasons.
func classifyRefreshError(err error) ExpiryReason {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return ReasonNoSession
	case errors.Is(err, ErrAlreadyRevoked) || errors.Is(err, sentinel.ErrRevoked):
		return ReasonRefreshFailed
	default:
		return ReasonRefreshError
	}
}
