package session

import (
	"context"
	"errors"
	"time"

	id "palisade/pkg/domain"
	"palisade/pkg/platform/sentinel"
)

// StoreRefresher is the default Refresher: rotation stamps the durable
// record rather than exchanging a credential with an external issuer.
type StoreRefresher struct {
	store Store
}

func NewStoreRefresher(store Store) *StoreRefresher {
	return &StoreRefresher{store: store}
}

func (r *StoreRefresher) Refresh(ctx context.Context, sessionID id.SessionID) (*Record, error) {
	return r.store.MarkRotated(ctx, sessionID, time.Now())
}

// StoreTerminator is the default Terminator: sign-out revokes the durable
// record. Already-revoked and already-deleted records count as signed out.
type StoreTerminator struct {
	store Store
}

func NewStoreTerminator(store Store) *StoreTerminator {
	return &StoreTerminator{store: store}
}

func (t *StoreTerminator) SignOut(ctx context.Context, sessionID id.SessionID) error {
	err := t.store.RevokeIfActive(ctx, sessionID, time.Now())
	if errors.Is(err, ErrAlreadyRevoked) || errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	return err
}

// StoreChecker answers the auth middleware's revocation check from the
// durable store. A missing record counts as revoked: the token points at a
// session that no longer exists.
type StoreChecker struct {
	store Store
}

func NewStoreChecker(store Store) *StoreChecker {
	return &StoreChecker{store: store}
}

func (c *StoreChecker) IsSessionRevoked(ctx context.Context, sessionID id.SessionID) (bool, error) {
	record, err := c.store.FindByID(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return record.Status == StatusRevoked, nil
}
