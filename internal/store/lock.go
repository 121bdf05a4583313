package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrLockLost is returned when a lease expired and was taken by another
// owner before it could be refreshed or released.
var ErrLockLost = errors.New("lock lost to another owner")

// LockHolder describes the current owner of a lease.
type LockHolder struct {
	Owner     string
	Note      string
	ExpiresAt time.Time
}

// Live reports whether the lease has not expired at now.
func (h LockHolder) Live(now time.Time) bool {
	return !h.ExpiresAt.IsZero() && !now.After(h.ExpiresAt)
}

// AcquireLock claims the lease name for owner until ttl from now. It
// succeeds when the lease is free, expired or already held by owner;
// otherwise ok is false and the live holder is returned. The claim is one
// statement, so two processes can never both win it.
func (s *Store) AcquireLock(name, owner, note string, ttl time.Duration) (ok bool, holder LockHolder, err error) {
	now := time.Now()
	res, err := s.db.Exec(`INSERT INTO locks (name, owner, note, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			owner = excluded.owner,
			note = excluded.note,
			expires_at = excluded.expires_at
		WHERE locks.expires_at < ? OR locks.owner = excluded.owner`,
		name, owner, note, now.Add(ttl).UnixNano(), now.UnixNano())
	if err != nil {
		return false, LockHolder{}, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, LockHolder{}, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if n == 1 {
		return true, LockHolder{Owner: owner, Note: note, ExpiresAt: now.Add(ttl)}, nil
	}

	holder, err = s.GetLock(name)
	return false, holder, err
}

// RefreshLock extends a lease held by owner.
func (s *Store) RefreshLock(name, owner string, ttl time.Duration) error {
	res, err := s.db.Exec("UPDATE locks SET expires_at = ? WHERE name = ? AND owner = ?",
		time.Now().Add(ttl).UnixNano(), name, owner)
	if err != nil {
		return fmt.Errorf("failed to refresh lock %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return fmt.Errorf("%s: %w", name, ErrLockLost)
	}
	return nil
}

// ReleaseLock drops a lease held by owner. Releasing a lease owned by
// someone else does nothing.
func (s *Store) ReleaseLock(name, owner string) error {
	if _, err := s.db.Exec("DELETE FROM locks WHERE name = ? AND owner = ?", name, owner); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}

// GetLock returns the recorded holder of name. A lease that was never taken
// yields a zero holder.
func (s *Store) GetLock(name string) (LockHolder, error) {
	var (
		h       LockHolder
		expires int64
	)
	err := s.db.QueryRow("SELECT owner, note, expires_at FROM locks WHERE name = ?", name).Scan(&h.Owner, &h.Note, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return LockHolder{}, nil
	}
	if err != nil {
		return LockHolder{}, fmt.Errorf("failed to read lock %s: %w", name, err)
	}
	h.ExpiresAt = time.Unix(0, expires)
	return h, nil
}
