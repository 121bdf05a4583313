package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/samzong/gpush/internal/store"
)

// ErrLocked is returned when another gpush process holds the staged files.
var ErrLocked = errors.New("staged files are in use by another gpush process")

const (
	lockName        = "staging"
	defaultLockTTL  = 30 * time.Second
	defaultLockWait = 5 * time.Second
	lockPoll        = 100 * time.Millisecond
)

func newOwner() string {
	return fmt.Sprintf("%d-%s", os.Getpid(), uuid.NewString())
}

func describeHolder(h store.LockHolder) string {
	if h.Note == "" {
		return h.Owner
	}
	return h.Note
}

// lock takes the staging lease, polling for up to wait while another owner
// holds it. The lease is refreshed in the background until the returned
// release func is called.
func (f *Flow) lock(ctx context.Context, note string, wait time.Duration) (func() error, error) {
	deadline := time.Now().Add(wait)
	for {
		ok, holder, err := f.state.AcquireLock(lockName, f.owner, note, f.opts.LockTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w (%s)", ErrLocked, describeHolder(holder))
		}
		f.logf("waiting for %s", describeHolder(holder))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPoll):
		}
	}

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		ticker := time.NewTicker(f.opts.LockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				done <- nil
				return
			case <-ticker.C:
				if err := f.state.RefreshLock(lockName, f.owner, f.opts.LockTTL); err != nil {
					f.logf("lock refresh failed: %v", err)
					if errors.Is(err, store.ErrLockLost) {
						done <- err
						return
					}
				}
			}
		}
	}()

	return func() error {
		close(stop)
		lost := <-done
		return errors.Join(lost, f.state.ReleaseLock(lockName, f.owner))
	}, nil
}

// Busy describes the other process currently holding the staged files, or
// returns "" when none does.
func (f *Flow) Busy() (string, error) {
	h, err := f.state.GetLock(lockName)
	if err != nil {
		return "", err
	}
	if h.Owner == f.owner || !h.Live(time.Now()) {
		return "", nil
	}
	return describeHolder(h), nil
}

// Update reloads the staged files under the lease, runs fn and saves what
// fn changed. Nothing is saved when fn fails. Processes editing the same
// state file are serialised, and an edit never overwrites a publish in
// progress.
func (f *Flow) Update(ctx context.Context, fn func() error) (err error) {
	release, err := f.lock(ctx, "edit", f.opts.LockWait)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := release(); relErr != nil {
			err = errors.Join(err, relErr)
		}
	}()

	if err := f.Load(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return f.Save()
}
