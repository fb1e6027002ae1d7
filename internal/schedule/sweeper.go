// Package schedule drives time-based exam lifecycle changes: opening
// published exams when their window starts and closing ongoing exams when it
// ends.
package schedule

import (
	"context"
	"log"
	"time"
)

// Store is the slice of the exam store the sweeper needs.
type Store interface {
	PublishDue(ctx context.Context, now int64) (int64, error)
	CloseDue(ctx context.Context, now int64) (int64, error)
}

type Sweeper struct {
	store Store
	now   func() time.Time
}

func NewSweeper(store Store) *Sweeper {
	return &Sweeper{store: store, now: time.Now}
}

// NewSweeperAt uses the given clock. Tests pass a fixed one.
func NewSweeperAt(store Store, now func() time.Time) *Sweeper {
	return &Sweeper{store: store, now: now}
}

// Sweep runs one pass of both transitions and reports how many exams moved.
// Both updates are idempotent, so overlapping or repeated passes are safe.
func (s *Sweeper) Sweep(ctx context.Context) (opened, closed int64, err error) {
	now := s.now().Unix()
	opened, err = s.store.PublishDue(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	closed, err = s.store.CloseDue(ctx, now)
	if err != nil {
		return opened, 0, err
	}
	return opened, closed, nil
}

// Run sweeps on the given interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			opened, closed, err := s.Sweep(ctx)
			if err != nil {
				log.Printf("schedule: sweep: %v", err)
				continue
			}
			if opened > 0 || closed > 0 {
				log.Printf("schedule: opened %d, closed %d", opened, closed)
			}
		}
	}
}
