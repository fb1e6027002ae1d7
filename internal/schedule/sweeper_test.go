package schedule

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	opened, closed int64
	sawNow         []int64
	publishErr     error
	closeErr       error
	closeCalled    bool
}

func (f *fakeStore) PublishDue(_ context.Context, now int64) (int64, error) {
	f.sawNow = append(f.sawNow, now)
	return f.opened, f.publishErr
}

func (f *fakeStore) CloseDue(_ context.Context, now int64) (int64, error) {
	f.closeCalled = true
	f.sawNow = append(f.sawNow, now)
	return f.closed, f.closeErr
}

func fixedClock(sec int64) func() time.Time {
	return func() time.Time { return time.Unix(sec, 0) }
}

func TestSweepReportsCounts(t *testing.T) {
	fs := &fakeStore{opened: 2, closed: 1}
	sw := NewSweeperAt(fs, fixedClock(4200))

	opened, closed, err := sw.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if opened != 2 || closed != 1 {
		t.Fatalf("opened=%d closed=%d, want 2,1", opened, closed)
	}
	// both passes must see the same instant
	if len(fs.sawNow) != 2 || fs.sawNow[0] != 4200 || fs.sawNow[1] != 4200 {
		t.Fatalf("clock values: %v", fs.sawNow)
	}
}

func TestSweepStopsOnPublishError(t *testing.T) {
	boom := errors.New("db gone")
	fs := &fakeStore{publishErr: boom}
	sw := NewSweeperAt(fs, fixedClock(100))

	_, _, err := sw.Sweep(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want the publish error", err)
	}
	if fs.closeCalled {
		t.Fatal("close pass must not run after a publish failure")
	}
}

func TestSweepSurfacesCloseError(t *testing.T) {
	boom := errors.New("db gone")
	fs := &fakeStore{opened: 3, closeErr: boom}
	sw := NewSweeperAt(fs, fixedClock(100))

	opened, _, err := sw.Sweep(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want the close error", err)
	}
	if opened != 3 {
		t.Fatalf("opened=%d should survive a close failure", opened)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	fs := &fakeStore{}
	sw := NewSweeperAt(fs, fixedClock(0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
