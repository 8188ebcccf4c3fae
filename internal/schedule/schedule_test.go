package schedule

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TobiSchelling/IntelWatch/internal/database"
)

type fakeRunner struct {
	calls atomic.Int64
}

func (r *fakeRunner) Execute(_ context.Context) (*database.Run, error) {
	r.calls.Add(1)
	return &database.Run{ID: "run-1"}, nil
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func startFast(t *testing.T, db *database.DB, runner Runner) *Scheduler {
	t.Helper()
	s := New(db, runner, nil)
	s.interval = 20 * time.Millisecond
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestNextRun(t *testing.T) {
	from := time.Date(2026, 8, 25, 9, 2, 0, 0, time.UTC)
	next, err := NextRun("*/5 * * * *", from)
	if err != nil {
		t.Fatalf("computing next run: %v", err)
	}
	want := time.Date(2026, 8, 25, 9, 5, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}

	if _, err := NextRun("not a cron", from); err == nil {
		t.Error("invalid expression should fail")
	}
}

func TestDueScheduleFiresAndAdvances(t *testing.T) {
	db := openTestDB(t)
	past := database.FormatTime(time.Now().UTC().Add(-time.Minute))
	sch, err := db.InsertSchedule("daily", "0 9 * * *", nil, true, past)
	if err != nil {
		t.Fatalf("inserting schedule: %v", err)
	}

	runner := &fakeRunner{}
	startFast(t, db, runner)
	waitFor(t, func() bool { return runner.calls.Load() >= 1 })

	waitFor(t, func() bool {
		got, err := db.GetSchedule(sch.ID)
		if err != nil || got == nil || got.LastRunAt == nil || got.NextRunAt == nil {
			return false
		}
		next, err := database.ParseTime(*got.NextRunAt)
		return err == nil && next.After(time.Now().UTC())
	})
}

func TestDueScheduleFiresOncePerDueTime(t *testing.T) {
	db := openTestDB(t)
	past := database.FormatTime(time.Now().UTC().Add(-time.Minute))
	if _, err := db.InsertSchedule("daily", "0 9 * * *", nil, true, past); err != nil {
		t.Fatalf("inserting schedule: %v", err)
	}

	runner := &fakeRunner{}
	startFast(t, db, runner)
	waitFor(t, func() bool { return runner.calls.Load() >= 1 })

	// Several more polls must not re-fire: next_run_at advanced past now.
	time.Sleep(100 * time.Millisecond)
	if got := runner.calls.Load(); got != 1 {
		t.Errorf("runner called %d times, want 1", got)
	}
}

func TestFutureScheduleDoesNotFire(t *testing.T) {
	db := openTestDB(t)
	future := database.FormatTime(time.Now().UTC().Add(time.Hour))
	if _, err := db.InsertSchedule("later", "0 9 * * *", nil, true, future); err != nil {
		t.Fatalf("inserting schedule: %v", err)
	}

	runner := &fakeRunner{}
	startFast(t, db, runner)
	time.Sleep(100 * time.Millisecond)
	if got := runner.calls.Load(); got != 0 {
		t.Errorf("runner called %d times for a future schedule", got)
	}
}

func TestDisabledScheduleDoesNotFire(t *testing.T) {
	db := openTestDB(t)
	past := database.FormatTime(time.Now().UTC().Add(-time.Minute))
	if _, err := db.InsertSchedule("off", "0 9 * * *", nil, false, past); err != nil {
		t.Fatalf("inserting schedule: %v", err)
	}

	runner := &fakeRunner{}
	startFast(t, db, runner)
	time.Sleep(100 * time.Millisecond)
	if got := runner.calls.Load(); got != 0 {
		t.Errorf("runner called %d times for a disabled schedule", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	runner := &fakeRunner{}
	s := New(db, runner, nil)
	s.interval = 20 * time.Millisecond
	s.Start(context.Background())
	s.Stop()
	s.Stop()

	unstarted := New(db, runner, nil)
	unstarted.Stop()
}
