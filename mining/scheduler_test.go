package mining_test

import (
	"context"
	"testing"
	"time"

	"github.com/hashvault/mining-engine/mining"
	"github.com/hashvault/mining-engine/plans"
)

func TestScheduler_RunNowDrivesOnePass(t *testing.T) {
	// GIVEN: A scheduler that was never started
	// WHEN: RunNow is called
	// THEN: Exactly one synchronous pass runs against the fake clock

	f := newAccrualFixture(t)
	uid := f.user(t, "alice")
	planID := f.plan(t, "hourly", "2.5", plans.UnitHour, 24)
	f.subscription(t, uid, planID, "100", 24*time.Hour)
	f.clock.Advance(time.Hour)

	sched := mining.NewScheduler(f.accruer, time.Minute)
	report, err := sched.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run now: %v", err)
	}
	if report.Paid != 1 {
		t.Errorf("expected 1 paid, got %+v", report)
	}
	if got := f.balance(t, uid); got != "2.5" {
		t.Errorf("expected 2.5 after pass, got %s", got)
	}
}

func TestScheduler_StartRunsImmediatePass(t *testing.T) {
	// GIVEN: A due subscription and a long tick interval
	// WHEN: The scheduler starts
	// THEN: The immediate first pass pays without waiting a tick

	f := newAccrualFixture(t)
	uid := f.user(t, "bob")
	planID := f.plan(t, "hourly", "2.5", plans.UnitHour, 24)
	f.subscription(t, uid, planID, "100", 24*time.Hour)
	f.clock.Advance(time.Hour)

	sched := mining.NewScheduler(f.accruer, time.Hour)
	sched.Start()
	defer sched.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.balance(t, uid) == "2.5" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("immediate pass never paid, balance %s", f.balance(t, uid))
}

func TestScheduler_StartAndStopAreIdempotent(t *testing.T) {
	f := newAccrualFixture(t)
	sched := mining.NewScheduler(f.accruer, time.Hour)

	sched.Start()
	sched.Start() // second start is a no-op
	sched.Stop()
	sched.Stop() // second stop is a no-op

	// A stop/start cycle must still work.
	sched.Start()
	sched.Stop()
}

func TestScheduler_DefaultsInterval(t *testing.T) {
	f := newAccrualFixture(t)
	sched := mining.NewScheduler(f.accruer, 0)
	if sched.Interval != time.Minute {
		t.Errorf("expected default interval of one minute, got %v", sched.Interval)
	}
}
