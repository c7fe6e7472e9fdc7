package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestJob_CompleteSetsCountAndTimestamp(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	job := NewJob("j1", "bakeries", "Boston", 5, start)

	done := start.Add(time.Minute)
	next, err := job.Complete([]Business{{Name: "A"}, {Name: "B"}}, done)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if next.Status != JobCompleted {
		t.Errorf("status = %s, want completed", next.Status)
	}
	if next.ResultsCount != len(next.Businesses) || next.ResultsCount != 2 {
		t.Errorf("resultsCount = %d, businesses = %d", next.ResultsCount, len(next.Businesses))
	}
	if next.CompletedAt == nil || !next.CompletedAt.Equal(done) {
		t.Errorf("completedAt = %v, want %v", next.CompletedAt, done)
	}
	if job.Status != JobPending {
		t.Error("Complete must not mutate the receiver")
	}
}

func TestJob_FailDropsResults(t *testing.T) {
	job := NewJob("j1", "q", "l", 10, time.Now())
	job.Businesses = []Business{{Name: "partial"}}

	next, err := job.Fail("", time.Now())
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if next.Error == "" {
		t.Error("failed job must carry an error message")
	}
	if next.Businesses != nil || next.ResultsCount != 0 {
		t.Error("failed job must not keep partial results")
	}
}

func TestJob_TerminalTransitionsRejected(t *testing.T) {
	now := time.Now()
	completed, _ := NewJob("j1", "q", "l", 1, now).Complete(nil, now)
	failed, _ := NewJob("j2", "q", "l", 1, now).Fail("boom", now)

	for _, j := range []*Job{completed, failed} {
		if _, err := j.Complete(nil, now); err == nil {
			t.Errorf("%s: Complete from %s should fail", j.ID, j.Status)
		}
		if _, err := j.Fail("again", now); err == nil {
			t.Errorf("%s: Fail from %s should fail", j.ID, j.Status)
		}
	}
}

func TestJob_CloneIsIndependent(t *testing.T) {
	now := time.Now()
	job, _ := NewJob("j1", "q", "l", 1, now).Complete([]Business{{Name: "A"}}, now)

	c := job.Clone()
	c.Businesses[0].Name = "changed"
	*c.CompletedAt = now.Add(time.Hour)

	if job.Businesses[0].Name != "A" {
		t.Error("clone shares the businesses slice")
	}
	if !job.CompletedAt.Equal(now) {
		t.Error("clone shares the completedAt pointer")
	}
}

func TestScrapeError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("store: %w", NewScrapeError(ErrCodeJobNotFound, "Job not found", nil))
	if !errors.Is(err, ErrJobNotFound) {
		t.Error("wrapped not-found error should match ErrJobNotFound")
	}
	if CodeOf(err) != ErrCodeJobNotFound {
		t.Errorf("CodeOf = %s", CodeOf(err))
	}
	if CodeOf(errors.New("plain")) != ErrCodeInternal {
		t.Error("plain errors should map to INTERNAL_ERROR")
	}
}

func TestJob_MarshalBusinessesKey(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	pending := NewJob("j1", "bakeries", "Boston", 5, start)
	empty, _ := pending.Complete(nil, start.Add(time.Second))
	some, _ := pending.Complete([]Business{{Name: "A"}}, start.Add(time.Second))
	failed, _ := pending.Fail("boom", start.Add(time.Second))

	tests := []struct {
		name    string
		job     *Job
		present bool
		count   int
	}{
		{"pending", pending, false, 0},
		{"completed with no results", empty, true, 0},
		{"completed with results", some, true, 1},
		{"failed", failed, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.job)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var decoded map[string]json.RawMessage
			if err := json.Unmarshal(b, &decoded); err != nil {
				t.Fatal(err)
			}
			raw, ok := decoded["businesses"]
			if ok != tt.present {
				t.Fatalf("businesses present = %v, want %v in %s", ok, tt.present, b)
			}
			if !ok {
				return
			}
			var bs []Business
			if err := json.Unmarshal(raw, &bs); err != nil || bs == nil || len(bs) != tt.count {
				t.Errorf("businesses = %s, want array of %d", raw, tt.count)
			}
			if decoded["status"] == nil || decoded["id"] == nil {
				t.Errorf("job fields missing from %s", b)
			}
		})
	}
}
