package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a scraping job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is one query/location/limit scraping request and its lifecycle state.
//
// Invariants:
//   - ResultsCount == len(Businesses) whenever Status is completed.
//   - Error is non-empty iff Status is failed.
//   - Status never leaves a terminal value.
type Job struct {
	ID           string     `json:"id"`
	Status       JobStatus  `json:"status"`
	Query        string     `json:"query"`
	Location     string     `json:"location"`
	Limit        int        `json:"limit"`
	ResultsCount int        `json:"resultsCount"`
	Businesses   []Business `json:"businesses,omitempty"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// NewJob returns a pending job.
// MarshalJSON emits businesses for every completed job, as [] when nothing
// was found, and omits the key while pending or failed.
func (j Job) MarshalJSON() ([]byte, error) {
	type plain Job
	out := struct {
		plain
		Businesses *[]Business `json:"businesses,omitempty"`
	}{plain: plain(j)}
	if j.Status == JobCompleted {
		bs := j.Businesses
		if bs == nil {
			bs = []Business{}
		}
		out.Businesses = &bs
	}
	return json.Marshal(out)
}

func NewJob(id, query, location string, limit int, now time.Time) *Job {
	return &Job{
		ID:        id,
		Status:    JobPending,
		Query:     query,
		Location:  location,
		Limit:     limit,
		StartedAt: now,
	}
}

// Clone returns a copy that shares no mutable state with j.
func (j *Job) Clone() *Job {
	c := *j
	if j.Businesses != nil {
		c.Businesses = make([]Business, len(j.Businesses))
		copy(c.Businesses, j.Businesses)
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Complete returns the completed successor of j.
func (j *Job) Complete(businesses []Business, now time.Time) (*Job, error) {
	if j.Status.Terminal() {
		return nil, fmt.Errorf("job %s: cannot complete from %s", j.ID, j.Status)
	}
	next := j.Clone()
	next.Status = JobCompleted
	next.Businesses = make([]Business, len(businesses))
	copy(next.Businesses, businesses)
	next.ResultsCount = len(businesses)
	next.Error = ""
	next.CompletedAt = &now
	return next, nil
}

// Fail returns the failed successor of j. Any partial results are dropped.
func (j *Job) Fail(message string, now time.Time) (*Job, error) {
	if j.Status.Terminal() {
		return nil, fmt.Errorf("job %s: cannot fail from %s", j.ID, j.Status)
	}
	if message == "" {
		message = "Unknown error occurred"
	}
	next := j.Clone()
	next.Status = JobFailed
	next.Businesses = nil
	next.ResultsCount = 0
	next.Error = message
	next.CompletedAt = &now
	return next, nil
}
