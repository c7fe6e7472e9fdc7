package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/mapscout/models"
)

func TestDeliver_SignsBody(t *testing.T) {
	var (
		gotSig  string
		gotUA   string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotUA = r.Header.Get("User-Agent")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ev := &Event{Type: EventJobCompleted, JobID: "j1", Timestamp: 42, Data: &JobPayload{Status: models.JobCompleted, ResultsCount: 3}}
	if err := Deliver(context.Background(), srv.URL, "s3cret", ev); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if !Verify("s3cret", gotBody, gotSig) {
		t.Errorf("signature %q does not verify", gotSig)
	}
	if Verify("other", gotBody, gotSig) {
		t.Error("signature must not verify under a different secret")
	}
	if gotUA != "Mapscout-Webhook/1.0" {
		t.Errorf("user agent = %q", gotUA)
	}
	var decoded map[string]any
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if decoded["jobId"] != "j1" || decoded["type"] != EventJobCompleted {
		t.Errorf("unexpected body %s", gotBody)
	}
}

func TestDeliver_NoSecretNoSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(SignatureHeader) != "" {
			t.Error("unexpected signature header")
		}
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "", &Event{Type: EventJobFailed}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
}

func TestDeliver_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "", &Event{}); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestDeliverAsync_RetriesUntilSuccess(t *testing.T) {
	saved := retryDelays
	retryDelays = []time.Duration{0, time.Millisecond, time.Millisecond}
	t.Cleanup(func() { retryDelays = saved })

	var attempts atomic.Int32
	calls := make(chan struct{}, 3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
		}
		calls <- struct{}{}
	}))
	defer srv.Close()

	DeliverAsync(srv.URL, "", &Event{Type: EventJobCompleted, JobID: "j1"})

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("attempt %d never arrived", i+1)
		}
	}
	time.Sleep(10 * time.Millisecond)
	if n := attempts.Load(); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
}

func TestNewJobEvent(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	job := models.NewJob("j1", "bakeries", "Boston", 2, start)

	done, _ := job.Complete([]models.Business{{Name: "Flour"}}, start.Add(time.Minute))
	ev := NewJobEvent(done)
	if ev.Type != EventJobCompleted || ev.JobID != "j1" || ev.Timestamp != start.Add(time.Minute).Unix() {
		t.Errorf("completed event = %+v", ev)
	}
	if ev.Data.ResultsCount != 1 || len(ev.Data.Businesses) != 1 || ev.Data.Query != "bakeries" {
		t.Errorf("completed payload = %+v", ev.Data)
	}

	failed, _ := job.Fail("SESSION_TIMEOUT: search results did not load", start.Add(time.Minute))
	ev = NewJobEvent(failed)
	if ev.Type != EventJobFailed || ev.Data.Error == "" || ev.Data.Businesses != nil {
		t.Errorf("failed event = %+v / %+v", ev, ev.Data)
	}
}
