package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/txnflow/internal/jobs"
)

func TestPublishAndConsume(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(10, 2, store)
	defer q.Close()

	var handled int32
	done := make(chan struct{})
	err := q.Start(ctx, func(_ context.Context, job jobs.Job) error {
		if job.GetType() != jobs.JobTypeIngestFile {
			t.Errorf("job type = %s", job.GetType())
		}
		if atomic.AddInt32(&handled, 1) == 1 {
			close(done)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.IngestFileJob{ProfileID: "p1", GCSURI: "gs://b/uploads/p1/f.xlsx", FileName: "f.xlsx"}
	if err := q.PublishIngestFile(ctx, job); err != nil {
		t.Fatalf("PublishIngestFile: %v", err)
	}
	if job.JobID == "" {
		t.Error("publish must assign a job ID")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not consumed")
	}

	// Status lands in the store once the handler returns.
	deadline := time.Now().Add(time.Second)
	for {
		saved, err := store.GetJob(ctx, job.JobID)
		if err == nil && saved.Status == jobs.JobStatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job status never reached completed: %+v", saved)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRetryOnFailure(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	var attempts int32
	done := make(chan struct{})
	_ = q.Start(ctx, func(_ context.Context, _ jobs.Job) error {
		if atomic.AddInt32(&attempts, 1) < 2 {
			return errors.New("transient failure")
		}
		close(done)
		return nil
	})

	job := &jobs.IngestFileJob{ProfileID: "p1", GCSURI: "gs://b/f.xlsx", FileName: "f.xlsx", MaxRetries: 2}
	if err := q.PublishIngestFile(ctx, job); err != nil {
		t.Fatalf("PublishIngestFile: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job was not retried")
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestPublishAfterClose(t *testing.T) {
	q := NewQueue(1, 1, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	err := q.PublishIngestFile(context.Background(), &jobs.IngestFileJob{FileName: "f.csv"})
	if err == nil {
		t.Error("publish on a closed queue must fail")
	}
}

func TestStoreListJobs(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	base := time.Now()
	for i, profile := range []string{"p1", "p1", "p2"} {
		job := &jobs.IngestFileJob{
			JobID:     string(rune('a' + i)),
			ProfileID: profile,
			Status:    jobs.JobStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.SaveJob(ctx, job); err != nil {
			t.Fatalf("SaveJob: %v", err)
		}
	}

	p1Jobs, err := store.ListJobs(ctx, jobs.JobFilter{ProfileID: "p1"})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(p1Jobs) != 2 {
		t.Fatalf("p1 jobs = %d, want 2", len(p1Jobs))
	}
	if p1Jobs[0].JobID != "b" {
		t.Errorf("newest job first, got %s", p1Jobs[0].JobID)
	}

	limited, err := store.ListJobs(ctx, jobs.JobFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited jobs = %d, want 1", len(limited))
	}
}
