package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupQueueTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&Job{}))
	return db
}

func TestEnqueueCreatesPendingJob(t *testing.T) {
	db := setupQueueTestDB(t)
	q := NewQueue(db, 1)

	id, err := q.Enqueue(JobTypeProcessDocument, map[string]string{"case_id": "abc"})
	require.NoError(t, err)

	job, err := q.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, JobTypeProcessDocument, job.Type)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, "abc", payload["case_id"])
}

func TestWorkerProcessesJob(t *testing.T) {
	db := setupQueueTestDB(t)
	q := NewQueue(db, 2)

	var processed atomic.Int32
	q.RegisterHandler(JobTypeProcessDocument, func(ctx context.Context, job Job) error {
		processed.Add(1)
		return nil
	})

	id, err := q.Enqueue(JobTypeProcessDocument, map[string]string{"case_id": "abc"})
	require.NoError(t, err)

	q.Start()
	defer q.Stop()

	assert.Eventually(t, func() bool {
		job, err := q.GetJob(id)
		return err == nil && job.Status == JobStatusCompleted
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, int32(1), processed.Load())
}

func TestJobRetriesThenFails(t *testing.T) {
	db := setupQueueTestDB(t)
	q := NewQueue(db, 1)

	var attempts atomic.Int32
	q.RegisterHandler(JobTypeProcessDocument, func(ctx context.Context, job Job) error {
		attempts.Add(1)
		return errors.New("ocr backend down")
	})

	id, err := q.Enqueue(JobTypeProcessDocument, map[string]string{"case_id": "abc"})
	require.NoError(t, err)

	q.Start()
	defer q.Stop()

	assert.Eventually(t, func() bool {
		job, err := q.GetJob(id)
		return err == nil && job.Status == JobStatusFailed
	}, 5*time.Second, 50*time.Millisecond)

	job, err := q.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, 2, job.RetryCount)
	assert.Contains(t, job.Error, "ocr backend down")
}

func TestUnknownJobTypeFails(t *testing.T) {
	db := setupQueueTestDB(t)
	q := NewQueue(db, 1)

	id, err := q.Enqueue(JobType("unknown_type"), map[string]string{})
	require.NoError(t, err)

	q.Start()
	defer q.Stop()

	assert.Eventually(t, func() bool {
		job, err := q.GetJob(id)
		return err == nil && job.Status == JobStatusFailed
	}, 5*time.Second, 50*time.Millisecond)

	job, err := q.GetJob(id)
	require.NoError(t, err)
	assert.Contains(t, job.Error, "no handler")
}

func TestJobsProcessedOnce(t *testing.T) {
	db := setupQueueTestDB(t)
	q := NewQueue(db, 4)

	var mu sync.Mutex
	seen := make(map[string]int)
	q.RegisterHandler(JobTypeProcessDocument, func(ctx context.Context, job Job) error {
		mu.Lock()
		seen[job.ID.String()]++
		mu.Unlock()
		return nil
	})

	ids := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		id, err := q.Enqueue(JobTypeProcessDocument, map[string]int{"n": i})
		require.NoError(t, err)
		ids = append(ids, id.String())
	}

	q.Start()
	defer q.Stop()

	assert.Eventually(t, func() bool {
		var remaining int64
		db.Model(&Job{}).Where("status IN ?", []JobStatus{JobStatusPending, JobStatusProcessing}).Count(&remaining)
		return remaining == 0
	}, 10*time.Second, 50*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, id := range ids {
		assert.Equal(t, 1, seen[id], "job %s should be processed exactly once", id)
	}
}

func TestStopWaitsForWorkers(t *testing.T) {
	db := setupQueueTestDB(t)
	q := NewQueue(db, 1)
	q.RegisterHandler(JobTypeProcessDocument, func(ctx context.Context, job Job) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	})

	id, err := q.Enqueue(JobTypeProcessDocument, map[string]string{})
	require.NoError(t, err)

	q.Start()

	assert.Eventually(t, func() bool {
		job, err := q.GetJob(id)
		return err == nil && job.Status != JobStatusPending
	}, 5*time.Second, 20*time.Millisecond)

	q.Stop()

	job, err := q.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, job.Status)
}
