package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobType defines the type of job
type JobType string

const (
	// JobTypeProcessDocument runs extraction and validation over a
	// submitted document
	JobTypeProcessDocument JobType = "process_document"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job represents a background job persisted until a worker picks it up
type Job struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Type       JobType         `json:"type" gorm:"type:varchar(50);index"`
	Payload    json.RawMessage `json:"payload"`
	Status     JobStatus       `json:"status" gorm:"type:varchar(20);index"`
	RetryCount int             `json:"retry_count" gorm:"default:0"`
	MaxRetries int             `json:"max_retries" gorm:"default:3"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// JobHandler is a function that processes one job
type JobHandler func(ctx context.Context, job Job) error

// Enqueuer is the narrow interface services use to push work
type Enqueuer interface {
	Enqueue(jobType JobType, payload interface{}) (uuid.UUID, error)
}

// Queue is a database-backed job queue with an in-process worker pool.
// Claims go through a guarded status update, so multiple workers (or
// multiple processes sharing the table) never double-process a job.
type Queue struct {
	db         *gorm.DB
	numWorkers int
	pollEvery  time.Duration

	mu       sync.RWMutex
	handlers map[JobType]JobHandler

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewQueue creates a queue processing jobs with numWorkers goroutines
func NewQueue(db *gorm.DB, numWorkers int) *Queue {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Queue{
		db:         db,
		numWorkers: numWorkers,
		pollEvery:  250 * time.Millisecond,
		handlers:   make(map[JobType]JobHandler),
		quit:       make(chan struct{}),
	}
}

// RegisterHandler registers a handler for a job type
func (q *Queue) RegisterHandler(jobType JobType, handler JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// Enqueue adds a job to the queue and returns its id
func (q *Queue) Enqueue(jobType JobType, payload interface{}) (uuid.UUID, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}

	job := Job{
		ID:         uuid.New(),
		Type:       jobType,
		Payload:    payloadBytes,
		Status:     JobStatusPending,
		MaxRetries: 3,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := q.db.Create(&job).Error; err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job.ID, nil
}

// Start launches the worker pool
func (q *Queue) Start() {
	log.Printf("Starting %d queue workers", q.numWorkers)
	for i := 0; i < q.numWorkers; i++ {
		q.wg.Add(1)
		go q.work(i)
	}
}

// Stop signals the workers and waits for in-flight jobs to finish
func (q *Queue) Stop() {
	close(q.quit)
	q.wg.Wait()
}

func (q *Queue) work(workerID int) {
	defer q.wg.Done()

	for {
		select {
		case <-q.quit:
			return
		default:
		}

		job, ok := q.claim()
		if !ok {
			select {
			case <-q.quit:
				return
			case <-time.After(q.pollEvery):
			}
			continue
		}
		q.process(workerID, job)
	}
}

// claim picks the oldest pending job and flips it to processing. The
// guarded update makes the claim exclusive even with concurrent workers.
func (q *Queue) claim() (Job, bool) {
	var job Job
	err := q.db.Where("status = ?", JobStatusPending).Order("created_at ASC").First(&job).Error
	if err != nil {
		return Job{}, false
	}

	res := q.db.Model(&Job{}).
		Where("id = ? AND status = ?", job.ID, JobStatusPending).
		Updates(map[string]interface{}{"status": JobStatusProcessing, "updated_at": time.Now().UTC()})
	if res.Error != nil || res.RowsAffected == 0 {
		return Job{}, false
	}
	job.Status = JobStatusProcessing
	return job, true
}

func (q *Queue) process(workerID int, job Job) {
	q.mu.RLock()
	handler, ok := q.handlers[job.Type]
	q.mu.RUnlock()
	if !ok {
		log.Printf("No handler registered for job type %s", job.Type)
		q.finish(job, JobStatusFailed, fmt.Sprintf("no handler for job type %s", job.Type))
		return
	}

	err := handler(context.Background(), job)
	if err == nil {
		q.finish(job, JobStatusCompleted, "")
		return
	}

	log.Printf("Worker %d: job %s failed: %v", workerID, job.ID, err)
	if job.RetryCount+1 < job.MaxRetries {
		if updErr := q.db.Model(&Job{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
			"status":      JobStatusPending,
			"retry_count": job.RetryCount + 1,
			"error":       err.Error(),
			"updated_at":  time.Now().UTC(),
		}).Error; updErr != nil {
			log.Printf("Failed to requeue job %s: %v", job.ID, updErr)
		}
		return
	}
	q.finish(job, JobStatusFailed, err.Error())
}

func (q *Queue) finish(job Job, status JobStatus, errMsg string) {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if errMsg != "" {
		updates["error"] = errMsg
	}
	if err := q.db.Model(&Job{}).Where("id = ?", job.ID).Updates(updates).Error; err != nil {
		log.Printf("Failed to update job %s status: %v", job.ID, err)
	}
}

// GetJob retrieves a job by id, used by tests and ops tooling
func (q *Queue) GetJob(jobID uuid.UUID) (*Job, error) {
	var job Job
	if err := q.db.First(&job, "id = ?", jobID).Error; err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}
