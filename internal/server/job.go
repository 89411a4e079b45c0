package server

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cwbudde/descentviz/internal/optim"
	"github.com/cwbudde/descentviz/internal/store"
	"github.com/cwbudde/descentviz/internal/trajectory"
	"github.com/google/uuid"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// RunConfig is an alias to avoid duplication with store.RunConfig
type RunConfig = store.RunConfig

// PathSummary is the outcome of one optimizer within a job.
type PathSummary struct {
	Optimizer  string       `json:"optimizer"`
	Final      optim.Vector `json:"final"`
	FinalValue optim.Float  `json:"finalValue"`
}

// Job represents a comparison run submitted to the server
type Job struct {
	ID        string        `json:"id"`
	State     JobState      `json:"state"`
	Config    RunConfig     `json:"config"`
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Summaries []PathSummary `json:"summaries,omitempty"`
	StartTime time.Time     `json:"startTime"`
	EndTime   *time.Time    `json:"endTime,omitempty"`
	Error     string        `json:"error,omitempty"`

	result *trajectory.Result
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob creates a new job with the given configuration
func (jm *JobManager) CreateJob(config RunConfig) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		Total:     len(config.Optimizers),
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	return job
}

// GetJob returns a snapshot of the job with the given ID
func (jm *JobManager) GetJob(id string) (Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return Job{}, false
	}
	return job.snapshot(), true
}

// ListJobs returns snapshots of all jobs, most recently started first
func (jm *JobManager) ListJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job.snapshot())
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartTime.After(jobs[j].StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// RemoveJob drops the job and any stream subscribers attached to it
func (jm *JobManager) RemoveJob(id string) bool {
	jm.mu.Lock()
	_, exists := jm.jobs[id]
	delete(jm.jobs, id)
	jm.mu.Unlock()

	if exists {
		jm.broadcaster.CleanupJob(id)
	}
	return exists
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			runningJobs = append(runningJobs, job.snapshot())
		}
	}
	return runningJobs
}

// Result returns the trajectories of a completed job
func (jm *JobManager) Result(id string) (*trajectory.Result, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists || job.result == nil {
		return nil, false
	}
	return job.result, true
}

func (j *Job) snapshot() Job {
	c := *j
	c.Config.Optimizers = append([]string(nil), j.Config.Optimizers...)
	c.Summaries = append([]PathSummary(nil), j.Summaries...)
	return c
}
