package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/descentviz/internal/objective"
	"github.com/cwbudde/descentviz/internal/optim"
	"github.com/cwbudde/descentviz/internal/store"
	"github.com/cwbudde/descentviz/internal/trajectory"
)

// runner executes jobs in the background and persists their results.
type runner struct {
	jm       *JobManager
	store    store.Store // optional
	traceDir string      // empty disables trace files
	metrics  *Metrics
}

// runJob executes a comparison job.
// If a store is configured the finished run is saved, and if a trace
// directory is set every recorded position is appended to trace.jsonl.
func (r *runner) runJob(ctx context.Context, jobID string) error {
	job, exists := r.jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if err := r.jm.UpdateJob(jobID, func(j *Job) { j.State = StateRunning }); err != nil {
		return err
	}
	r.metrics.RecordStarted()
	r.broadcastState(jobID, StateRunning, 0, job.Total)

	slog.Info("Starting run", "job_id", jobID, "function", job.Config.Function, "optimizers", job.Config.Optimizers)

	fn, err := objective.Lookup(job.Config.Function)
	if err != nil {
		r.markFailed(jobID, err)
		return err
	}

	select {
	case <-ctx.Done():
		r.markCancelled(jobID)
		return ctx.Err()
	default:
	}

	start := time.Now()
	result, err := trajectory.Run(trajectory.Config{
		Function:     fn,
		Optimizers:   job.Config.Optimizers,
		Start:        job.Config.Start,
		LearningRate: job.Config.LearningRate,
		Iterations:   job.Config.Iterations,
		Options:      job.Config.Options(),
		Progress: func(p trajectory.Progress) {
			r.recordProgress(jobID, job.Config.Iterations, p)
		},
	})
	if err != nil {
		r.markFailed(jobID, err)
		return err
	}
	elapsed := time.Since(start)

	select {
	case <-ctx.Done():
		r.markCancelled(jobID)
		return ctx.Err()
	default:
	}

	r.persist(jobID, job.Config, result, fn)

	endTime := time.Now()
	err = r.jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Completed = len(result.Paths)
		j.result = result
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}
	r.metrics.RecordCompleted(elapsed)

	slog.Info("Run completed", "job_id", jobID, "elapsed", elapsed, "optimizers", len(result.Paths))

	r.broadcastState(jobID, StateCompleted, len(result.Paths), job.Total)
	return nil
}

func (r *runner) recordProgress(jobID string, iterations int, p trajectory.Progress) {
	summary := PathSummary{
		Optimizer:  p.Optimizer,
		Final:      p.Final,
		FinalValue: optim.Float(p.Value),
	}
	r.jm.UpdateJob(jobID, func(j *Job) {
		j.Completed = p.Index + 1
		j.Summaries = append(j.Summaries, summary)
	})
	r.metrics.RecordSteps(p.Optimizer, iterations)

	r.jm.broadcaster.Broadcast(ProgressEvent{
		JobID:      jobID,
		State:      StateRunning,
		Completed:  p.Index + 1,
		Total:      p.Total,
		Optimizer:  p.Optimizer,
		Final:      p.Final,
		FinalValue: summary.FinalValue,
		Timestamp:  time.Now(),
	})
}

// persist saves the run and its trace. Failures are logged, not fatal: the
// in-memory result still serves the API.
func (r *runner) persist(jobID string, cfg RunConfig, result *trajectory.Result, fn *objective.Function) {
	if r.store != nil {
		if err := r.store.SaveRun(store.NewRun(jobID, cfg, result)); err != nil {
			slog.Error("Failed to save run", "job_id", jobID, "error", err)
		}
	}

	if r.traceDir == "" {
		return
	}
	tw, err := store.NewTraceWriter(r.traceDir, jobID, false)
	if err != nil {
		slog.Error("Failed to open trace", "job_id", jobID, "error", err)
		return
	}
	if err := tw.WriteResult(result, fn.Value); err != nil {
		slog.Error("Failed to write trace", "job_id", jobID, "error", err)
	}
	if err := tw.Close(); err != nil {
		slog.Error("Failed to close trace", "job_id", jobID, "error", err)
	}
}

func (r *runner) broadcastState(jobID string, state JobState, completed, total int) {
	r.jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     state,
		Completed: completed,
		Total:     total,
		Timestamp: time.Now(),
	})
}

// markFailed marks a job as failed with an error message
func (r *runner) markFailed(jobID string, err error) {
	endTime := time.Now()
	r.jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	r.metrics.RecordFailed(StateFailed)
	slog.Error("Run failed", "job_id", jobID, "error", err)

	job, _ := r.jm.GetJob(jobID)
	r.broadcastState(jobID, StateFailed, job.Completed, job.Total)
}

// markCancelled marks a job as cancelled
func (r *runner) markCancelled(jobID string) {
	endTime := time.Now()
	r.jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	r.metrics.RecordFailed(StateCancelled)
	slog.Info("Run cancelled", "job_id", jobID)

	job, _ := r.jm.GetJob(jobID)
	r.broadcastState(jobID, StateCancelled, job.Completed, job.Total)
}
