package viewmodel

import "context"

// Job is a handle on one refresh
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func newJob(cancel context.CancelFunc) *Job {
	return &Job{cancel: cancel, done: make(chan struct{})}
}

// Done is closed when the refresh has finished or been cancelled
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job ends. It returns the context error if the job
// was cancelled before producing a result; refresh failures are reported
// through UIState, not here.
func (j *Job) Wait() error {
	<-j.done
	return j.err
}

// Cancel stops the refresh
func (j *Job) Cancel() { j.cancel() }
