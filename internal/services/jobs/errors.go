package jobs

import "errors"

var (
	// ErrJobNotFound is returned when a job id is unknown to both the
	// in-memory store and the durable mirror.
	ErrJobNotFound = errors.New("job not found")

	// ErrTooManyJobs rejects admission when the global concurrent job
	// ceiling is reached.
	ErrTooManyJobs = errors.New("server is at capacity, please try again in a few minutes")

	// ErrUserJobLimit rejects admission when the requesting user
	// already has an active job.
	ErrUserJobLimit = errors.New("you already have a job running, please wait for it to finish")

	// ErrNotCancellable is returned when cancelling a job that is not
	// pending or running.
	ErrNotCancellable = errors.New("job cannot be cancelled in its current state")

	// ErrNotResumable is returned when resuming a job that is not
	// failed or cancelled.
	ErrNotResumable = errors.New("job cannot be resumed in its current state")

	// ErrNotOwner is returned when a caller touches another user's job
	ErrNotOwner = errors.New("job belongs to another user")

	// ErrResumeUnavailable is returned when resume is requested but no
	// durable store is configured.
	ErrResumeUnavailable = errors.New("resume requires durable storage")
)
