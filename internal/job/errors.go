// Package job runs submitted (file, customer) units of work through the
// catalog pipeline with at-least-once retry semantics.
package job

import "errors"

// RetryableError marks a failed job attempt that the retry policy may run
// again: network/service failures and parse failures. Validation failures
// are rejected before a job enters the queue and never carry this type.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	if e == nil || e.Err == nil {
		return "retryable job error"
	}
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsRetryable reports whether err allows another attempt.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
