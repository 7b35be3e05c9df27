package provisioning

import "errors"

var (
	ErrInvalidBatchSource = errors.New("invalid batch source")
	ErrEnqueueBatchJob    = errors.New("failed to enqueue batch job")
	ErrInvalidJobID       = errors.New("invalid job id")
	ErrBatchJobNotFound   = errors.New("batch job not found")
	ErrGetBatchJob        = errors.New("failed to get batch job")
)
